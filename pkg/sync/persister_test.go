package sync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oguidomingos/datagem2/pkg/connection"
)

func makeRecords(n int) []connection.RawRecord {
	records := make([]connection.RawRecord, n)
	for i := range records {
		records[i] = connection.RawRecord{Stream: "orders"}
	}
	return records
}

func TestPersisterChunksInOrder(t *testing.T) {
	var sizes []int
	insert := func(ctx context.Context, records []connection.RawRecord) error {
		sizes = append(sizes, len(records))
		return nil
	}

	result := NewPersister(500, insert, testLog()).Persist(context.Background(), makeRecords(1200))

	if len(sizes) != 3 {
		t.Fatalf("expected 3 insert calls, got %d", len(sizes))
	}
	if sizes[0] != 500 || sizes[1] != 500 || sizes[2] != 200 {
		t.Fatalf("unexpected chunk sizes: %v", sizes)
	}
	if result.Chunks != 3 || result.FailedChunks != 0 || result.Inserted != 1200 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPersisterContinuesPastFailedChunk(t *testing.T) {
	calls := 0
	insert := func(ctx context.Context, records []connection.RawRecord) error {
		calls++
		if calls == 2 {
			return errors.New("storage unavailable")
		}
		return nil
	}

	result := NewPersister(100, insert, testLog()).Persist(context.Background(), makeRecords(250))

	if calls != 3 {
		t.Fatalf("expected all 3 chunks attempted, got %d", calls)
	}
	if result.FailedChunks != 1 {
		t.Fatalf("expected 1 failed chunk, got %d", result.FailedChunks)
	}
	if result.Inserted != 150 {
		t.Fatalf("expected 150 inserted, got %d", result.Inserted)
	}
}

func TestPersisterPreservesOrder(t *testing.T) {
	var streams []string
	insert := func(ctx context.Context, records []connection.RawRecord) error {
		for _, rec := range records {
			streams = append(streams, rec.Stream)
		}
		return nil
	}

	records := []connection.RawRecord{
		{Stream: "a"}, {Stream: "b"}, {Stream: "c"}, {Stream: "d"}, {Stream: "e"},
	}
	NewPersister(2, insert, testLog()).Persist(context.Background(), records)

	if strings.Join(streams, "") != "abcde" {
		t.Fatalf("records reordered: %v", streams)
	}
}

func TestPersisterEmptyInput(t *testing.T) {
	insert := func(ctx context.Context, records []connection.RawRecord) error {
		t.Fatal("insert must not be called for an empty batch")
		return nil
	}

	result := NewPersister(500, insert, testLog()).Persist(context.Background(), nil)
	if result.Chunks != 0 || result.Inserted != 0 {
		t.Fatalf("unexpected result for empty input: %+v", result)
	}
}
