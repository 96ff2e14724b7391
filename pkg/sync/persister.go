package sync

import (
	"context"

	"github.com/oguidomingos/datagem2/pkg/connection"
	"github.com/sirupsen/logrus"
)

const DefaultChunkSize = 500

// InsertFunc forwards one chunk of extracted records to the storage
// backend.
type InsertFunc func(ctx context.Context, records []connection.RawRecord) error

// PersistResult reports how a batch persistence went. FailedChunks being
// non-zero does not fail the run; it marks it degraded.
type PersistResult struct {
	Chunks       int
	FailedChunks int
	Inserted     int
}

// Persister hands extracted records to storage in fixed-size chunks,
// preserving their original order. A failed chunk is logged and skipped;
// the remaining chunks are still attempted, so one bad batch cannot take
// down a whole run.
type Persister struct {
	chunkSize int
	insert    InsertFunc
	log       *logrus.Entry
}

func NewPersister(chunkSize int, insert InsertFunc, log *logrus.Entry) *Persister {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Persister{chunkSize: chunkSize, insert: insert, log: log}
}

func (p *Persister) Persist(ctx context.Context, records []connection.RawRecord) PersistResult {
	var result PersistResult

	for start := 0; start < len(records); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		result.Chunks++

		if err := p.insert(ctx, chunk); err != nil {
			result.FailedChunks++
			p.log.WithError(err).WithFields(map[string]interface{}{
				"chunk":   result.Chunks,
				"records": len(chunk),
			}).Warn("Failed to insert record chunk")
			continue
		}
		result.Inserted += len(chunk)
	}

	if result.Chunks > 0 {
		p.log.WithFields(map[string]interface{}{
			"chunks":        result.Chunks,
			"failed_chunks": result.FailedChunks,
			"inserted":      result.Inserted,
		}).Info("Batch persistence finished")
	}

	return result
}
