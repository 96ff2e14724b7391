package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oguidomingos/datagem2/pkg/common/logger"
	"github.com/oguidomingos/datagem2/pkg/common/models"
	"github.com/oguidomingos/datagem2/pkg/connection"
	"github.com/oguidomingos/datagem2/pkg/connector"
	"github.com/oguidomingos/datagem2/pkg/observability/metrics"
	"github.com/oguidomingos/datagem2/pkg/tap"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	EventSyncRequested = "sync.requested"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"

	eventSource = "extractor-service"
)

// ConnectionStore is the slice of the storage backend the orchestrator
// consumes: fetch one connection, mirror its catalog, bulk-insert rows.
type ConnectionStore interface {
	Get(ctx context.Context, id string) (*connection.Connection, error)
	UpdateCatalog(ctx context.Context, id string, catalog []byte) error
	InsertRawBatch(ctx context.Context, records []connection.RawRecord) error
}

// RunStore records sync run history.
type RunStore interface {
	Create(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
}

// Publisher emits sync lifecycle events.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// PersistenceError reports a storage failure that aborts a run, such as a
// lost catalog mirror. Per-chunk insert failures are not one of these;
// they only degrade the run.
type PersistenceError struct {
	Op     string
	reason error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.reason)
}

func (e PersistenceError) Unwrap() error {
	return e.reason
}

func IsPersistenceError(err error) bool {
	var pe PersistenceError
	return errors.As(err, &pe)
}

type Options struct {
	WorkspaceRoot string
	ChunkSize     int
	RunTimeout    time.Duration
}

// Service sequences one end-to-end sync: validate config, discover the
// catalog when none is cached, run the tap, classify its output, persist
// the records in chunks and save the final checkpoint. The run store and
// publisher are optional; the orchestration works without history rows or
// lifecycle events.
type Service struct {
	connections ConnectionStore
	runs        RunStore
	registry    *connector.Registry
	lock        Locker
	producer    Publisher
	opts        Options
}

func NewService(connections ConnectionStore, runs RunStore, registry *connector.Registry, lock Locker, producer Publisher, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.WorkspaceRoot == "" {
		opts.WorkspaceRoot = "users_private"
	}
	return &Service{
		connections: connections,
		runs:        runs,
		registry:    registry,
		lock:        lock,
		producer:    producer,
		opts:        opts,
	}
}

// Sync runs one extraction for the given connection. It returns either a
// complete summary or a typed error, never both.
func (s *Service) Sync(ctx context.Context, connectionID string) (*models.SyncSummary, error) {
	if s.lock != nil {
		if err := s.lock.Acquire(ctx, connectionID); err != nil {
			return nil, err
		}
		defer s.lock.Release(ctx, connectionID)
	}

	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := logger.ForRun(conn.ID, runID)
	started := time.Now()

	run := &Run{
		ID:           runID,
		ConnectionID: conn.ID,
		OwnerID:      conn.OwnerID,
		ProjectID:    conn.ProjectID,
		Status:       StatusRunning,
		StartedAt:    started.UTC(),
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to record sync run")
		}
	}
	metrics.RunStarted()

	log.WithField("type", conn.Type).Info("Sync started")

	summary, runErr := s.execute(ctx, log, conn, run, started)
	s.finish(ctx, log, run, runErr)

	if runErr != nil {
		log.WithError(runErr).Error("Sync failed")
		return nil, runErr
	}
	return summary, nil
}

func (s *Service) execute(ctx context.Context, log *logrus.Entry, conn *connection.Connection, run *Run, started time.Time) (*models.SyncSummary, error) {
	tapCmd, err := s.registry.Lookup(conn.Type)
	if err != nil {
		return nil, err
	}

	ws := tap.NewWorkspace(s.opts.WorkspaceRoot, conn.OwnerID, conn.ProjectID, conn.Type)
	if err := ws.Ensure(); err != nil {
		return nil, fmt.Errorf("preparing workspace %s: %w", ws.Dir(), err)
	}

	// The config document is refreshed from the connection row on every
	// run, so credential edits made in the platform take effect without
	// manual cleanup.
	if err := ws.WriteConfig(map[string]interface{}(conn.Config)); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	if err := tap.ValidateConfig(ws.ConfigPath()); err != nil {
		return nil, err
	}

	// Discovery runs at most once per connection, only when no cached
	// catalog file exists. The cached document is mirrored into the
	// connection row on every run; losing the mirror aborts because the
	// platform depends on it.
	if !ws.HasCatalog() {
		log.Info("No cached catalog, running discovery")
		if _, err := tap.NewDiscoverer(log).Discover(ctx, tapCmd.Command, ws.ConfigPath(), ws.CatalogPath()); err != nil {
			return nil, err
		}
	}
	rawCatalog, err := ws.ReadCatalog()
	if err != nil {
		return nil, fmt.Errorf("reading cached catalog: %w", err)
	}
	if err := s.connections.UpdateCatalog(ctx, conn.ID, rawCatalog); err != nil {
		return nil, PersistenceError{Op: "catalog mirror", reason: err}
	}

	statePath := ""
	if state, err := ws.ReadState(); err != nil {
		log.WithError(err).Warn("Ignoring unusable checkpoint, starting fresh")
	} else if state != nil {
		statePath = ws.StatePath()
		log.Info("Resuming from checkpoint")
	}

	result, err := tap.NewRunner(s.opts.RunTimeout, log).Run(ctx, tapCmd.Command, ws.ConfigPath(), ws.CatalogPath(), statePath)
	if err != nil {
		return nil, err
	}

	records, counts := s.collectRecords(log, conn, result.Lines)
	run.TotalRecords = len(records)
	run.Streams = streamCounts(counts)

	var persist PersistResult
	if len(records) > 0 {
		persist = NewPersister(s.opts.ChunkSize, s.connections.InsertRawBatch, log).Persist(ctx, records)
	} else {
		log.Info("No records extracted, skipping persistence")
	}
	run.FailedChunks = persist.FailedChunks

	// The checkpoint is written only after the tap exited cleanly and
	// only when it emitted one; a write failure is a warning, not a
	// failed run.
	if result.LastState != nil {
		if err := ws.WriteState(result.LastState); err != nil {
			log.WithError(err).Warn("Failed to persist checkpoint")
		} else {
			log.Info("Checkpoint saved")
		}
	}

	elapsed := math.Round(time.Since(started).Seconds()*100) / 100

	log.WithFields(map[string]interface{}{
		"total_records":   len(records),
		"streams":         len(counts),
		"failed_chunks":   persist.FailedChunks,
		"elapsed_seconds": elapsed,
	}).Info("Sync finished")

	return &models.SyncSummary{
		Message:         fmt.Sprintf("Sync completed for connection %s", conn.ID),
		PerStreamCounts: counts,
		TotalRecords:    len(records),
		ElapsedSeconds:  elapsed,
		FailedChunks:    persist.FailedChunks,
	}, nil
}

// collectRecords replays the captured protocol lines, counting RECORDs per
// stream and shaping them into storage rows. Anything that is not a
// protocol message is skipped, never fatal.
func (s *Service) collectRecords(log *logrus.Entry, conn *connection.Connection, lines []string) ([]connection.RawRecord, map[string]int) {
	var records []connection.RawRecord
	counts := make(map[string]int)

	for _, line := range lines {
		msg := tap.Classify(line)
		switch msg.Type {
		case tap.TypeRecord:
			counts[msg.Stream]++
			records = append(records, connection.RawRecord{
				OwnerID:      conn.OwnerID,
				ProjectID:    conn.ProjectID,
				ConnectionID: conn.ID,
				Stream:       msg.Stream,
				Record:       datatypes.JSON(msg.Record),
			})
		case tap.TypeUnknown:
			if strings.TrimSpace(msg.Raw) != "" {
				log.WithField("line", clip(msg.Raw, 120)).Debug("Skipping non-protocol line")
			}
		}
	}

	return records, counts
}

func (s *Service) finish(ctx context.Context, log *logrus.Entry, run *Run, runErr error) {
	now := time.Now().UTC()
	run.FinishedAt = &now

	switch {
	case runErr != nil:
		run.Status = StatusFailed
		run.Error = runErr.Error()
	case run.FailedChunks > 0:
		run.Status = StatusDegraded
	default:
		run.Status = StatusCompleted
	}

	if s.runs != nil {
		if err := s.runs.Finish(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to update sync run record")
		}
	}

	metrics.RunFinished(run.Status, run.TotalRecords, run.FailedChunks)

	if s.producer == nil {
		return
	}
	eventType := EventSyncCompleted
	if runErr != nil {
		eventType = EventSyncFailed
	}
	data := map[string]interface{}{
		"run_id":        run.ID,
		"connection_id": run.ConnectionID,
		"status":        run.Status,
		"total_records": run.TotalRecords,
		"failed_chunks": run.FailedChunks,
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	if err := s.producer.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		log.WithError(err).Warn("Failed to publish sync event")
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
