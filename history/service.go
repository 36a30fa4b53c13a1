// Package history persists resolution runs and records, per key, which fields
// changed since the previous comparable run.
package history

import (
	"context"
	"fmt"
	"time"

	"f0oster/adexpiry/database"
	"f0oster/adexpiry/resolver"
	"f0oster/adexpiry/snapshot"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Store is the subset of *database.DBClient the service writes through.
type Store interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CommitTx(ctx context.Context, tx pgx.Tx) error
	RollbackTx(ctx context.Context, tx pgx.Tx) error

	InsertRun(ctx context.Context, tx pgx.Tx, runID uuid.UUID, startedAt time.Time, keyField string) error
	FinishRun(ctx context.Context, tx pgx.Tx, runID uuid.UUID, finishedAt time.Time, recordCount int) error
	PreviousRunID(ctx context.Context, tx pgx.Tx, keyField string) (*uuid.UUID, error)
	RunSnapshots(ctx context.Context, tx pgx.Tx, runID uuid.UUID) (map[string][]byte, error)
	InsertRecord(ctx context.Context, tx pgx.Tx, rec database.StoredRecord) error
	InsertChange(ctx context.Context, tx pgx.Tx, change database.ChangeRecord) error
}

var _ Store = (*database.DBClient)(nil)

// Service orchestrates snapshot comparison and change tracking for a run.
type Service struct {
	store           Store
	snapshotService *snapshot.Service
	logger          *zap.Logger
	now             func() time.Time
}

func NewService(store Store, snapSvc *snapshot.Service, logger *zap.Logger) *Service {
	return &Service{
		store:           store,
		snapshotService: snapSvc,
		logger:          logger.With(zap.String("component", "history")),
		now:             time.Now,
	}
}

// RunSummary describes a persisted run.
type RunSummary struct {
	RunID         uuid.UUID
	PreviousRunID *uuid.UUID
	Records       int
	Added         int
	Removed       int
	Changed       int
	FieldChanges  int
}

// ProcessRun persists a resolution output as a new run.
// It implements a fail-fast batch transaction strategy:
// - Single transaction for the entire run
// - Stops on first error and rolls back
// - The run is only visible once every record is stored
func (s *Service) ProcessRun(ctx context.Context, out *resolver.OutputMap) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.New()}
	keyField := string(out.KeyField)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.store.RollbackTx(ctx, tx) // No-op if already committed

	summary.PreviousRunID, err = s.store.PreviousRunID(ctx, tx, keyField)
	if err != nil {
		return summary, fmt.Errorf("failed to find previous run: %w", err)
	}

	previous := map[string][]byte{}
	if summary.PreviousRunID != nil {
		previous, err = s.store.RunSnapshots(ctx, tx, *summary.PreviousRunID)
		if err != nil {
			return summary, fmt.Errorf("failed to load previous run: %w", err)
		}
	}

	if err := s.store.InsertRun(ctx, tx, summary.RunID, s.now(), keyField); err != nil {
		return summary, fmt.Errorf("failed to insert run: %w", err)
	}

	for i, key := range out.Keys() {
		record, _ := out.Get(key)
		if err := s.processRecord(ctx, tx, &summary, previous, key, i, record); err != nil {
			// Fail fast - rollback handled by defer
			return summary, fmt.Errorf("failed to process record %d (key: %s): %w", i, key, err)
		}
	}

	for key := range previous {
		if _, ok := out.Get(key); !ok {
			summary.Removed++
		}
	}
	summary.Records = out.Len()

	if err := s.store.FinishRun(ctx, tx, summary.RunID, s.now(), summary.Records); err != nil {
		return summary, fmt.Errorf("failed to finish run: %w", err)
	}

	if err := s.store.CommitTx(ctx, tx); err != nil {
		return summary, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("run persisted",
		zap.Stringer("run_id", summary.RunID),
		zap.Int("records", summary.Records),
		zap.Int("added", summary.Added),
		zap.Int("removed", summary.Removed),
		zap.Int("changed", summary.Changed),
		zap.Int("field_changes", summary.FieldChanges),
	)
	return summary, nil
}

// processRecord stores one record and, when the key existed in the previous
// run, the fields that differ from it.
func (s *Service) processRecord(
	ctx context.Context,
	tx pgx.Tx,
	summary *RunSummary,
	previous map[string][]byte,
	key string,
	position int,
	record resolver.ResolvedRecord,
) error {
	snap, err := s.snapshotService.CreateSnapshot(key, position, record)
	if err != nil {
		return err
	}

	if err := s.store.InsertRecord(ctx, tx, database.StoredRecord{
		RunID:             summary.RunID,
		Key:               snap.Key,
		Position:          snap.Position,
		Type:              snap.RecordType,
		DistinguishedName: snap.DN,
		Snapshot:          snap.Document,
	}); err != nil {
		return err
	}

	if summary.PreviousRunID == nil {
		return nil
	}

	previousDocument, ok := previous[key]
	if !ok {
		summary.Added++
		return nil
	}

	previousAttributes, err := s.snapshotService.RestoreAttributes(previousDocument)
	if err != nil {
		return err
	}

	changes := s.snapshotService.CompareSnapshots(previousAttributes, snap.Attributes)
	if len(changes) == 0 {
		return nil
	}
	summary.Changed++

	for _, change := range changes {
		if err := s.store.InsertChange(ctx, tx, database.ChangeRecord{
			ChangeID:  uuid.New(),
			RunID:     summary.RunID,
			RecordKey: key,
			FieldName: change.Name,
			OldValue:  change.Old,
			NewValue:  change.New,
		}); err != nil {
			return err
		}
		summary.FieldChanges++

		s.logger.Debug("field changed",
			zap.String("key", key),
			zap.String("field", change.Name),
			zap.Strings("old", change.Old),
			zap.Strings("new", change.New),
		)
	}
	return nil
}
