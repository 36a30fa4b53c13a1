package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBClient struct {
	pool *pgxpool.Pool
}

func NewDBClient(pool *pgxpool.Pool) *DBClient {
	return &DBClient{pool: pool}
}

func (r *DBClient) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	return tx, nil
}

func (r *DBClient) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

func (r *DBClient) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	// Rollback returns an error if transaction is already committed/rolled back
	return tx.Rollback(ctx)
}

func (r *DBClient) InsertRun(ctx context.Context, tx pgx.Tx, runID uuid.UUID, startedAt time.Time, keyField string) error {
	if _, err := tx.Exec(ctx, InsertRun, uuidToPgtype(runID), timestamptz(startedAt), keyField); err != nil {
		return fmt.Errorf("insert run query failed: %w", err)
	}
	return nil
}

func (r *DBClient) FinishRun(ctx context.Context, tx pgx.Tx, runID uuid.UUID, finishedAt time.Time, recordCount int) error {
	tag, err := tx.Exec(ctx, FinishRun, uuidToPgtype(runID), timestamptz(finishedAt), recordCount)
	if err != nil {
		return fmt.Errorf("finish run query failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// PreviousRunID returns the most recent finished run keyed on keyField, or nil
// when there is none.
func (r *DBClient) PreviousRunID(ctx context.Context, tx pgx.Tx, keyField string) (*uuid.UUID, error) {
	var id pgtype.UUID
	err := tx.QueryRow(ctx, PreviousRun, keyField).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous run query failed: %w", err)
	}
	return pgtypeToUUID(id), nil
}

// RunSnapshots loads every record snapshot of a run, keyed by record key.
func (r *DBClient) RunSnapshots(ctx context.Context, tx pgx.Tx, runID uuid.UUID) (map[string][]byte, error) {
	rows, err := tx.Query(ctx, RunSnapshots, uuidToPgtype(runID))
	if err != nil {
		return nil, fmt.Errorf("run snapshots query failed: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string][]byte)
	for rows.Next() {
		var (
			key      string
			snapshot []byte
		)
		if err := rows.Scan(&key, &snapshot); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots[key] = snapshot
	}
	return snapshots, rows.Err()
}

func (r *DBClient) InsertRecord(ctx context.Context, tx pgx.Tx, rec StoredRecord) error {
	_, err := tx.Exec(ctx, InsertRecord,
		uuidToPgtype(rec.RunID),
		rec.Key,
		rec.Position,
		rec.Type,
		rec.DistinguishedName,
		[]byte(rec.Snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert record query failed: %w", err)
	}
	return nil
}

func (r *DBClient) InsertChange(ctx context.Context, tx pgx.Tx, change ChangeRecord) error {
	oldJSON, err := json.Marshal(change.OldValue)
	if err != nil {
		return fmt.Errorf("marshal old_value for %s: %w", change.FieldName, err)
	}
	newJSON, err := json.Marshal(change.NewValue)
	if err != nil {
		return fmt.Errorf("marshal new_value for %s: %w", change.FieldName, err)
	}

	_, err = tx.Exec(ctx, InsertChange,
		uuidToPgtype(change.ChangeID),
		uuidToPgtype(change.RunID),
		change.RecordKey,
		change.FieldName,
		oldJSON,
		newJSON,
	)
	if err != nil {
		return fmt.Errorf("insert change for %s: %w", change.FieldName, err)
	}
	return nil
}

func (r *DBClient) LatestRun(ctx context.Context) (RunRecord, error) {
	var (
		run        RunRecord
		id         pgtype.UUID
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, LatestRun).Scan(&id, &startedAt, &finishedAt, &run.KeyField, &run.RecordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return run, ErrNotFound
	}
	if err != nil {
		return run, fmt.Errorf("latest run query failed: %w", err)
	}

	if runID := pgtypeToUUID(id); runID != nil {
		run.RunID = *runID
	}
	run.StartedAt = startedAt.Time
	run.FinishedAt = pgtypeToTime(finishedAt)
	return run, nil
}

func (r *DBClient) ListRecords(ctx context.Context, runID uuid.UUID, filter RecordFilter) ([]StoredRecord, error) {
	rows, err := r.pool.Query(ctx, ListRecords, uuidToPgtype(runID), filter.Type, filter.ExpiringWithin)
	if err != nil {
		return nil, fmt.Errorf("list records query failed: %w", err)
	}
	defer rows.Close()

	records := []StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows, runID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *DBClient) GetRecord(ctx context.Context, runID uuid.UUID, key string) (StoredRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, GetRecord, uuidToPgtype(runID), key), runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrNotFound
	}
	return rec, err
}

// ListChanges returns every recorded change to a record key in runs keyed on
// keyField, newest run first.
func (r *DBClient) ListChanges(ctx context.Context, keyField, key string) ([]ChangeRecord, error) {
	rows, err := r.pool.Query(ctx, ListChanges, key, keyField)
	if err != nil {
		return nil, fmt.Errorf("list changes query failed: %w", err)
	}
	defer rows.Close()

	changes := []ChangeRecord{}
	for rows.Next() {
		var (
			change           ChangeRecord
			changeID, runID  pgtype.UUID
			startedAt        pgtype.Timestamptz
			oldJSON, newJSON []byte
		)
		if err := rows.Scan(&changeID, &runID, &startedAt, &change.RecordKey, &change.FieldName, &oldJSON, &newJSON); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		change.ChangeID = uuid.UUID(changeID.Bytes)
		change.RunID = uuid.UUID(runID.Bytes)
		change.RunStartedAt = startedAt.Time

		if err := unmarshalValues(oldJSON, &change.OldValue); err != nil {
			return nil, fmt.Errorf("old_value of %s: %w", change.FieldName, err)
		}
		if err := unmarshalValues(newJSON, &change.NewValue); err != nil {
			return nil, fmt.Errorf("new_value of %s: %w", change.FieldName, err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

func scanRecord(row pgx.Row, runID uuid.UUID) (StoredRecord, error) {
	rec := StoredRecord{RunID: runID}
	var snapshot []byte
	if err := row.Scan(&rec.Key, &rec.Type, &rec.DistinguishedName, &snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan record: %w", err)
	}
	rec.Snapshot = json.RawMessage(snapshot)
	return rec, nil
}

func unmarshalValues(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
