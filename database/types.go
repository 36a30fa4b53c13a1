package database

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// RunRecord represents a row in the runs table.
type RunRecord struct {
	RunID       uuid.UUID  `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	KeyField    string     `json:"key_field"`
	RecordCount int        `json:"record_count"`
}

// StoredRecord represents a row in the records table. Snapshot holds the
// resolved record as JSON.
type StoredRecord struct {
	RunID             uuid.UUID       `json:"-"`
	Key               string          `json:"key"`
	Position          int             `json:"-"`
	Type              string          `json:"type"`
	DistinguishedName string          `json:"distinguished_name"`
	Snapshot          json.RawMessage `json:"record"`
}

// ChangeRecord represents a row in the record_changes table: one field of one
// record that differs from the previous run.
type ChangeRecord struct {
	ChangeID     uuid.UUID `json:"change_id"`
	RunID        uuid.UUID `json:"run_id"`
	RunStartedAt time.Time `json:"run_started_at"`
	RecordKey    string    `json:"record_key"`
	FieldName    string    `json:"field_name"`
	OldValue     []string  `json:"old_value"`
	NewValue     []string  `json:"new_value"`
}

// RecordFilter narrows ListRecords. ExpiringWithin keeps records whose password
// expires between today and that many days out.
type RecordFilter struct {
	Type           string
	ExpiringWithin *int
}
