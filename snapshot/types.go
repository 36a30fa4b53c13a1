package snapshot

import (
	"encoding/json"
)

// Snapshot represents the state of one resolved record within a run.
// It contains all necessary information for storage and comparison.
type Snapshot struct {
	// Key is the record's output key under the run's key field
	Key string

	// Position is the record's index in output order
	Position int

	// RecordType is User or Contact
	RecordType string

	// DN is the Distinguished Name of the object
	DN string

	// Document is the record as stored
	Document json.RawMessage

	// Attributes is the flattened form of Document used for comparison
	Attributes map[string][]string
}
