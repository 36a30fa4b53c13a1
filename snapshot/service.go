package snapshot

import (
	"encoding/json"
	"fmt"

	"f0oster/adexpiry/diff"
	"f0oster/adexpiry/resolver"
)

// relativeFields count days from the moment of resolution and move on every run
// without the directory changing. The absolute timestamps they derive from are
// still compared.
var relativeFields = []string{
	"days_to_expire",
	"password_days",
	"last_logon_days",
	"manager_last_logon_days",
}

// Service handles snapshot creation and comparison for resolved records.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CreateSnapshot converts a resolved record into a Snapshot for storage.
func (s *Service) CreateSnapshot(key string, position int, record resolver.ResolvedRecord) (*Snapshot, error) {
	if key == "" {
		return nil, fmt.Errorf("cannot create snapshot without a key (DN: %s)", record.DistinguishedName)
	}

	document, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", key, err)
	}

	attributes, err := comparedAttributes(document)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten record %s: %w", key, err)
	}

	return &Snapshot{
		Key:        key,
		Position:   position,
		RecordType: string(record.Type),
		DN:         record.DistinguishedName,
		Document:   document,
		Attributes: attributes,
	}, nil
}

// RestoreAttributes flattens a stored document so it can be compared with a
// fresh snapshot.
func (s *Service) RestoreAttributes(document []byte) (map[string][]string, error) {
	attributes, err := comparedAttributes(document)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten stored snapshot: %w", err)
	}
	return attributes, nil
}

// CompareSnapshots compares two attribute maps and returns the changes.
func (s *Service) CompareSnapshots(oldAttributes, newAttributes map[string][]string) []diff.AttributeChange {
	return diff.FindChanges(oldAttributes, newAttributes)
}

// comparedAttributes flattens a stored document into the attributes that take
// part in change detection.
func comparedAttributes(document []byte) (map[string][]string, error) {
	attributes, err := diff.Flatten(json.RawMessage(document))
	if err != nil {
		return nil, err
	}
	for _, name := range relativeFields {
		delete(attributes, name)
	}
	return attributes, nil
}
