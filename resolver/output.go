package resolver

import (
	"bytes"
	"encoding/json"
)

// OutputMap is the ordered key -> record mapping produced by one resolution pass.
// Iteration follows fetch order: domain order, then per-domain fetch order.
type OutputMap struct {
	KeyField KeyField
	entries  orderedMap[ResolvedRecord]
}

func NewOutputMap(field KeyField) *OutputMap {
	return &OutputMap{KeyField: field, entries: newOrderedMap[ResolvedRecord](0)}
}

// Set stores a record, reporting whether it replaced one already under key.
func (m *OutputMap) Set(key string, record ResolvedRecord) bool {
	return m.entries.set(key, record)
}

func (m *OutputMap) Get(key string) (ResolvedRecord, bool) {
	return m.entries.get(key)
}

func (m *OutputMap) Len() int {
	return m.entries.len()
}

func (m *OutputMap) Keys() []string {
	return m.entries.orderedKeys()
}

// Values returns the bare list of records in output order.
func (m *OutputMap) Values() []ResolvedRecord {
	values := make([]ResolvedRecord, 0, m.entries.len())
	for _, key := range m.entries.keys {
		values = append(values, m.entries.values[key])
	}
	return values
}

// MarshalJSON writes a JSON object whose members keep output order.
func (m *OutputMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.entries.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.entries.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
