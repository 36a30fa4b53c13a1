package diff

// AttributeChange represents a change to one flattened field between two
// snapshots of a record. Old is nil for an added field, New for a removed one.
type AttributeChange struct {
	Name string   `json:"name"`
	Old  []string `json:"old"`
	New  []string `json:"new"`
}
