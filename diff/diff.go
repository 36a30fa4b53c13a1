package diff

import (
	"slices"
	"sort"
)

// FindChanges compares two flattened snapshots and returns the changes ordered
// by field name.
func FindChanges(prev, curr map[string][]string) []AttributeChange {
	var changes []AttributeChange

	// Detect changed or added attributes
	for k, newVal := range curr {
		oldVal, exists := prev[k]
		if !exists || !slices.Equal(oldVal, newVal) {
			changes = append(changes, AttributeChange{
				Name: k,
				Old:  oldVal,
				New:  newVal,
			})
		}
	}

	// Detect removed attributes
	for k, oldVal := range prev {
		if _, exists := curr[k]; !exists {
			changes = append(changes, AttributeChange{
				Name: k,
				Old:  oldVal,
				New:  nil,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	return changes
}
