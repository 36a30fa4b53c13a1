package resolver

// orderedMap keeps keys in first-insertion order. Overwriting a key replaces its
// value but keeps its original position.
type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedMap[V any](capacity int) orderedMap[V] {
	return orderedMap[V]{
		keys:   make([]string, 0, capacity),
		values: make(map[string]V, capacity),
	}
}

// set reports whether an existing value was replaced.
func (m *orderedMap[V]) set(key string, value V) bool {
	_, exists := m.values[key]
	if !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return exists
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap[V]) len() int {
	return len(m.keys)
}

func (m *orderedMap[V]) orderedKeys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// IdentityCache maps distinguished names and sAMAccountNames to the fetched
// objects of every domain in the forest, so a manager can be found wherever it lives.
type IdentityCache struct {
	entries orderedMap[Object]
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{entries: newOrderedMap[Object](0)}
}

// BuildIdentityCache indexes every account under its DN and sAMAccountName, then
// every contact under its DN. sAMAccountName collisions across domains resolve to
// the last account inserted.
func BuildIdentityCache(accounts []*RawAccount, contacts []*RawContact) *IdentityCache {
	c := &IdentityCache{entries: newOrderedMap[Object](2*len(accounts) + len(contacts))}
	for _, account := range accounts {
		c.Put(account.DistinguishedName, account)
		c.Put(account.SamAccountName, account)
	}
	for _, contact := range contacts {
		c.Put(contact.DistinguishedName, contact)
	}
	return c
}

// Put stores obj under key, silently replacing any earlier entry. Empty keys are ignored.
func (c *IdentityCache) Put(key string, obj Object) {
	if key == "" {
		return
	}
	c.entries.set(key, obj)
}

func (c *IdentityCache) Get(key string) (Object, bool) {
	if key == "" {
		return nil, false
	}
	return c.entries.get(key)
}

func (c *IdentityCache) Len() int {
	return c.entries.len()
}

// Keys returns the cache keys in insertion order.
func (c *IdentityCache) Keys() []string {
	return c.entries.orderedKeys()
}
