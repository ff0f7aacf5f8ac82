package pytree

import "sort"

// Tuple is a fixed-arity ordered sequence. It flattens like a slice but
// reconstructs as a Tuple, so the two sequence kinds stay distinct through a
// round trip.
type Tuple []any

// OrderedMap is a string-keyed container that preserves insertion order.
// Setting an existing key updates the value and keeps its original position.
type OrderedMap struct {
	keys  []string
	items map[string]any
}

// NewOrderedMap constructs an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{items: make(map[string]any)}
}

// Set stores value under key, appending the key when it is new. It returns
// the map to allow chained construction.
func (m *OrderedMap) Set(key string, value any) *OrderedMap {
	if m.items == nil {
		m.items = make(map[string]any)
	}
	if _, exists := m.items[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
	return m
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil || m.items == nil {
		return nil, false
	}
	value, ok := m.items[key]
	return value, ok
}

// Delete removes key and its value, reporting whether the key was present.
func (m *OrderedMap) Delete(key string) bool {
	if m == nil || m.items == nil {
		return false
	}
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil || len(m.keys) == 0 {
		return nil
	}
	return append([]string{}, m.keys...)
}

// Len returns the number of stored keys.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Factory produces the value materialized for a missing DefaultMap key.
type Factory func() any

// DefaultMap is a string-keyed container with a default factory. Iteration
// follows ascending key order, like map[string]any.
type DefaultMap struct {
	factory Factory
	items   map[string]any
}

// NewDefaultMap constructs an empty DefaultMap with the given factory.
func NewDefaultMap(factory Factory) *DefaultMap {
	return &DefaultMap{factory: factory, items: make(map[string]any)}
}

// Set stores value under key. It returns the map to allow chained
// construction.
func (m *DefaultMap) Set(key string, value any) *DefaultMap {
	if m.items == nil {
		m.items = make(map[string]any)
	}
	m.items[key] = value
	return m
}

// Get returns the value stored under key, materializing and storing the
// factory default when the key is absent.
func (m *DefaultMap) Get(key string) any {
	if value, ok := m.items[key]; ok {
		return value
	}
	var value any
	if m.factory != nil {
		value = m.factory()
	}
	m.Set(key, value)
	return value
}

// Lookup returns the value stored under key without materializing defaults.
func (m *DefaultMap) Lookup(key string) (any, bool) {
	if m == nil || m.items == nil {
		return nil, false
	}
	value, ok := m.items[key]
	return value, ok
}

// Factory returns the default factory.
func (m *DefaultMap) Factory() Factory {
	if m == nil {
		return nil
	}
	return m.factory
}

// Keys returns the stored keys in ascending order.
func (m *DefaultMap) Keys() []string {
	if m == nil || len(m.items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (m *DefaultMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.items)
}
