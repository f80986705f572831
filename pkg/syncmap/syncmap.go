package syncmap

import (
	"sync"
	"sync/atomic"
)

// Map is a type-safe wrapper around sync.Map that keeps an O(1) count.
type Map[K comparable, V any] struct {
	m     sync.Map
	count atomic.Int64
}

// Store stores the value for the key
func (m *Map[K, V]) Store(key K, value V) {
	if _, loaded := m.m.Swap(key, value); !loaded {
		m.count.Add(1)
	}
}

// Load loads the value for the key
func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.m.Load(key)
	if !ok {
		var zero V

		return zero, false
	}

	return value.(V), true
}

// Delete deletes the value for the key
func (m *Map[K, V]) Delete(key K) {
	if _, loaded := m.m.LoadAndDelete(key); loaded {
		m.count.Add(-1)
	}
}

// Range calls f for each key-value pair in the map until f returns false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value interface{}) bool {
		return f(key.(K), value.(V))
	})
}

// Values returns a snapshot of all values. Order is not defined.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())

	m.Range(func(_ K, value V) bool {
		values = append(values, value)

		return true
	})

	return values
}

// Count returns the number of items in the map
func (m *Map[K, V]) Count() int {
	return int(m.count.Load())
}
