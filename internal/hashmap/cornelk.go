// Package hashmap provides a typed wrapper around a lock-free hash map,
// used where a lookup table is read far more often than it is written.
package hashmap

import (
	"fmt"
	"log"
	"reflect"

	"github.com/zhangjyr/hashmap"
)

// CornelkMap is a generic, concurrency-safe map backed by
// github.com/zhangjyr/hashmap. Unlike a plain sync.Map, it resolves string
// keys through a fast path and exposes a typed Load/Store/Delete surface.
type CornelkMap[K any, V any] struct {
	hashmap   *hashmap.HashMap
	stringKey bool
}

// NewCornelkMap constructs an empty map sized for size entries.
func NewCornelkMap[K any, V any](size int) *CornelkMap[K, V] {
	var key K
	if size <= 0 {
		// github.com/zhangjyr/hashmap.New panics on a size of 0 (log2 of 0
		// in its internal grow logic); clamp to its own DefaultSize.
		size = hashmap.DefaultSize
	}
	return &CornelkMap[K, V]{
		stringKey: reflect.TypeOf(key).Kind() == reflect.String,
		hashmap:   hashmap.New((uintptr)(size)),
	}
}

// Store inserts or overwrites the value under key.
func (m *CornelkMap[K, V]) Store(key K, val V) {
	m.hashmap.Set(key, val)
}

// Delete removes key, if present.
func (m *CornelkMap[K, V]) Delete(key K) {
	m.hashmap.Del(key)
}

// Load returns the value stored under key, if any.
func (m *CornelkMap[K, V]) Load(key K) (ret V, ok bool) {
	v, ok := m.get(key)
	if v != nil {
		ret, ok = v.(V)
		if !ok {
			log.Panicf("CornelkMap.Load: type mismatch %v\n", v)
			panic(fmt.Sprintf("CornelkMap.Load: type mismatch %v\n", v))
		}
	}
	return ret, ok
}

// Len returns the number of entries currently stored.
func (m *CornelkMap[K, V]) Len() int {
	return m.hashmap.Len()
}

// Range calls cb for every stored entry until cb returns false. Iteration
// order is unspecified.
func (m *CornelkMap[K, V]) Range(cb func(K, V) bool) {
	next := true
	for item := range m.hashmap.Iter() {
		if next {
			v, _ := item.Value.(V)
			next = cb(item.Key.(K), v)
		}
	}
}

func (m *CornelkMap[K, V]) get(key K) (interface{}, bool) {
	if m.stringKey {
		return m.hashmap.GetStringKey(m.assertString(key))
	}
	return m.hashmap.Get(key)
}

func (m *CornelkMap[K, V]) assertString(str interface{}) string {
	return str.(string)
}
