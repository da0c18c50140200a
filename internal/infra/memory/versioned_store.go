package memory

import (
	"sync"

	"quiz-ranking-service/internal/domain"
)

// versioned keeps one record per key and rejects writes made against a stale version.
// Records are cloned on the way in and out so callers never share slices or maps with it.
type versioned[T any] struct {
	mu      sync.Mutex
	records map[string]record[T]
	clone   func(T) T
}

type record[T any] struct {
	value   T
	version int64
}

func newVersioned[T any](clone func(T) T) *versioned[T] {
	return &versioned[T]{records: make(map[string]record[T]), clone: clone}
}

// load returns the record and its version; ok is false when nothing was stored yet.
func (v *versioned[T]) load(key string) (T, int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.records[key]
	if !ok {
		var zero T
		return zero, 0, false
	}
	return v.clone(rec.value), rec.version, true
}

// compareAndSwap stores value when the current version equals expected.
func (v *versioned[T]) compareAndSwap(key string, expected int64, value T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.records[key].version != expected {
		return domain.ErrConflict
	}
	v.records[key] = record[T]{value: v.clone(value), version: expected + 1}
	return nil
}
