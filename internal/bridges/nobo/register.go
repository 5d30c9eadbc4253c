package nobo

import "github.com/samber/lo"

// Register is an id-keyed store holding one value per key.
//
// Thread Safety: Register is a plain map and is not safe for concurrent
// use. State serialises access to its registers.
type Register[K comparable, T any] struct {
	key    func(T) K
	values map[K]T
}

// NewRegister creates an empty register keyed by key(value).
func NewRegister[K comparable, T any](key func(T) K) *Register[K, T] {
	return &Register[K, T]{key: key, values: make(map[K]T)}
}

// Put stores v, replacing any value with the same key.
func (r *Register[K, T]) Put(v T) {
	r.values[r.key(v)] = v
}

// Get returns the value stored under k.
func (r *Register[K, T]) Get(k K) (T, bool) {
	v, ok := r.values[k]
	return v, ok
}

// Remove deletes and returns the value under k. Removing an absent key is
// not an error; ok is false.
func (r *Register[K, T]) Remove(k K) (T, bool) {
	v, ok := r.values[k]
	if ok {
		delete(r.values, k)
	}
	return v, ok
}

// Values returns all stored values in no particular order.
func (r *Register[K, T]) Values() []T {
	return lo.Values(r.values)
}

// Keys returns all keys in no particular order.
func (r *Register[K, T]) Keys() []K {
	return lo.Keys(r.values)
}

// IsEmpty reports whether the register holds no values.
func (r *Register[K, T]) IsEmpty() bool {
	return len(r.values) == 0
}

// Len returns the number of stored values.
func (r *Register[K, T]) Len() int {
	return len(r.values)
}
