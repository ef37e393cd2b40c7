package activity

// DefaultLimit is how many entries the Logs and Network lists keep.
const DefaultLimit = 200

// Ring is a bounded FIFO list: once full, each push evicts the oldest entry.
type Ring[T any] struct {
	limit int
	items []T
}

// NewRing returns an empty ring. A limit below 1 uses DefaultLimit.
func NewRing[T any](limit int) *Ring[T] {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Ring[T]{limit: limit}
}

// Push appends v and reports whether an entry was evicted.
func (r *Ring[T]) Push(v T) bool {
	r.items = append(r.items, v)
	if len(r.items) > r.limit {
		var zero T
		r.items[0] = zero
		r.items = r.items[1:]
		return true
	}
	return false
}

// Items returns the entries oldest first.
func (r *Ring[T]) Items() []T {
	return append([]T(nil), r.items...)
}

func (r *Ring[T]) Len() int   { return len(r.items) }
func (r *Ring[T]) Limit() int { return r.limit }

// Clear drops every entry.
func (r *Ring[T]) Clear() {
	r.items = nil
}
