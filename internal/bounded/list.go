// Package bounded provides a capacity-bounded, newest-first list.
//
// Inserting into a full list evicts the oldest element and hands it to the
// eviction callback, so resources held by evicted elements can be released.
package bounded

// List keeps at most capacity elements, newest first. It is not safe for
// concurrent use; callers serialise access.
type List[T any] struct {
	items    []T
	capacity int
	onEvict  func(T)
}

// New creates a List. A nil onEvict is allowed.
func New[T any](capacity int, onEvict func(T)) *List[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &List[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// PushFront inserts v as the newest element, evicting the oldest when full.
func (l *List[T]) PushFront(v T) {
	l.items = append(l.items, v)
	copy(l.items[1:], l.items[:len(l.items)-1])
	l.items[0] = v

	for len(l.items) > l.capacity {
		last := len(l.items) - 1
		evicted := l.items[last]
		var zero T
		l.items[last] = zero
		l.items = l.items[:last]
		if l.onEvict != nil {
			l.onEvict(evicted)
		}
	}
}

// Items returns a copy of the elements, newest first.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of elements.
func (l *List[T]) Len() int { return len(l.items) }

// Cap returns the capacity.
func (l *List[T]) Cap() int { return l.capacity }

// Find returns the first element matching pred.
func (l *List[T]) Find(pred func(T) bool) (T, bool) {
	for _, v := range l.items {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the first element matching pred and returns it. The
// eviction callback is not invoked; the caller owns the removed element.
func (l *List[T]) Remove(pred func(T) bool) (T, bool) {
	for i, v := range l.items {
		if pred(v) {
			copy(l.items[i:], l.items[i+1:])
			var zero T
			l.items[len(l.items)-1] = zero
			l.items = l.items[:len(l.items)-1]
			return v, true
		}
	}
	var zero T
	return zero, false
}
