package dispatcher

// SliceCursor walks an in-memory, already ordered slice.
type SliceCursor[T any] struct {
	events []T
	pos    int
}

func NewSliceCursor[T any](events []T) *SliceCursor[T] {
	return &SliceCursor[T]{events: events}
}

func (c *SliceCursor[T]) Peek() (T, bool) {
	if c.pos >= len(c.events) {
		var zero T
		return zero, false
	}
	return c.events[c.pos], true
}

func (c *SliceCursor[T]) Advance() error {
	if c.pos < len(c.events) {
		c.pos++
	}
	return nil
}

// Remaining is the number of events not yet consumed.
func (c *SliceCursor[T]) Remaining() int {
	return len(c.events) - c.pos
}
