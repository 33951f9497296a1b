package dispatcher

// Cursor is an ordered event source that can be inspected before it is consumed.
// Peek reports false once the source is exhausted. Advance moves past the event
// returned by Peek and surfaces any error hit while reading the next one.
type Cursor[T any] interface {
	Peek() (T, bool)
	Advance() error
}
