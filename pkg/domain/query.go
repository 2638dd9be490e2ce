package domain

// Query is a read request, addressed by name.
type Query[T any] interface {
	QueryName() string
	Payload() T
}

type namedQuery[T any] struct {
	name    string
	payload T
}

func (q namedQuery[T]) QueryName() string { return q.name }
func (q namedQuery[T]) Payload() T        { return q.payload }

// NewQuery builds a Query carrying payload under name.
func NewQuery[T any](name string, payload T) Query[T] {
	return namedQuery[T]{name: name, payload: payload}
}
