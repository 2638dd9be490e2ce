package domain

// Event is a fact that already happened, addressed by name.
type Event[T any] interface {
	EventName() string
	Payload() T
}

type namedEvent[T any] struct {
	name    string
	payload T
}

func (e namedEvent[T]) EventName() string { return e.name }
func (e namedEvent[T]) Payload() T        { return e.payload }

// NewEvent builds an Event carrying payload under name.
func NewEvent[T any](name string, payload T) Event[T] {
	return namedEvent[T]{name: name, payload: payload}
}
