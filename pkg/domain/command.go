package domain

// Command is a request to change state, addressed by name.
type Command[T any] interface {
	CommandName() string
	Payload() T
}

type namedCommand[T any] struct {
	name    string
	payload T
}

func (c namedCommand[T]) CommandName() string { return c.name }
func (c namedCommand[T]) Payload() T          { return c.payload }

// NewCommand builds a Command carrying payload under name. Transports use it to
// rebuild commands received off the wire.
func NewCommand[T any](name string, payload T) Command[T] {
	return namedCommand[T]{name: name, payload: payload}
}
