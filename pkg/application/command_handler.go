package application

import (
	"context"

	"github.com/mateusmacedo/bus-booking/pkg/domain"
)

// CommandHandler handles one kind of command.
type CommandHandler[C domain.Command[T], T any] interface {
	Handle(ctx context.Context, command C) error
}

// CommandBus routes commands to the handler registered under their name.
type CommandBus[C domain.Command[T], T any] interface {
	RegisterHandler(commandName string, handler CommandHandler[C, T])
	Dispatch(ctx context.Context, command C) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc[C domain.Command[T], T any] func(ctx context.Context, command C) error

func (f CommandHandlerFunc[C, T]) Handle(ctx context.Context, command C) error {
	return f(ctx, command)
}
