package application

import (
	"context"

	"github.com/mateusmacedo/bus-booking/pkg/domain"
)

type EventHandler[E domain.Event[T], T any] interface {
	Handle(ctx context.Context, event E) error
}

// EventBus fans an event out to every handler registered under its name and to
// the configured transport, if any.
type EventBus[E domain.Event[D], D any] interface {
	RegisterHandler(eventName string, handler EventHandler[E, D])
	Publish(ctx context.Context, event E) error
}

type EventHandlerFunc[E domain.Event[T], T any] func(ctx context.Context, event E) error

func (f EventHandlerFunc[E, T]) Handle(ctx context.Context, event E) error {
	return f(ctx, event)
}
