package application

import (
	"context"

	"github.com/mateusmacedo/bus-booking/pkg/domain"
)

// QueryHandler answers one kind of query.
type QueryHandler[Q domain.Query[T], T any, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// QueryBus routes queries to the handler registered under their name.
type QueryBus[Q domain.Query[D], D any, R any] interface {
	RegisterHandler(queryName string, handler QueryHandler[Q, D, R])
	Dispatch(ctx context.Context, query Q) (R, error)
}

// QueryHandlerFunc adapts a function to QueryHandler.
type QueryHandlerFunc[Q domain.Query[T], T any, R any] func(ctx context.Context, query Q) (R, error)

func (f QueryHandlerFunc[Q, T, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}
