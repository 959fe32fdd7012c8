package uow

import (
	"context"
	"errors"

	"gueststay/internal/app/eventstore"
	"gueststay/internal/app/outbox"
	"gueststay/internal/app/readmodel"
)

// ErrProjectionDeferred means the events of the unit are durable but the
// derived writes are not. The command has happened and must not be decided
// again; projections catch up on the next command for the stream.
var ErrProjectionDeferred = errors.New("uow: projection deferred to the next command on the stream")

// UnitOfWork coordinates the event log, the projected documents and the
// outbox inside one transaction boundary.
type UnitOfWork interface {
	Events() eventstore.Store
	StayDetails() readmodel.Store
	// Outbox may be nil when integration publishing is disabled.
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry a session downstream
// repositories must see through the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Bind returns ctx carrying unit, plus any session the unit injects.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
