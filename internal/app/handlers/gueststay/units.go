package gueststay

import (
	"context"

	"gueststay/internal/app/uow"
)

// beginReadOnly reuses a unit already bound to ctx or starts a read-only one.
// The returned release func is never nil.
func beginReadOnly(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	return unit, execCtx, func() { _ = unit.Rollback(execCtx) }, nil
}
