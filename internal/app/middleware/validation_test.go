package middleware

import (
	"context"
	"errors"
	"testing"

	"gueststay/internal/app/commands"
	"gueststay/internal/app/queries"
)

type rejectAll struct{}

func (rejectAll) Validate(context.Context, any) error {
	return errors.Join(ErrValidation, errors.New("amount must be positive"))
}

type lookup struct{}

func (lookup) Key() string { return "test.lookup" }

type askCounter struct{ calls int }

func (a *askCounter) Ask(context.Context, queries.Query) (any, error) {
	a.calls++
	return "ok", nil
}

func TestValidationStopsInvalidMessages(t *testing.T) {
	next := &countingBus{}
	bus := ChainCommands(next, Validation(rejectAll{}))
	if _, err := bus.Dispatch(context.Background(), chargeCommand{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if next.calls.Load() != 0 {
		t.Fatal("expected handler not to run")
	}

	qnext := &askCounter{}
	qbus := ChainQueries(qnext, QueryValidation(rejectAll{}))
	if _, err := qbus.Ask(context.Background(), lookup{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if qnext.calls != 0 {
		t.Fatal("expected query handler not to run")
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			nextFn := wrapCommand(next)
			return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return nextFn(ctx, cmd)
			})
		}
	}
	bus := ChainCommands(&countingBus{}, tag("outer"), tag("inner"))
	if _, err := bus.Dispatch(context.Background(), chargeCommand{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("unexpected order %v", order)
	}
}
