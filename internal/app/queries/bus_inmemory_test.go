package queries

import (
	"context"
	"errors"
	"testing"
)

type lookupQuery struct{ ID string }

func (lookupQuery) Key() string { return "test.lookup" }

func TestAskTyped(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[lookupQuery, int](bus, "test.lookup", HandlerFunc[lookupQuery, int](func(_ context.Context, q lookupQuery) (int, error) {
		if q.ID == "" {
			return 0, errors.New("missing id")
		}
		return len(q.ID), nil
	}))

	n, err := Ask[lookupQuery, int](context.Background(), bus, lookupQuery{ID: "abc"})
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d (%v)", n, err)
	}
	if _, err := Ask[lookupQuery, int](context.Background(), bus, lookupQuery{}); err == nil {
		t.Fatal("expected handler error")
	}
	if _, err := Ask[lookupQuery, string](context.Background(), bus, lookupQuery{ID: "x"}); !errors.Is(err, ErrResultType) {
		t.Fatalf("expected ErrResultType, got %v", err)
	}
	if _, err := NewInMemoryBus().Ask(context.Background(), lookupQuery{}); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}
