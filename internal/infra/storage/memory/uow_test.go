package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"gueststay/internal/app/eventstore"
	"gueststay/internal/app/middleware"
	appoutbox "gueststay/internal/app/outbox"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
	infraoutbox "gueststay/internal/infra/outbox"
)

func records(streamID string, from int64, n int) []eventstore.Record {
	recs := make([]eventstore.Record, n)
	for i := range recs {
		recs[i] = eventstore.Record{ID: streamID + "-evt", Name: "guest_stay.charge_recorded", Payload: []byte(`{}`)}
	}
	return eventstore.Sequence(streamID, from, recs)
}

func begin(t *testing.T, store *Store, readOnly bool) uow.UnitOfWork {
	t.Helper()
	unit, err := Factory{Store: store}.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return unit
}

func TestUnitIsolatesUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	unit := begin(t, store, false)
	if _, err := unit.Events().Append(ctx, "s1", 0, records("s1", 0, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := unit.StayDetails().Upsert(ctx, readmodel.GuestStayDetails{ID: "s1", Version: 2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	_, version, err := unit.Events().Read(ctx, "s1")
	if err != nil || version != 2 {
		t.Fatalf("expected unit to see its own writes, got %d (%v)", version, err)
	}
	if store.StreamVersion("s1") != 0 {
		t.Fatal("expected staged append to be invisible before commit")
	}
	other := begin(t, store, true)
	if _, found, _ := other.StayDetails().ByID(ctx, "s1"); found {
		t.Fatal("expected staged document to be invisible before commit")
	}

	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.StreamVersion("s1") != 2 {
		t.Fatalf("expected version 2, got %d", store.StreamVersion("s1"))
	}
	if err := unit.Commit(ctx); !errors.Is(err, ErrUnitClosed) {
		t.Fatalf("expected ErrUnitClosed, got %v", err)
	}
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	first := begin(t, store, false)
	second := begin(t, store, false)

	if _, err := first.Events().Append(ctx, "s1", 0, records("s1", 0, 1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := second.Events().Append(ctx, "s1", 0, records("s1", 0, 1)); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := second.Commit(ctx); !errors.Is(err, eventstore.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict on second commit, got %v", err)
	}

	third := begin(t, store, false)
	if _, err := third.Events().Append(ctx, "s1", 0, records("s1", 0, 1)); !errors.Is(err, eventstore.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict on stale append, got %v", err)
	}
	if store.StreamVersion("s1") != 1 {
		t.Fatalf("expected version 1, got %d", store.StreamVersion("s1"))
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	ctx := context.Background()
	unit := begin(t, NewStore(), true)
	if _, err := unit.Events().Append(ctx, "s1", 0, records("s1", 0, 1)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := unit.StayDetails().Upsert(ctx, readmodel.GuestStayDetails{ID: "s1"}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestOutboxOnlyWhenEnabled(t *testing.T) {
	if unit := begin(t, NewStore(), false); unit.Outbox() != nil {
		t.Fatal("expected nil outbox when publishing is disabled")
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithOutbox(), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	unit := begin(t, store, false)
	if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "n"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(store.Messages()) != 0 {
		t.Fatal("expected outbox message to wait for commit")
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	msg, err := store.Claim(ctx, "w1", now, time.Minute)
	if err != nil || msg == nil || msg.ID != "e1" {
		t.Fatalf("expected to claim e1, got %v (%v)", msg, err)
	}
	if again, _ := store.Claim(ctx, "w2", now.Add(30*time.Second), time.Minute); again != nil {
		t.Fatal("expected leased message to stay with its worker")
	}
	reclaimed, _ := store.Claim(ctx, "w2", now.Add(2*time.Minute), time.Minute)
	if reclaimed == nil || reclaimed.ClaimedBy != "w2" {
		t.Fatalf("expected abandoned lease to be reclaimed, got %v", reclaimed)
	}
	if err := store.MarkSent(ctx, "e1", now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if store.Messages()[0].State != infraoutbox.StateSent {
		t.Fatalf("expected sent, got %s", store.Messages()[0].State)
	}
}

func TestIdempotencyStoreExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore()
	s.clock = func() time.Time { return now }
	ctx := context.Background()
	rec := middleware.IdempotencyRecord{Key: "k", Payload: []byte(`{}`), OccurredAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, found, _ := s.Get(ctx, "k"); !found {
		t.Fatal("expected record before expiry")
	}
	now = now.Add(time.Hour)
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatal("expected record to expire")
	}
}

func TestIdempotencyStoreReservation(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore()
	s.clock = func() time.Time { return now }
	ctx := context.Background()
	pending := middleware.IdempotencyRecord{Key: "k", Fingerprint: "f", Pending: true, OccurredAt: now, ExpiresAt: now.Add(time.Hour)}

	if ok, err := s.Reserve(ctx, pending); err != nil || !ok {
		t.Fatalf("expected first reservation, got %v (%v)", ok, err)
	}
	if ok, _ := s.Reserve(ctx, pending); ok {
		t.Fatal("expected a live reservation to block another")
	}

	done := pending
	done.Pending = false
	if err := s.Save(ctx, done); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if rec, found, _ := s.Get(ctx, "k"); !found || rec.Pending {
		t.Fatalf("expected completed record to survive release, got %+v (found=%v)", rec, found)
	}

	later := pending
	later.OccurredAt = now.Add(2 * time.Hour)
	later.ExpiresAt = later.OccurredAt.Add(time.Hour)
	if ok, _ := s.Reserve(ctx, later); !ok {
		t.Fatal("expected an expired record to be taken over")
	}
	if err := s.Release(ctx, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := s.Reserve(ctx, pending); !ok {
		t.Fatal("expected a released key to be reservable")
	}
}
