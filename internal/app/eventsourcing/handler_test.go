package eventsourcing_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/eventstore"
	"gueststay/internal/app/projections"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
	"gueststay/internal/domain/guests"
	"gueststay/internal/domain/shared/money"
	"gueststay/internal/infra/storage/memory"
)

const streamID = "guest_stay_account-g1:r1:2024-03-09"

var now = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

type recordingHook struct {
	mu      sync.Mutex
	streams []string
	err     error
}

func (h *recordingHook) Committed(_ context.Context, streamID string, _ int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams = append(h.streams, streamID)
	return h.err
}

func (h *recordingHook) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}

// flakyFactory makes the first failures appends lose the race.
type flakyFactory struct {
	uow.UoWFactory
	failures int32
	attempts atomic.Int32
}

func (f *flakyFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return flakyUnit{UnitOfWork: unit, factory: f}, nil
}

type flakyUnit struct {
	uow.UnitOfWork
	factory *flakyFactory
}

func (u flakyUnit) Events() eventstore.Store {
	return flakyEvents{Store: u.UnitOfWork.Events(), factory: u.factory}
}

type flakyEvents struct {
	eventstore.Store
	factory *flakyFactory
}

func (e flakyEvents) Append(ctx context.Context, streamID string, expected int64, records []eventstore.Record) (int64, error) {
	if e.factory.attempts.Add(1) <= e.factory.failures {
		return 0, eventstore.ErrConcurrencyConflict
	}
	return e.Store.Append(ctx, streamID, expected, records)
}

func newHandler(factory uow.UoWFactory, hooks ...eventsourcing.CommitHook) *eventsourcing.CommandHandler[guests.State, guests.Event] {
	return &eventsourcing.CommandHandler[guests.State, guests.Event]{
		UoWFactory:  factory,
		Codec:       guests.Codec{},
		Initial:     guests.Initial,
		Evolve:      guests.Evolve,
		Projections: []eventsourcing.Projection[guests.Event]{projections.GuestStayDetails{}},
		Hooks:       hooks,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       func() time.Time { return now },
	}
}

func checkIn(state guests.State) ([]guests.Event, error) {
	return guests.CheckInGuest{AccountID: streamID, GuestID: "g1", RoomID: "r1", Now: now}.Decide(state)
}

func charge(amount string) eventsourcing.Decider[guests.State, guests.Event] {
	return guests.RecordCharge{AccountID: streamID, ChargeID: amount, Amount: money.MustParse(amount), Now: now}.Decide
}

func readDetails(t *testing.T, store *memory.Store) (int64, money.Money) {
	t.Helper()
	unit, err := memory.Factory{Store: store}.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer unit.Rollback(context.Background())
	doc, found, err := unit.StayDetails().ByID(context.Background(), streamID)
	if err != nil || !found {
		t.Fatalf("expected details document, found=%v err=%v", found, err)
	}
	return doc.Version, doc.Balance
}

func TestHandleAppendsAndProjects(t *testing.T) {
	store := memory.NewStore()
	hook := &recordingHook{}
	h := newHandler(memory.Factory{Store: store}, hook)
	ctx := context.Background()

	res, err := h.Handle(ctx, streamID, checkIn)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if res.NextExpectedVersion != 1 || len(res.NewEvents) != 1 {
		t.Fatalf("expected one event at version 1, got %+v", res)
	}
	if _, err := h.Handle(ctx, streamID, charge("75")); err != nil {
		t.Fatalf("charge: %v", err)
	}

	version, balance := readDetails(t, store)
	if version != 2 || store.StreamVersion(streamID) != 2 {
		t.Fatalf("expected projection and stream at version 2, got %d and %d", version, store.StreamVersion(streamID))
	}
	if !balance.Equal(money.MustParse("-75")) {
		t.Fatalf("expected balance -75, got %s", balance)
	}
	if hook.calls() != 2 {
		t.Fatalf("expected two hook calls, got %d", hook.calls())
	}
}

func TestHandleNoEventsSkipsAppendAndHooks(t *testing.T) {
	store := memory.NewStore()
	hook := &recordingHook{}
	h := newHandler(memory.Factory{Store: store}, hook)
	ctx := context.Background()
	if _, err := h.Handle(ctx, streamID, checkIn); err != nil {
		t.Fatalf("check in: %v", err)
	}

	res, err := h.Handle(ctx, streamID, checkIn)
	if err != nil {
		t.Fatalf("repeat check in: %v", err)
	}
	if len(res.NewEvents) != 0 || res.NextExpectedVersion != 1 {
		t.Fatalf("expected no-op at version 1, got %+v", res)
	}
	if hook.calls() != 1 {
		t.Fatalf("expected hooks only for the first command, got %d", hook.calls())
	}
}

func TestHandleDomainErrorIsNotRetried(t *testing.T) {
	factory := &flakyFactory{UoWFactory: memory.Factory{Store: memory.NewStore()}}
	h := newHandler(factory)

	_, err := h.Handle(context.Background(), streamID, charge("5"))
	if !errors.Is(err, guests.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if factory.attempts.Load() != 0 {
		t.Fatalf("expected no append, got %d", factory.attempts.Load())
	}
}

func TestHandleRetriesConflicts(t *testing.T) {
	store := memory.NewStore()
	factory := &flakyFactory{UoWFactory: memory.Factory{Store: store}, failures: 2}
	h := newHandler(factory)

	res, err := h.Handle(context.Background(), streamID, checkIn)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if res.NextExpectedVersion != 1 || factory.attempts.Load() != 3 {
		t.Fatalf("expected success on third attempt, got version %d after %d attempts", res.NextExpectedVersion, factory.attempts.Load())
	}
}

func TestHandleGivesUpAfterMaxAttempts(t *testing.T) {
	store := memory.NewStore()
	hook := &recordingHook{}
	factory := &flakyFactory{UoWFactory: memory.Factory{Store: store}, failures: 100}
	h := newHandler(factory, hook)
	h.MaxAttempts = 3

	_, err := h.Handle(context.Background(), streamID, checkIn)
	if !errors.Is(err, eventsourcing.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if factory.attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", factory.attempts.Load())
	}
	if store.StreamVersion(streamID) != 0 || hook.calls() != 0 {
		t.Fatal("expected nothing committed")
	}
}

func TestHandleExpectedVersion(t *testing.T) {
	store := memory.NewStore()
	h := newHandler(memory.Factory{Store: store})
	ctx := context.Background()
	if _, err := h.Handle(ctx, streamID, checkIn); err != nil {
		t.Fatalf("check in: %v", err)
	}

	_, err := h.Handle(ctx, streamID, charge("10"), eventsourcing.ExpectedVersion(0))
	if !errors.Is(err, eventsourcing.ErrExpectedVersionMismatch) {
		t.Fatalf("expected ErrExpectedVersionMismatch, got %v", err)
	}
	if errors.Is(err, eventsourcing.ErrConflict) {
		t.Fatal("stale expected version must not be reported as a retry conflict")
	}

	res, err := h.Handle(ctx, streamID, charge("10"), eventsourcing.ExpectedVersion(1))
	if err != nil {
		t.Fatalf("charge at current version: %v", err)
	}
	if res.NextExpectedVersion != 2 {
		t.Fatalf("expected version 2, got %d", res.NextExpectedVersion)
	}
}

func TestHandleHookFailureDoesNotFailCommand(t *testing.T) {
	hook := &recordingHook{err: errors.New("cache down")}
	h := newHandler(memory.Factory{Store: memory.NewStore()}, hook)
	if _, err := h.Handle(context.Background(), streamID, checkIn); err != nil {
		t.Fatalf("expected success despite hook failure, got %v", err)
	}
}

func TestHandleRecordsOutbox(t *testing.T) {
	store := memory.NewStore(memory.WithOutbox())
	h := newHandler(memory.Factory{Store: store})
	ctx := context.Background()
	res, err := h.Handle(ctx, streamID, checkIn)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	msgs := store.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one outbox message, got %d", len(msgs))
	}
	if msgs[0].ID != res.NewEvents[0].ID || msgs[0].Name != guests.EventGuestCheckedIn || msgs[0].Aggregate != streamID {
		t.Fatalf("unexpected outbox message %+v", msgs[0])
	}
}

func TestHandleConcurrentCharges(t *testing.T) {
	store := memory.NewStore()
	h := newHandler(memory.Factory{Store: store})
	h.MaxAttempts = 32
	ctx := context.Background()
	if _, err := h.Handle(ctx, streamID, checkIn); err != nil {
		t.Fatalf("check in: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(ctx, streamID, charge("1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("charge: %v", err)
		}
	}

	version, balance := readDetails(t, store)
	if store.StreamVersion(streamID) != workers+1 || version != workers+1 {
		t.Fatalf("expected version %d, got stream %d projection %d", workers+1, store.StreamVersion(streamID), version)
	}
	if !balance.Equal(money.MustParse("-16")) {
		t.Fatalf("expected balance -16, got %s", balance)
	}
}

// deferringFactory fails every commit after the append, the way a unit with an
// external event log reports a lost document write.
type deferringFactory struct {
	uow.UoWFactory
}

func (f deferringFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return deferringUnit{UnitOfWork: unit}, nil
}

type deferringUnit struct {
	uow.UnitOfWork
}

func (u deferringUnit) Commit(ctx context.Context) error {
	_ = u.UnitOfWork.Rollback(ctx)
	return fmt.Errorf("%w: write conflict", uow.ErrProjectionDeferred)
}

func TestHandleDeferredProjectionIsSuccess(t *testing.T) {
	hook := &recordingHook{}
	h := newHandler(deferringFactory{memory.Factory{Store: memory.NewStore()}}, hook)
	res, err := h.Handle(context.Background(), streamID, checkIn)
	if err != nil {
		t.Fatalf("expected deferred projection to succeed, got %v", err)
	}
	if res.NextExpectedVersion != 1 || len(res.NewEvents) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if hook.calls() != 1 {
		t.Fatalf("expected hooks to run once, got %d", hook.calls())
	}
}

// unreadableDetailsFactory fails the projection's document read after the
// append has already been staged.
type unreadableDetailsFactory struct {
	uow.UoWFactory
	err error
}

func (f unreadableDetailsFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return unreadableDetailsUnit{UnitOfWork: unit, err: f.err}, nil
}

type unreadableDetailsUnit struct {
	uow.UnitOfWork
	err error
}

func (u unreadableDetailsUnit) StayDetails() readmodel.Store {
	return unreadableDetails{Store: u.UnitOfWork.StayDetails(), err: u.err}
}

type unreadableDetails struct {
	readmodel.Store
	err error
}

func (d unreadableDetails) ByID(context.Context, string) (readmodel.GuestStayDetails, bool, error) {
	return readmodel.GuestStayDetails{}, false, d.err
}

func TestHandleProjectionReadFailure(t *testing.T) {
	deferred := fmt.Errorf("%w: %w", uow.ErrProjectionDeferred, context.Canceled)
	h := newHandler(unreadableDetailsFactory{UoWFactory: memory.Factory{Store: memory.NewStore()}, err: deferred})
	res, err := h.Handle(context.Background(), streamID, checkIn)
	if err != nil || res.NextExpectedVersion != 1 {
		t.Fatalf("expected deferred read to count as applied, got %+v, %v", res, err)
	}

	plain := errors.New("connection reset")
	h = newHandler(unreadableDetailsFactory{UoWFactory: memory.Factory{Store: memory.NewStore()}, err: plain})
	if _, err := h.Handle(context.Background(), streamID, checkIn); !errors.Is(err, plain) {
		t.Fatalf("expected plain read failure to surface, got %v", err)
	}
}
