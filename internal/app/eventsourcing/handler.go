package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gueststay/internal/app/eventstore"
	"gueststay/internal/app/outbox"
	"gueststay/internal/app/uow"
	"gueststay/internal/domain/shared/events"
)

// DefaultMaxAttempts bounds the load-decide-append cycle under contention.
const DefaultMaxAttempts = 5

var (
	// ErrConflict means every attempt lost the optimistic concurrency race.
	ErrConflict = errors.New("eventsourcing: concurrency conflict after retries")
	// ErrExpectedVersionMismatch means the caller pinned a stream version
	// that is no longer current. It is never retried.
	ErrExpectedVersionMismatch = errors.New("eventsourcing: stream version does not match expected version")
	ErrHandlerNotConfigured    = errors.New("eventsourcing: handler missing dependencies")
)

// Envelope is a decoded event with its stream position.
type Envelope[E any] struct {
	ID         string
	StreamID   string
	Version    int64
	Event      E
	RecordedAt time.Time
}

// Codec converts domain events to and from their stored form.
type Codec[E any] interface {
	Encode(ev E) (name string, payload []byte, err error)
	Decode(name string, payload []byte) (E, error)
}

// Projection updates derived documents inside the command's unit of work.
// It receives the whole stream, already appended events included, so a
// projection can catch up from its own last applied version.
type Projection[E any] interface {
	Project(ctx context.Context, unit uow.UnitOfWork, streamID string, stream []Envelope[E]) error
}

// CommitHook runs after a successful commit with the stream version the
// commit produced. Failures are logged only.
type CommitHook interface {
	Committed(ctx context.Context, streamID string, version int64) error
}

// Decider turns the current state into new events or a domain failure.
type Decider[S, E any] func(state S) ([]E, error)

// Result describes a handled command.
type Result[E any] struct {
	StreamID            string
	NewEvents           []Envelope[E]
	NextExpectedVersion int64
}

// Events returns the bare new events.
func (r Result[E]) Events() []E {
	out := make([]E, 0, len(r.NewEvents))
	for _, env := range r.NewEvents {
		out = append(out, env.Event)
	}
	return out
}

type handleOptions struct {
	expectedVersion *int64
}

type Option func(*handleOptions)

// ExpectedVersion pins the stream version the caller last observed.
func ExpectedVersion(v int64) Option {
	return func(o *handleOptions) { o.expectedVersion = &v }
}

// CommandHandler runs the load-decide-append protocol for one stream type.
type CommandHandler[S any, E events.DomainEvent] struct {
	UoWFactory  uow.UoWFactory
	Codec       Codec[E]
	Initial     func() S
	Evolve      func(S, E) S
	Projections []Projection[E]
	Hooks       []CommitHook
	MaxAttempts int
	Logger      *slog.Logger
	Clock       func() time.Time
	NewEventID  func() string
}

// Handle loads the stream, decides and appends, retrying the whole cycle on
// concurrency conflicts up to MaxAttempts times.
func (h *CommandHandler[S, E]) Handle(ctx context.Context, streamID string, decide Decider[S, E], opts ...Option) (Result[E], error) {
	if h.UoWFactory == nil || h.Codec == nil || h.Initial == nil || h.Evolve == nil || decide == nil {
		return Result[E]{}, ErrHandlerNotConfigured
	}
	var o handleOptions
	for _, opt := range opts {
		opt(&o)
	}
	maxAttempts := h.maxAttempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[E]{}, err
		}
		res, err := h.attempt(ctx, streamID, decide, o)
		if err == nil {
			h.afterCommit(ctx, streamID, res)
			return res, nil
		}
		if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return Result[E]{}, err
		}
		lastErr = err
		h.log().Debug("stream append conflict, retrying", "stream_id", streamID, "attempt", attempt, "max_attempts", maxAttempts)
	}
	return Result[E]{}, fmt.Errorf("%w: stream %s after %d attempts: %w", ErrConflict, streamID, maxAttempts, lastErr)
}

func (h *CommandHandler[S, E]) attempt(ctx context.Context, streamID string, decide Decider[S, E], o handleOptions) (Result[E], error) {
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return Result[E]{}, err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	records, version, err := unit.Events().Read(execCtx, streamID)
	if err != nil {
		return Result[E]{}, err
	}
	if o.expectedVersion != nil && *o.expectedVersion != version {
		return Result[E]{}, fmt.Errorf("%w: expected %d, current %d", ErrExpectedVersionMismatch, *o.expectedVersion, version)
	}
	stream, err := h.decode(records)
	if err != nil {
		return Result[E]{}, err
	}
	state := h.Initial()
	for _, env := range stream {
		state = h.Evolve(state, env.Event)
	}

	newEvents, err := decide(state)
	if err != nil {
		return Result[E]{}, err
	}
	if len(newEvents) == 0 {
		return Result[E]{StreamID: streamID, NextExpectedVersion: version}, nil
	}

	pending, err := h.encode(newEvents)
	if err != nil {
		return Result[E]{}, err
	}
	pending = eventstore.Sequence(streamID, version, pending)
	newVersion, err := unit.Events().Append(execCtx, streamID, version, pending)
	if err != nil {
		return Result[E]{}, err
	}

	appended := make([]Envelope[E], len(newEvents))
	for i, ev := range newEvents {
		appended[i] = Envelope[E]{
			ID:         pending[i].ID,
			StreamID:   streamID,
			Version:    pending[i].Version,
			Event:      ev,
			RecordedAt: pending[i].RecordedAt,
		}
	}
	res := Result[E]{StreamID: streamID, NewEvents: appended, NextExpectedVersion: newVersion}
	full := append(stream, appended...)
	for _, p := range h.Projections {
		if err := p.Project(execCtx, unit, streamID, full); err != nil {
			return h.deferred(ctx, res, err)
		}
	}
	if err := outbox.RecordCommitted(execCtx, unit.Outbox(), pending); err != nil {
		return h.deferred(ctx, res, err)
	}

	if err := unit.Commit(execCtx); err != nil {
		return h.deferred(ctx, res, err)
	}
	committed = true
	return res, nil
}

// deferred turns a failure after a durable append into success when the
// unit reports the projection as deferred.
func (h *CommandHandler[S, E]) deferred(ctx context.Context, res Result[E], err error) (Result[E], error) {
	if !errors.Is(err, uow.ErrProjectionDeferred) {
		return Result[E]{}, err
	}
	h.log().WarnContext(ctx, "events appended, projection deferred", "stream_id", res.StreamID, "version", res.NextExpectedVersion, "error", err)
	return res, nil
}

func (h *CommandHandler[S, E]) decode(records []eventstore.Record) ([]Envelope[E], error) {
	out := make([]Envelope[E], 0, len(records))
	for _, rec := range records {
		ev, err := h.Codec.Decode(rec.Name, rec.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, Envelope[E]{
			ID:         rec.ID,
			StreamID:   rec.StreamID,
			Version:    rec.Version,
			Event:      ev,
			RecordedAt: rec.RecordedAt,
		})
	}
	return out, nil
}

func (h *CommandHandler[S, E]) encode(evs []E) ([]eventstore.Record, error) {
	now := h.now()
	out := make([]eventstore.Record, 0, len(evs))
	for _, ev := range evs {
		name, payload, err := h.Codec.Encode(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, eventstore.Record{
			ID:         h.eventID(),
			Name:       name,
			Payload:    payload,
			OccurredAt: ev.OccurredAt(),
			RecordedAt: now,
		})
	}
	return out, nil
}

func (h *CommandHandler[S, E]) afterCommit(ctx context.Context, streamID string, res Result[E]) {
	if len(res.NewEvents) == 0 {
		return
	}
	for _, hook := range h.Hooks {
		if err := hook.Committed(ctx, streamID, res.NextExpectedVersion); err != nil {
			h.log().Warn("post-commit hook failed", "stream_id", streamID, "version", res.NextExpectedVersion, "error", err)
		}
	}
}

func (h *CommandHandler[S, E]) maxAttempts() int {
	if h.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return h.MaxAttempts
}

func (h *CommandHandler[S, E]) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

func (h *CommandHandler[S, E]) eventID() string {
	if h.NewEventID != nil {
		return h.NewEventID()
	}
	return uuid.NewString()
}

func (h *CommandHandler[S, E]) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
