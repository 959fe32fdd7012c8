package memory

import (
	"context"
	"sync"
	"time"

	"gueststay/internal/app/eventstore"
	appoutbox "gueststay/internal/app/outbox"
	"gueststay/internal/app/readmodel"
	infraoutbox "gueststay/internal/infra/outbox"
)

// Store is an in-process database for streams, stay documents and outbox
// messages. Units of work stage their writes and apply them atomically.
type Store struct {
	mu       sync.RWMutex
	streams  map[string][]eventstore.Record
	details  map[string]readmodel.GuestStayDetails
	messages []*infraoutbox.Message
	outbox   bool
	clock    func() time.Time
}

type Option func(*Store)

// WithOutbox makes committed events available to an outbox relay.
func WithOutbox() Option {
	return func(s *Store) { s.outbox = true }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		streams: make(map[string][]eventstore.Record),
		details: make(map[string]readmodel.GuestStayDetails),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamVersion reports the committed version of a stream.
func (s *Store) StreamVersion(streamID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventstore.Version(s.streams[streamID])
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) commit(u *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for streamID, pending := range u.appends {
		if eventstore.Version(s.streams[streamID]) != pending.expected {
			return eventstore.ErrConcurrencyConflict
		}
	}
	for streamID, pending := range u.appends {
		s.streams[streamID] = append(s.streams[streamID], pending.records...)
	}
	for id, doc := range u.docs {
		s.details[id] = cloneDetails(doc)
	}
	now := s.clock().UTC()
	for _, rec := range u.messages {
		s.messages = append(s.messages, &infraoutbox.Message{
			ID:          rec.ID,
			Name:        rec.Name,
			Payload:     rec.Payload,
			OccurredAt:  rec.OccurredAt,
			Aggregate:   rec.Aggregate,
			Headers:     rec.Headers,
			State:       infraoutbox.StateNew,
			NextAttempt: now,
			CreatedAt:   now,
		})
	}
	return nil
}

func cloneDetails(doc readmodel.GuestStayDetails) readmodel.GuestStayDetails {
	doc.Transactions = append([]readmodel.Transaction{}, doc.Transactions...)
	if doc.CheckedOutAt != nil {
		at := *doc.CheckedOutAt
		doc.CheckedOutAt = &at
	}
	return doc
}

var _ appoutbox.Outbox = unitOutbox{}
