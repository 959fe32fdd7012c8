package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"gueststay/internal/app/eventstore"
)

const eventsTable = "guest_stay_events"

// EventStore keeps each stream in one partition clustered by version. An
// append is a single conditional batch, so it lands completely or not at all.
type EventStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewEventStore(session *gocql.Session, logger *slog.Logger) *EventStore {
	return &EventStore{session: session, logger: logger}
}

func (s *EventStore) Read(ctx context.Context, streamID string) ([]eventstore.Record, int64, error) {
	iter := s.session.Query(
		`SELECT event_id, version, name, payload, occurred_at, recorded_at FROM `+eventsTable+` WHERE stream_id = ?`,
		streamID,
	).WithContext(ctx).Iter()

	var (
		records    []eventstore.Record
		rec        eventstore.Record
		occurredAt time.Time
		recordedAt time.Time
	)
	for iter.Scan(&rec.ID, &rec.Version, &rec.Name, &rec.Payload, &occurredAt, &recordedAt) {
		rec.StreamID = streamID
		rec.OccurredAt = occurredAt.UTC()
		rec.RecordedAt = recordedAt.UTC()
		records = append(records, rec)
		rec = eventstore.Record{}
	}
	if err := iter.Close(); err != nil {
		return nil, 0, fmt.Errorf("scylla: read stream %s: %w", streamID, err)
	}
	return records, eventstore.Version(records), nil
}

func (s *EventStore) Append(ctx context.Context, streamID string, expectedVersion int64, records []eventstore.Record) (int64, error) {
	if len(records) == 0 {
		return expectedVersion, nil
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SerialConsistency(gocql.Serial)
	for _, rec := range records {
		batch.Query(
			`INSERT INTO `+eventsTable+` (stream_id, version, event_id, name, payload, occurred_at, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			streamID, rec.Version, rec.ID, rec.Name, rec.Payload, rec.OccurredAt, rec.RecordedAt,
		)
	}
	applied, iter, err := s.session.MapExecuteBatchCAS(batch, map[string]any{})
	if iter != nil {
		_ = iter.Close()
	}
	if err != nil {
		return 0, fmt.Errorf("scylla: append stream %s: %w", streamID, err)
	}
	if !applied {
		if s.logger != nil {
			s.logger.Debug("scylla append not applied", "stream_id", streamID, "expected_version", expectedVersion)
		}
		return 0, eventstore.ErrConcurrencyConflict
	}
	return expectedVersion + int64(len(records)), nil
}

// Ping runs a trivial query against the cluster.
func (s *EventStore) Ping(ctx context.Context) error {
	return s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Exec()
}

var _ eventstore.Store = (*EventStore)(nil)
