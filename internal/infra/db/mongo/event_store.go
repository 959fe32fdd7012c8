package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gueststay/internal/app/eventstore"
)

const eventsCollection = "guest_stay_events"

// EventStore keeps one document per event. The unique (stream_id, version)
// index turns a lost append race into a duplicate key error.
type EventStore struct {
	col *mongo.Collection
}

func NewEventStore(db *mongo.Database) *EventStore {
	return &EventStore{col: db.Collection(eventsCollection)}
}

func (s *EventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "stream_id", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("stream_version_unique"),
	})
	return err
}

func (s *EventStore) Read(ctx context.Context, streamID string) ([]eventstore.Record, int64, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{"stream_id": streamID}, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	records := make([]eventstore.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.toRecord())
	}
	return records, eventstore.Version(records), nil
}

func (s *EventStore) Append(ctx context.Context, streamID string, expectedVersion int64, records []eventstore.Record) (int64, error) {
	if len(records) == 0 {
		return expectedVersion, nil
	}
	docs := make([]any, 0, len(records))
	for _, rec := range records {
		rec.StreamID = streamID
		docs = append(docs, newEventDocument(rec))
	}
	if _, err := s.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return 0, asConflict(err)
	}
	return expectedVersion + int64(len(records)), nil
}

type eventDocument struct {
	ID         string    `bson:"_id"`
	StreamID   string    `bson:"stream_id"`
	Version    int64     `bson:"version"`
	Name       string    `bson:"name"`
	Payload    string    `bson:"payload"`
	OccurredAt time.Time `bson:"occurred_at"`
	RecordedAt time.Time `bson:"recorded_at"`
}

func newEventDocument(rec eventstore.Record) eventDocument {
	return eventDocument{
		ID:         rec.ID,
		StreamID:   rec.StreamID,
		Version:    rec.Version,
		Name:       rec.Name,
		Payload:    string(rec.Payload),
		OccurredAt: rec.OccurredAt,
		RecordedAt: rec.RecordedAt,
	}
}

func (d eventDocument) toRecord() eventstore.Record {
	return eventstore.Record{
		ID:         d.ID,
		StreamID:   d.StreamID,
		Version:    d.Version,
		Name:       d.Name,
		Payload:    []byte(d.Payload),
		OccurredAt: d.OccurredAt.UTC(),
		RecordedAt: d.RecordedAt.UTC(),
	}
}

var _ eventstore.Store = (*EventStore)(nil)
