package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gueststay/internal/app/middleware"
)

const idempotencyCollection = "guest_stay_idempotency"

// IdempotencyStore keeps replayable command results. A TTL index removes
// records once expires_at passes; Get also ignores expired records because
// the TTL monitor runs only once a minute.
type IdempotencyStore struct {
	col *mongo.Collection
}

func NewIdempotencyStore(db *mongo.Database) *IdempotencyStore {
	return &IdempotencyStore{col: db.Collection(idempotencyCollection)}
}

func (s *IdempotencyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	rec := doc.toRecord()
	if rec.Expired(time.Now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": rec.Key}, newIdempotencyDocument(rec), options.Replace().SetUpsert(true))
	return err
}

// Reserve inserts the pending record, or takes over a record that expired
// before the TTL monitor removed it.
func (s *IdempotencyStore) Reserve(ctx context.Context, rec middleware.IdempotencyRecord) (bool, error) {
	doc := newIdempotencyDocument(rec)
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": rec.Key, "expires_at": bson.M{"$lte": rec.OccurredAt}}, doc)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": key, "pending": true})
	return err
}

type idempotencyDocument struct {
	ID          string     `bson:"_id"`
	Fingerprint string     `bson:"fingerprint"`
	Pending     bool       `bson:"pending"`
	Payload     []byte     `bson:"payload"`
	OccurredAt  time.Time  `bson:"occurred_at"`
	ExpiresAt   *time.Time `bson:"expires_at,omitempty"`
}

func newIdempotencyDocument(rec middleware.IdempotencyRecord) idempotencyDocument {
	doc := idempotencyDocument{
		ID:          rec.Key,
		Fingerprint: rec.Fingerprint,
		Pending:     rec.Pending,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt,
	}
	if !rec.ExpiresAt.IsZero() {
		at := rec.ExpiresAt
		doc.ExpiresAt = &at
	}
	return doc
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	rec := middleware.IdempotencyRecord{
		Key:         d.ID,
		Fingerprint: d.Fingerprint,
		Pending:     d.Pending,
		Payload:     d.Payload,
		OccurredAt:  d.OccurredAt,
	}
	if d.ExpiresAt != nil {
		rec.ExpiresAt = *d.ExpiresAt
	}
	return rec
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
