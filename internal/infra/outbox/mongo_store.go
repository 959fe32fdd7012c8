package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "gueststay/internal/app/outbox"
)

const collectionName = "guest_stay_outbox"

// MongoStore keeps outbox messages in MongoDB. Add joins the session carried
// by ctx, so entries commit together with the events they describe.
type MongoStore struct {
	col   *mongo.Collection
	clock func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(collectionName), clock: time.Now}
}

// EnsureIndexes creates the claim index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}},
	})
	return err
}

func (s *MongoStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := s.clock().UTC()
	_, err := s.col.InsertOne(ctx, Message{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	})
	return err
}

func (s *MongoStore) Claim(ctx context.Context, workerID string, now time.Time, lease time.Duration) (*Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": bson.A{StateNew, StateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": StateClaimed, "claimed_at": bson.M{"$lte": now.Add(-lease)}},
	}}
	update := bson.M{"$set": bson.M{"state": StateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	var msg Message
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (s *MongoStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": StateSent, "sent_at": at}})
	return err
}

func (s *MongoStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           StateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

var (
	_ appoutbox.Outbox = (*MongoStore)(nil)
	_ Store            = (*MongoStore)(nil)
)
