package outbox

import (
	"context"
	"time"
)

const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// Message is an outbox entry as the relay worker sees it.
type Message struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   time.Time         `bson:"claimed_at,omitempty"`
	SentAt      time.Time         `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

// Store hands out pending messages to relay workers. Claim returns nil when
// nothing is due. A claim older than lease is considered abandoned.
type Store interface {
	Claim(ctx context.Context, workerID string, now time.Time, lease time.Duration) (*Message, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
