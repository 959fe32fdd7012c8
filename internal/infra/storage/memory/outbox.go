package memory

import (
	"context"
	"time"

	infraoutbox "gueststay/internal/infra/outbox"
)

// Claim hands the oldest due message to a relay worker.
func (s *Store) Claim(ctx context.Context, workerID string, now time.Time, lease time.Duration) (*infraoutbox.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		due := (msg.State == infraoutbox.StateNew || msg.State == infraoutbox.StateFailed) && !msg.NextAttempt.After(now)
		abandoned := msg.State == infraoutbox.StateClaimed && !msg.ClaimedAt.After(now.Add(-lease))
		if !due && !abandoned {
			continue
		}
		msg.State = infraoutbox.StateClaimed
		msg.ClaimedBy = workerID
		msg.ClaimedAt = now
		out := *msg
		return &out, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := s.message(id); msg != nil {
		msg.State = infraoutbox.StateSent
		msg.SentAt = at
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := s.message(id); msg != nil {
		msg.State = infraoutbox.StateFailed
		msg.NextAttempt = next
		msg.LastError = errMsg
		msg.Attempts++
	}
	return nil
}

// Messages returns a snapshot of every outbox message in commit order.
func (s *Store) Messages() []infraoutbox.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]infraoutbox.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		out = append(out, *msg)
	}
	return out
}

func (s *Store) message(id string) *infraoutbox.Message {
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

var _ infraoutbox.Store = (*Store)(nil)
