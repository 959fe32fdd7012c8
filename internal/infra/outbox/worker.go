package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Worker relays committed outbox messages to the broker as CloudEvents.
// Delivery is at least once; the CloudEvent id is the event id so consumers
// can drop duplicates.
type Worker struct {
	Store       Store
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Clock       func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.log().Error("outbox relay failed", "worker_id", w.ID, "error", err)
			}
		}
	}
}

// Drain relays up to BatchSize due messages and reports how many were sent.
// A failed publish is rescheduled and does not stop the batch.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		claimed, delivered, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !claimed {
			break
		}
		if delivered {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) processOnce(ctx context.Context) (claimed, delivered bool, err error) {
	now := w.now()
	msg, err := w.Store.Claim(ctx, w.ID, now, w.lease())
	if err != nil || msg == nil {
		return false, false, err
	}
	payload, headers, err := w.formatPayload(msg)
	if err == nil {
		err = w.Producer.Publish(ctx, w.topicFor(msg.Name), msg.Aggregate, payload, headers)
	}
	if err != nil {
		w.log().Warn("outbox publish failed", "message_id", msg.ID, "name", msg.Name, "attempts", msg.Attempts+1, "error", err)
		return true, false, w.Store.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts, now), err.Error())
	}
	return true, true, w.Store.MarkSent(ctx, msg.ID, now)
}

func (w *Worker) formatPayload(msg *Message) ([]byte, map[string]string, error) {
	var data json.RawMessage = msg.Payload
	if !json.Valid(data) {
		return nil, nil, errors.New("outbox: payload is not valid json")
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          w.source(),
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := msg.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_id":        msg.ID,
		"ce_type":      msg.Name + ".v1",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "guest_stay.charge_recorded" to "<prefix>guest_stay.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) lease() time.Duration {
	if w.Lease <= 0 {
		return time.Minute
	}
	return w.Lease
}

func (w *Worker) nextRetry(attempts int, now time.Time) time.Time {
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://gueststay"
}

func (w *Worker) now() time.Time {
	if w.Clock != nil {
		return w.Clock().UTC()
	}
	return time.Now().UTC()
}

func (w *Worker) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
