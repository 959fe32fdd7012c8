package outbox

import (
	"context"
	"strconv"
	"time"

	"gueststay/internal/app/eventstore"
)

// EventRecord is an integration message waiting to be relayed to the broker.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// FromStored converts a committed event record into an outbox entry.
func FromStored(rec eventstore.Record) EventRecord {
	return EventRecord{
		ID:         rec.ID,
		Name:       rec.Name,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		Aggregate:  rec.StreamID,
		Headers: map[string]string{
			"stream_version": strconv.FormatInt(rec.Version, 10),
		},
	}
}

// RecordCommitted adds every record to box. A nil box records nothing.
func RecordCommitted(ctx context.Context, box Outbox, records []eventstore.Record) error {
	if box == nil || len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := box.Add(ctx, FromStored(rec)); err != nil {
			return err
		}
	}
	return nil
}
