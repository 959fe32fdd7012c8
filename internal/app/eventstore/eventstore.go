package eventstore

import (
	"context"
	"errors"
	"time"
)

// ErrConcurrencyConflict is returned by Append when the stream moved past the
// expected version.
var ErrConcurrencyConflict = errors.New("eventstore: concurrency conflict")

// Record is one encoded event on a stream. Version starts at 1 for the first
// event of a stream.
type Record struct {
	ID         string
	StreamID   string
	Version    int64
	Name       string
	Payload    []byte
	OccurredAt time.Time
	RecordedAt time.Time
}

// Store is an append-only, per-stream event log.
type Store interface {
	// Read returns all records of the stream in order and the current stream
	// version (0 for an empty stream).
	Read(ctx context.Context, streamID string) ([]Record, int64, error)
	// Append writes records atomically when the stream is still at
	// expectedVersion and returns the new version. Record versions are
	// assigned by the caller as expectedVersion+1, expectedVersion+2, ...
	Append(ctx context.Context, streamID string, expectedVersion int64, records []Record) (int64, error)
}

// Sequence stamps stream id and consecutive versions onto records.
func Sequence(streamID string, expectedVersion int64, records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		rec.StreamID = streamID
		rec.Version = expectedVersion + int64(i) + 1
		out[i] = rec
	}
	return out
}

// Version returns the version of the last record or 0.
func Version(records []Record) int64 {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].Version
}
