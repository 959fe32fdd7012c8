package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"gueststay/internal/app/commands"
)

// IdempotentCommand is implemented by commands that carry a client supplied
// idempotency key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // pointer to the handler result type
}

// IdempotencyRecord is the stored outcome of one keyed command. A pending
// record is written before the command runs and completed after it succeeds.
type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	Pending     bool
	Payload     []byte
	OccurredAt  time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the record may be ignored at now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	// Reserve stores rec unless a record for its key is live at
	// rec.OccurredAt, and reports whether it did.
	Reserve(ctx context.Context, rec IdempotencyRecord) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	// Release drops a pending record so the command can be retried.
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	// ErrIdempotencyKeyReused means the key was first used with a different
	// command payload.
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key reused with a different request")
	// ErrIdempotencyInProgress means the key is reserved by an execution
	// whose outcome is not recorded.
	ErrIdempotencyInProgress = errors.New("middleware: request with this idempotency key is in progress")

	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
)

// IdempotencyOptions tune the Idempotency middleware.
type IdempotencyOptions struct {
	Codec  ResultCodec
	TTL    time.Duration
	Clock  func() time.Time
	Logger *slog.Logger
}

// Idempotency replays the stored result of a successful command when the same
// key is presented again with the same payload. The key is reserved before
// the command runs, so a command whose result could not be recorded is
// reported as in progress instead of being executed twice. Failed commands
// release the key so the client can retry them. Keys are scoped by command
// key; concurrent duplicates in this process share one execution.
func Idempotency(store IdempotencyStore, opts IdempotencyOptions) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONResultCodec{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var group singleflight.Group
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			fingerprint, err := fingerprintOf(cmd)
			if err != nil {
				return nil, err
			}
			key := idCmd.Key() + ":" + idCmd.IdempotencyKey()
			res, err, _ := group.Do(key+"#"+fingerprint, func() (any, error) {
				now := clock().UTC()
				if res, done, err := replay(ctx, store, codec, idCmd, key, fingerprint, now); done {
					return res, err
				}
				reservation := IdempotencyRecord{Key: key, Fingerprint: fingerprint, Pending: true, OccurredAt: now}
				if opts.TTL > 0 {
					reservation.ExpiresAt = now.Add(opts.TTL)
				}
				reserved, err := store.Reserve(ctx, reservation)
				if err != nil {
					return nil, err
				}
				if !reserved {
					if res, done, err := replay(ctx, store, codec, idCmd, key, fingerprint, now); done {
						return res, err
					}
					return nil, ErrIdempotencyInProgress
				}

				result, err := nextFn(ctx, cmd)
				if err != nil {
					if relErr := store.Release(ctx, key); relErr != nil {
						logger.WarnContext(ctx, "idempotency key release failed", "key", key, "error", relErr)
					}
					return nil, err
				}
				record := reservation
				record.Pending = false
				if result != nil {
					payload, encErr := codec.Encode(result)
					if encErr != nil {
						logger.WarnContext(ctx, "idempotent result not recorded", "key", key, "error", encErr)
						return result, nil
					}
					record.Payload = payload
				}
				if saveErr := store.Save(ctx, record); saveErr != nil {
					logger.WarnContext(ctx, "idempotent result not recorded", "key", key, "error", saveErr)
				}
				return result, nil
			})
			return res, err
		})
	}
}

// replay answers from a live record for key. done is false when there is no
// such record and the command has to run.
func replay(ctx context.Context, store IdempotencyStore, codec ResultCodec, cmd IdempotentCommand, key, fingerprint string, now time.Time) (any, bool, error) {
	rec, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, true, err
	}
	if !found || rec.Expired(now) {
		return nil, false, nil
	}
	if rec.Fingerprint != fingerprint {
		return nil, true, ErrIdempotencyKeyReused
	}
	if rec.Pending {
		return nil, true, ErrIdempotencyInProgress
	}
	if len(rec.Payload) == 0 {
		return nil, true, nil
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, true, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, true, err
	}
	return normalizePrototype(proto), true, nil
}

// fingerprintOf hashes the command payload so a key reused for another
// request is detected.
func fingerprintOf(cmd commands.Command) (string, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("middleware: fingerprint %s: %w", cmd.Key(), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizePrototype dereferences the decoded prototype so replays return the
// same value type as the first execution.
func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
