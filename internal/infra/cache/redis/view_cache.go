package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// setIfNotOlder writes ARGV[1] unless the stored entry carries a version
// greater than ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
var setIfNotOlder = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, entry = pcall(cjson.decode, current)
  if ok and type(entry) == 'table' then
    local stored = tonumber(entry['v'])
    if stored and stored > tonumber(ARGV[2]) then
      return 0
    end
  end
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// entry is the stored form. An entry with Gone set marks an invalidation and
// reads as a miss.
type entry[T any] struct {
	Version int64 `json:"v"`
	Gone    bool  `json:"gone,omitempty"`
	Value   *T    `json:"value,omitempty"`
}

// ViewCache is a JSON-backed Redis cache for one versioned read model type.
// Writes are compare-and-set on the version, so a late writer never replaces
// a newer document. A zero TTL keeps keys until they are replaced.
// Transport errors are logged and treated as misses.
type ViewCache[T any] struct {
	client  goredis.Cmdable
	prefix  string
	ttl     time.Duration
	version func(T) int64
	logger  *slog.Logger
}

func NewViewCache[T any](client goredis.Cmdable, prefix string, ttl time.Duration, version func(T) int64, logger *slog.Logger) *ViewCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, version: version, logger: logger}
}

func (c *ViewCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WarnContext(ctx, "view cache read failed", "key", c.prefix+key, "error", err)
		}
		return zero, false
	}
	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.WarnContext(ctx, "view cache entry unreadable", "key", c.prefix+key, "error", err)
		return zero, false
	}
	if e.Gone || e.Value == nil {
		return zero, false
	}
	return *e.Value, true
}

// Set caches value unless a newer value or invalidation is already stored.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value T) {
	c.write(ctx, key, entry[T]{Version: c.version(value), Value: &value})
}

// Invalidate replaces the entry with a marker at version, turning away any
// Set of an older value.
func (c *ViewCache[T]) Invalidate(ctx context.Context, key string, version int64) {
	c.write(ctx, key, entry[T]{Version: version, Gone: true})
}

func (c *ViewCache[T]) write(ctx context.Context, key string, e entry[T]) {
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.WarnContext(ctx, "view cache marshal failed", "key", c.prefix+key, "error", err)
		return
	}
	err = setIfNotOlder.Run(ctx, c.client, []string{c.prefix + key}, string(data), e.Version, c.ttl.Milliseconds()).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		c.logger.WarnContext(ctx, "view cache write failed", "key", c.prefix+key, "error", err)
	}
}
