package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"gueststay/internal/app/readmodel"
	"gueststay/internal/domain/shared/money"
)

// fakeRedis implements the commands ViewCache issues. EvalSha applies the
// same version comparison as setIfNotOlder.
type fakeRedis struct {
	goredis.Cmdable
	data map[string][]byte
	ttls map[string]time.Duration
	fail error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.fail != nil {
		return goredis.NewStringResult("", f.fail)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...any) *goredis.Cmd {
	if f.fail != nil {
		return goredis.NewCmdResult(nil, f.fail)
	}
	payload, version, ttlMillis := args[0].(string), args[1].(int64), args[2].(int64)
	if current, ok := f.data[keys[0]]; ok {
		var stored struct {
			Version *int64 `json:"v"`
		}
		if json.Unmarshal(current, &stored) == nil && stored.Version != nil && *stored.Version > version {
			return goredis.NewCmdResult(int64(0), nil)
		}
	}
	f.data[keys[0]] = []byte(payload)
	f.ttls[keys[0]] = time.Duration(ttlMillis) * time.Millisecond
	return goredis.NewCmdResult(int64(1), nil)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStayDetailsCache(t *testing.T) {
	client := newFakeRedis()
	cache := NewStayDetailsCache(client, time.Minute, discard())
	ctx := context.Background()
	doc := readmodel.GuestStayDetails{ID: "acc-1", Status: readmodel.StatusCheckedIn, Balance: money.MustParse("-12.5"), Version: 3}

	if _, ok := cache.Get(ctx, "acc-1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	cache.Set(ctx, "acc-1", doc)
	if client.ttls["guest_stay:details:acc-1"] != time.Minute {
		t.Fatalf("expected prefixed key with ttl, got %v", client.ttls)
	}
	got, ok := cache.Get(ctx, "acc-1")
	if !ok || got.Version != 3 || !got.Balance.Equal(doc.Balance) {
		t.Fatalf("unexpected cached document %+v", got)
	}
	cache.Invalidate(ctx, "acc-1", 4)
	if _, ok := cache.Get(ctx, "acc-1"); ok {
		t.Fatal("expected miss after invalidation")
	}
}

func TestStayDetailsCacheRejectsOlderDocuments(t *testing.T) {
	client := newFakeRedis()
	cache := NewStayDetailsCache(client, time.Minute, discard())
	ctx := context.Background()
	at := func(v int64) readmodel.GuestStayDetails {
		return readmodel.GuestStayDetails{ID: "acc-1", Status: readmodel.StatusCheckedIn, Version: v}
	}

	// a reader loaded version 1, then a command committed version 2
	cache.Invalidate(ctx, "acc-1", 2)
	cache.Set(ctx, "acc-1", at(1))
	if doc, ok := cache.Get(ctx, "acc-1"); ok {
		t.Fatalf("expected stale document to be refused, got version %d", doc.Version)
	}

	cache.Set(ctx, "acc-1", at(2))
	cache.Set(ctx, "acc-1", at(1))
	doc, ok := cache.Get(ctx, "acc-1")
	if !ok || doc.Version != 2 {
		t.Fatalf("expected version 2 to stay cached, got %+v (hit=%v)", doc, ok)
	}

	cache.Invalidate(ctx, "acc-1", 1)
	if doc, ok := cache.Get(ctx, "acc-1"); !ok || doc.Version != 2 {
		t.Fatalf("expected an older invalidation to be ignored, got %+v (hit=%v)", doc, ok)
	}
}

func TestViewCacheTreatsErrorsAsMisses(t *testing.T) {
	client := newFakeRedis()
	cache := NewViewCache(client, "n:", 0, func(v int) int64 { return int64(v) }, discard())
	ctx := context.Background()
	client.data["n:bad"] = []byte("not json")
	if _, ok := cache.Get(ctx, "bad"); ok {
		t.Fatal("expected unreadable entry to miss")
	}
	cache.Set(ctx, "bad", 7)
	if v, ok := cache.Get(ctx, "bad"); !ok || v != 7 {
		t.Fatalf("expected unreadable entry to be replaced, got %d (hit=%v)", v, ok)
	}
	if client.ttls["n:bad"] != 0 {
		t.Fatalf("expected no ttl, got %v", client.ttls["n:bad"])
	}
	client.fail = errors.New("connection refused")
	cache.Set(ctx, "k", 1)
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatal("expected transport error to miss")
	}
}
