package gueststay

import (
	"context"

	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/readmodel"
)

// DetailsCache is a read-through cache of projected documents keyed by
// account id. Implementations swallow their own transport errors.
//
// Set and Invalidate are ordered by document version: Set never replaces an
// entry, or an invalidation, that is newer than the document it carries. A
// reader that loaded a document before a commit therefore cannot cache it
// after the commit has invalidated the key.
type DetailsCache interface {
	Get(ctx context.Context, key string) (readmodel.GuestStayDetails, bool)
	Set(ctx context.Context, key string, doc readmodel.GuestStayDetails)
	Invalidate(ctx context.Context, key string, version int64)
}

// CacheInvalidation invalidates the cached document of every stream a
// command has just changed, at the version the command committed.
type CacheInvalidation struct {
	Cache DetailsCache
}

func (c CacheInvalidation) Committed(ctx context.Context, streamID string, version int64) error {
	if c.Cache != nil {
		c.Cache.Invalidate(ctx, streamID, version)
	}
	return nil
}

var _ eventsourcing.CommitHook = CacheInvalidation{}
