package redis

import (
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"gueststay/internal/app/handlers/gueststay"
	"gueststay/internal/app/readmodel"
)

const stayDetailsPrefix = "guest_stay:details:"

// NewStayDetailsCache caches projected stay documents by account id, ordered
// by stream version.
func NewStayDetailsCache(client goredis.Cmdable, ttl time.Duration, logger *slog.Logger) *ViewCache[readmodel.GuestStayDetails] {
	return NewViewCache(client, stayDetailsPrefix, ttl, detailsVersion, logger)
}

func detailsVersion(doc readmodel.GuestStayDetails) int64 { return doc.Version }

var _ gueststay.DetailsCache = (*ViewCache[readmodel.GuestStayDetails])(nil)
