package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
)

// SeatCache keeps occupancy maps in Redis under "seats:<showID>".  It is
// best-effort: a nil cache or a Redis error falls through to the database.
type SeatCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeatCache returns nil when rdb is nil, which disables caching.
func NewSeatCache(rdb *redis.Client, ttl time.Duration) *SeatCache {
	if rdb == nil {
		return nil
	}
	return &SeatCache{rdb: rdb, ttl: ttl}
}

func seatCacheKey(showID string) string { return "seats:" + showID }

func (c *SeatCache) Get(ctx context.Context, showID string) (map[string]string, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, seatCacheKey(showID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.FromContext(ctx).WithError(err).Warn("seat cache read failed")
		}
		return nil, false
	}
	var occ map[string]string
	if err := json.Unmarshal(raw, &occ); err != nil {
		return nil, false
	}
	return occ, true
}

func (c *SeatCache) Set(ctx context.Context, showID string, occ map[string]string) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(occ)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, seatCacheKey(showID), raw, c.ttl).Err(); err != nil {
		log.FromContext(ctx).WithError(err).Warn("seat cache write failed")
	}
}

func (c *SeatCache) Invalidate(ctx context.Context, showID string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, seatCacheKey(showID)).Err(); err != nil {
		log.FromContext(ctx).WithError(err).Warn("seat cache invalidation failed")
	}
}
