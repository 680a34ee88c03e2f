// README: Restaurant origin geocode cached in process and in Redis.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"fooddash/internal/types"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Location, error)
}

// OriginCache resolves the fixed restaurant address once per TTL. Lookups go
// memory, then Redis, then the provider; concurrent misses share one call.
// A nil Redis client disables the shared layer.
type OriginCache struct {
	geocoder Geocoder
	address  string
	rdb      *redis.Client
	ttl      time.Duration
	log      logrus.FieldLogger

	mu      sync.RWMutex
	cached  *types.Location
	expires time.Time
	group   singleflight.Group
	now     func() time.Time
}

func NewOriginCache(g Geocoder, address string, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *OriginCache {
	return &OriginCache{
		geocoder: g,
		address:  address,
		rdb:      rdb,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

func (c *OriginCache) Address() string { return c.address }

func (c *OriginCache) Get(ctx context.Context) (types.Location, error) {
	if loc, ok := c.fromMemory(); ok {
		return loc, nil
	}
	v, err, _ := c.group.Do(c.address, func() (interface{}, error) {
		if loc, ok := c.fromMemory(); ok {
			return loc, nil
		}
		if loc, ok := c.fromRedis(ctx); ok {
			c.remember(loc)
			return loc, nil
		}
		loc, err := c.geocoder.Geocode(ctx, c.address)
		if err != nil {
			return types.Location{}, err
		}
		c.remember(loc)
		c.toRedis(ctx, loc)
		return loc, nil
	})
	if err != nil {
		return types.Location{}, err
	}
	return v.(types.Location), nil
}

// Invalidate drops the in-process value; the Redis entry expires on its own.
func (c *OriginCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *OriginCache) fromMemory() (types.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil || !c.now().Before(c.expires) {
		return types.Location{}, false
	}
	return *c.cached, true
}

func (c *OriginCache) remember(loc types.Location) {
	c.mu.Lock()
	c.cached = &loc
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *OriginCache) key() string {
	return "fooddash:geocode:" + strings.ToLower(strings.TrimSpace(c.address))
}

func (c *OriginCache) fromRedis(ctx context.Context) (types.Location, bool) {
	if c.rdb == nil {
		return types.Location{}, false
	}
	raw, err := c.rdb.Get(ctx, c.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Location{}, false
	}
	if err != nil {
		c.log.WithError(err).Warn("origin cache: redis get failed")
		return types.Location{}, false
	}
	var loc types.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		c.log.WithError(err).Warn("origin cache: corrupt redis entry")
		return types.Location{}, false
	}
	return loc, true
}

func (c *OriginCache) toRedis(ctx context.Context, loc types.Location) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("origin cache: redis set failed")
	}
}
