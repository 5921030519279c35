package monitoring

import (
	"context"
	"fmt"
	"iotd/internal/providers"
	"iotd/internal/structures"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/redis/go-redis/v9"
)

// SubscriptionCache remembers which devices already have their topic set
// subscribed on the bus. It lives for the process (or the redis key) only.
type SubscriptionCache interface {
	Contains(ctx context.Context, deviceID int64) (bool, error)
	Add(ctx context.Context, deviceID int64) error
	Reset(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
}

// TopicSetKey is the cache key for a device: the wildcard over its topics.
func TopicSetKey(prefix string, deviceID int64) string {
	return fmt.Sprintf("%s/device/%d/+", prefix, deviceID)
}

type memorySubscriptionCache struct {
	mu      sync.Mutex
	devices *roaring64.Bitmap
}

func NewMemorySubscriptionCache() SubscriptionCache {
	return &memorySubscriptionCache{devices: roaring64.New()}
}

func (c *memorySubscriptionCache) Contains(_ context.Context, deviceID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices.Contains(uint64(deviceID)), nil
}

func (c *memorySubscriptionCache) Add(_ context.Context, deviceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices.Add(uint64(deviceID))
	return nil
}

func (c *memorySubscriptionCache) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices.Clear()
	return nil
}

func (c *memorySubscriptionCache) Len(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.devices.GetCardinality()), nil
}

type redisSubscriptionCache struct {
	client *redis.Client
	key    string
	prefix string
}

func NewRedisSubscriptionCache(client *redis.Client, key, prefix string) SubscriptionCache {
	return &redisSubscriptionCache{client: client, key: key, prefix: prefix}
}

func (c *redisSubscriptionCache) Contains(ctx context.Context, deviceID int64) (bool, error) {
	return c.client.SIsMember(ctx, c.key, TopicSetKey(c.prefix, deviceID)).Result()
}

func (c *redisSubscriptionCache) Add(ctx context.Context, deviceID int64) error {
	return c.client.SAdd(ctx, c.key, TopicSetKey(c.prefix, deviceID)).Err()
}

func (c *redisSubscriptionCache) Reset(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

func (c *redisSubscriptionCache) Len(ctx context.Context) (int64, error) {
	return c.client.SCard(ctx, c.key).Result()
}

// NewSubscriptionCache uses a redis set when a client is configured and the
// in-process bitmap otherwise. The redis set is namespaced by client id and
// survives restarts only for persistent bus sessions, where the broker keeps
// the subscriptions too.
func NewSubscriptionCache(conf *structures.Config, client *redis.Client, logger providers.Logger) SubscriptionCache {
	if client == nil {
		logger.Infof(providers.TypeMonitor, "Subscription cache: in-memory")
		return NewMemorySubscriptionCache()
	}
	key := conf.Redis.Key + ":" + conf.Mqtt.ClientID
	cache := NewRedisSubscriptionCache(client, key, conf.Mqtt.TopicPrefix)
	if conf.Mqtt.CleanSession {
		if err := cache.Reset(context.Background()); err != nil {
			logger.Warnf(providers.TypeMonitor, "Unable to reset subscription cache %s: %s", key, err)
		}
	}
	logger.Infof(providers.TypeMonitor, "Subscription cache: redis set %s", key)
	return cache
}
