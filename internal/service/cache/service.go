package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kapu/gamepulse-dashboard/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "gamepulse:"

// CacheService is a two-tier cache: an in-process L1 map in front of an
// optional Redis L2. Values are stored as JSON in both tiers.
type CacheService struct {
	l1     sync.Map // key -> *entry
	client *redis.Client
	now    func() time.Time
	logger *zap.Logger
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewCacheService connects the Redis tier when enabled. An unreachable Redis
// is an error so a misconfigured deployment fails at startup.
func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	c := NewMemoryCache(logger)
	if !cfg.Enabled {
		c.logger.Info("Redis disabled, using in-memory cache only")
		return c, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	c.logger.Info("Redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	c.client = client
	return c, nil
}

// NewMemoryCache returns an L1-only cache.
func NewMemoryCache(logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		now:    time.Now,
		logger: logger,
	}
}

// Get decodes the cached value for key into dest. found is false on a miss.
func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	fullKey := keyPrefix + key

	if raw, ok := c.l1.Load(fullKey); ok {
		e := raw.(*entry)
		if c.now().Before(e.expiresAt) {
			return c.decode(key, e.data, dest)
		}
		c.l1.Delete(fullKey)
	}

	if c.client == nil {
		return false, nil
	}

	value, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Error("Cache get failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("get failed", "get", key, err)
	}

	if ttl, err := c.client.TTL(ctx, fullKey).Result(); err == nil && ttl > 0 {
		c.l1.Store(fullKey, &entry{data: value, expiresAt: c.now().Add(ttl)})
	}

	return c.decode(key, value, dest)
}

func (c *CacheService) decode(key string, data []byte, dest any) (bool, error) {
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("unmarshal failed", "get", key, err)
	}
	return true, nil
}

// Set stores value under key for ttl. A non-positive ttl is rejected because
// every dashboard value must eventually refresh from upstream.
func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.NewCacheError("ttl must be positive", "set", key, nil)
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	fullKey := keyPrefix + key
	c.l1.Store(fullKey, &entry{data: jsonData, expiresAt: c.now().Add(ttl)})

	if c.client == nil {
		return nil
	}

	if err := c.client.Set(ctx, fullKey, jsonData, ttl).Err(); err != nil {
		c.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}

// Tier reports which tiers are active, for health output.
func (c *CacheService) Tier() string {
	if c.client == nil {
		return "memory"
	}
	return "memory+redis"
}

func (c *CacheService) IsConnected(ctx context.Context) bool {
	if c.client == nil {
		return true
	}
	return c.client.Ping(ctx).Err() == nil
}

func (c *CacheService) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	c.logger.Info("Redis disconnected")
	return nil
}
