package middleware

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"unihub/config"
	"unihub/utils"
)

// AuthRateLimiter throttles the public auth endpoints per client IP and path.
func AuthRateLimiter(max int, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		max = 20
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "auth:" + c.IP() + ":" + c.Path()
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get(fiber.HeaderUserAgent),
			})
			return utils.NewAPIError(fiber.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
		Storage: storage,
	})
}

// RateLimitStorage returns a Redis-backed store when Redis is enabled and nil
// otherwise, which makes the limiter keep counters in memory.
func RateLimitStorage(cfg config.RedisConfig) fiber.Storage {
	if cfg.Enabled {
		return NewRedisStorage(cfg)
	}
	return nil
}

// RedisStorage implements fiber.Storage for Redis
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(cfg config.RedisConfig) *RedisStorage {
	return &RedisStorage{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Get returns nil for a missing key, as fiber.Storage requires.
func (r *RedisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if len(key) == 0 || len(val) == 0 {
		return nil
	}
	return r.client.Set(context.Background(), key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *RedisStorage) Reset() error {
	return r.client.FlushDB(context.Background()).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
