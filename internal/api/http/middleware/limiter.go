package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/consultorio_backend/config"
)

const (
	defaultLimitMax        = 120
	defaultLimitExpiration = 60 * time.Second
)

func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	storage := fiberredis.NewFromConnection(rdb)

	limit := cfg.Max
	if limit <= 0 {
		limit = defaultLimitMax
	}
	exp := time.Duration(cfg.ExpirationSeconds) * time.Second
	if exp <= 0 {
		exp = defaultLimitExpiration
	}

	return limiter.New(limiter.Config{
		Storage: storage,

		// sliding window
		Max:               limit,
		Expiration:        exp,
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}

// NewLoginLimiter is a stricter limiter for credential endpoints.
func NewLoginLimiter(rdb *redis.Client) fiber.Handler {
	return limiter.New(limiter.Config{
		Storage:           fiberredis.NewFromConnection(rdb),
		Max:               10,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}
