package redis

import (
	"time"

	"github.com/Alijeyrad/consultorio_backend/config"
)

// Config holds Redis connection settings. The same client backs sessions,
// the write journal and the rate limiter.
type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// FromCentralConfig converts config.RedisConfig; zero values take defaults.
func FromCentralConfig(c config.RedisConfig) Config {
	def := DefaultConfig()
	return Config{
		Addr:         c.Addr,
		DB:           c.DB,
		Username:     c.Username,
		Password:     c.Password,
		PoolSize:     orInt(c.PoolSize, def.PoolSize),
		MinIdleConns: orInt(c.MinIdleConns, def.MinIdleConns),
		DialTimeout:  orSeconds(c.DialTimeoutSeconds, def.DialTimeout),
		ReadTimeout:  orSeconds(c.ReadTimeoutSeconds, def.ReadTimeout),
		WriteTimeout: orSeconds(c.WriteTimeoutSeconds, def.WriteTimeout),
	}
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orSeconds(v int, def time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}
