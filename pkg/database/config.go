package database

import (
	"fmt"
	"time"

	"github.com/Alijeyrad/consultorio_backend/config"
)

// Config holds connection and pool settings for the document store database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
}

// DSN returns a lib/pq keyword/value connection string.
func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslmode,
	)
}

func (c Config) ConnMaxLifetime() time.Duration {
	if c.ConnMaxLifetimeMin <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.ConnMaxLifetimeMin) * time.Minute
}

func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               5432,
		SSLMode:            "disable",
		MaxOpenConns:       10,
		MaxIdleConns:       2,
		ConnMaxLifetimeMin: 5,
	}
}

// FromCentralConfig converts config.DatabaseConfig, filling unset pool values.
func FromCentralConfig(c config.DatabaseConfig) Config {
	def := DefaultConfig()
	out := Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		DBName:             c.DBName,
		SSLMode:            c.SSLMode,
		MaxOpenConns:       c.Pool.MaxOpenConns,
		MaxIdleConns:       c.Pool.MaxIdleConns,
		ConnMaxLifetimeMin: c.Pool.ConnMaxLifetimeMin,
	}
	if out.Port == 0 {
		out.Port = def.Port
	}
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = def.MaxOpenConns
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = def.MaxIdleConns
	}
	return out
}
