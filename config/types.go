package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Nats           NatsConfig           `mapstructure:"nats"`
	Server         ServerConfig         `mapstructure:"server"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Authorization  AuthorizationConfig  `mapstructure:"authorization"`
	Password       PasswordConfig       `mapstructure:"password"`
	Sync           SyncConfig           `mapstructure:"sync"`
	Report         ReportConfig         `mapstructure:"report"`
	Email          EmailConfig          `mapstructure:"email"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	S3             S3Config             `mapstructure:"s3"`
}

type NatsConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

type DatabaseConfig struct {
	Host     string             `mapstructure:"host"`
	Port     int                `mapstructure:"port"`
	User     string             `mapstructure:"user"`
	Password string             `mapstructure:"password"`
	DBName   string             `mapstructure:"dbname"`
	SSLMode  string             `mapstructure:"sslmode"`
	Pool     DatabasePoolConfig `mapstructure:"pool"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Environment    string          `mapstructure:"environment"`
	Domain         string          `mapstructure:"domain"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Max               int `mapstructure:"max"`
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthenticationConfig struct {
	// LoginSuffix is appended to the lowercased username to form the credential id.
	LoginSuffix       string       `mapstructure:"login_suffix"`
	MinPasswordLength int          `mapstructure:"min_password_length"`
	Paseto            PasetoConfig `mapstructure:"paseto"`
}

type PasetoConfig struct {
	Mode             string `mapstructure:"mode"`
	LocalKeyHex      string `mapstructure:"local_key_hex"`
	SecretKeyHex     string `mapstructure:"secret_key_hex"`
	PublicKeyHex     string `mapstructure:"public_key_hex"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
	RefreshTTLDays   int    `mapstructure:"refresh_ttl_days"`
}

type AuthorizationConfig struct {
	ModelPath   string `mapstructure:"model_path"`
	PolicyPath  string `mapstructure:"policy_path"`
	EnableAudit bool   `mapstructure:"enable_audit"`
}

type PasswordConfig struct {
	Algorithm     string `mapstructure:"algorithm"`
	MemoryKiB     uint32 `mapstructure:"memory_kib"`
	Iterations    uint32 `mapstructure:"iterations"`
	Parallelism   uint8  `mapstructure:"parallelism"`
	SaltLength    uint32 `mapstructure:"salt_length"`
	KeyLength     uint32 `mapstructure:"key_length"`
	LowMemoryMode bool   `mapstructure:"low_memory_mode"`
}

// SyncConfig drives the local write-ahead journal and its delivery worker.
type SyncConfig struct {
	NodeID               string        `mapstructure:"node_id"`
	KeyPrefix            string        `mapstructure:"key_prefix"`
	InitialBackoffMs     int           `mapstructure:"initial_backoff_ms"`
	MaxBackoffSeconds    int           `mapstructure:"max_backoff_seconds"`
	RemoteTimeoutSeconds int           `mapstructure:"remote_timeout_seconds"`
	Breaker              BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32 `mapstructure:"max_failures"`
	OpenSeconds int    `mapstructure:"open_seconds"`
}

func (s SyncConfig) InitialBackoff() time.Duration {
	if s.InitialBackoffMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(s.InitialBackoffMs) * time.Millisecond
}

func (s SyncConfig) MaxBackoff() time.Duration {
	if s.MaxBackoffSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.MaxBackoffSeconds) * time.Second
}

func (s SyncConfig) RemoteTimeout() time.Duration {
	if s.RemoteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.RemoteTimeoutSeconds) * time.Second
}

type ReportConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	PhoneRegion   string   `mapstructure:"phone_region"`
	ArchiveToS3   bool     `mapstructure:"archive_to_s3"`
	ArchivePrefix string   `mapstructure:"archive_prefix"`
	Recipients    []string `mapstructure:"recipients"`
}

type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UseTLS         bool   `mapstructure:"use_tls"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	PresignTTLSec   int    `mapstructure:"presign_ttl_sec"`
}

func (c *Config) Validate() error {
	var errs []error
	if c.Authentication.LoginSuffix == "" {
		errs = append(errs, errors.New("authentication.login_suffix is required"))
	}
	if c.Report.Timezone != "" {
		if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("report.timezone: %w", err))
		}
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket is required when s3 is enabled"))
	}
	return errors.Join(errs...)
}
