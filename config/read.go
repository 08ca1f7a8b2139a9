package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/consultorio_backend/pkg/constants"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)
	v.AddConfigPath("$HOME/.consultorio")
	v.AddConfigPath("/etc/consultorio")

	// CONSULTORIO_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// containers run on env vars only
		if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("config file %s.%s not found in %s", constants.ConfigName, constants.ConfigFormat, configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "consultorio.docs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("authentication.login_suffix", constants.LoginSuffix)
	v.SetDefault("authentication.min_password_length", 6)
	v.SetDefault("authentication.paseto.mode", "local")
	v.SetDefault("authentication.paseto.issuer", "consultorio")
	v.SetDefault("authentication.paseto.audience", "consultorio-web")
	v.SetDefault("authentication.paseto.access_ttl_minutes", 60)
	v.SetDefault("authentication.paseto.refresh_ttl_days", 30)
	v.SetDefault("authorization.enable_audit", true)
	v.SetDefault("password.algorithm", "argon2id")
	v.SetDefault("password.memory_kib", 64*1024)
	v.SetDefault("password.iterations", 3)
	v.SetDefault("password.parallelism", 2)
	v.SetDefault("password.salt_length", 16)
	v.SetDefault("password.key_length", 32)
	v.SetDefault("sync.node_id", "local")
	v.SetDefault("sync.key_prefix", "consultorio")
	v.SetDefault("sync.initial_backoff_ms", 500)
	v.SetDefault("sync.max_backoff_seconds", 30)
	v.SetDefault("sync.remote_timeout_seconds", 10)
	v.SetDefault("sync.breaker.max_failures", 5)
	v.SetDefault("sync.breaker.open_seconds", 15)
	v.SetDefault("report.timezone", "America/Mexico_City")
	v.SetDefault("report.phone_region", "MX")
	v.SetDefault("report.archive_prefix", "reports")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("observability.service_name", "consultorio")
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("s3.presign_ttl_sec", 300)
}
