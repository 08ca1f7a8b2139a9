package app

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
	"github.com/Alijeyrad/consultorio_backend/pkg/database"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/email"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
	"github.com/Alijeyrad/consultorio_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	redispkg "github.com/Alijeyrad/consultorio_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/consultorio_backend/pkg/s3"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideDatabase),
	fx.Provide(ProvideBackend),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvideFeed),
	fx.Provide(ProvideJournal),
	fx.Provide(ProvideSyncMetrics),
	fx.Provide(ProvideSyncStore),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvidePasetoManager),
	fx.Provide(ProvideHasher),
)

func ProvideLogger(cfg *config.Config) *slog.Logger {
	log := logs.New(cfg)
	slog.SetDefault(log)
	return log
}

func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.OpenFromCentral(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing document database connection")
			return db.Close()
		},
	})
	return db, nil
}

// ProvideBackend is the remote document store behind a circuit breaker.
func ProvideBackend(db *sql.DB, cfg *config.Config, log *slog.Logger) docstore.Backend {
	return docstore.NewBreaker(docstore.NewPostgres(db), docstore.BreakerConfig{
		Name:        "docstore",
		MaxFailures: cfg.Sync.Breaker.MaxFailures,
		OpenTimeout: time.Duration(cfg.Sync.Breaker.OpenSeconds) * time.Second,
	}, log)
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rdb, err := redispkg.NewRedisFromCentral(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name("consultorio"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideFeed(nc *nats.Conn, cfg *config.Config, log *slog.Logger) docstore.Feed {
	return docstore.NewNatsFeed(nc, cfg.Nats.SubjectPrefix, log)
}

// NodeID names this process in the journal. It must survive restarts so the
// journal of the previous run is replayed.
func NodeID(cfg *config.Config) string {
	if cfg.Sync.NodeID != "" {
		return cfg.Sync.NodeID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

func ProvideJournal(rdb *redis.Client, cfg *config.Config) syncstore.Journal {
	return syncstore.NewRedisJournal(rdb, cfg.Sync.KeyPrefix, NodeID(cfg))
}

// ProvideSyncMetrics returns nil when observability is off; the store then
// records nothing.
func ProvideSyncMetrics(otel *observability.Provider) (syncstore.Metrics, error) {
	if otel == nil || otel.MeterProvider == nil {
		return nil, nil
	}
	m, err := observability.NewSyncMetrics(otel.MeterProvider.Meter("consultorio/syncstore"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func ProvideSyncStore(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *slog.Logger,
	journal syncstore.Journal,
	backend docstore.Backend,
	feed docstore.Feed,
	metrics syncstore.Metrics,
) *syncstore.Store {
	store := syncstore.New(syncstore.Options{
		NodeID:         NodeID(cfg),
		Journal:        journal,
		Backend:        backend,
		Feed:           feed,
		Logger:         log,
		Metrics:        metrics,
		InitialBackoff: cfg.Sync.InitialBackoff(),
		MaxBackoff:     cfg.Sync.MaxBackoff(),
		RemoteTimeout:  cfg.Sync.RemoteTimeout(),
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.Recover(ctx)
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing sync store", "pending", store.Pending())
			store.Close()
			return nil
		},
	})
	return store
}

func ProvideAuthorization(cfg *config.Config, log *slog.Logger) (authorize.IAuthorization, error) {
	base, err := authorize.New(authorize.FromCentralConfig(cfg.Authorization))
	if err != nil {
		return nil, err
	}
	if cfg.Authorization.EnableAudit {
		return authorize.NewAuditedAuthorization(base, log), nil
	}
	return base, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg.Email)
}

// ProvideS3Client returns nil when object storage is disabled.
func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	return s3pkg.New(context.Background(), cfg.S3)
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}

func ProvideHasher(cfg *config.Config) *password.Hasher {
	return password.FromConfig(cfg.Password, cfg.Authentication)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(),
		observability.FromCentralConfig(cfg.Observability, cfg.Server.Environment))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
