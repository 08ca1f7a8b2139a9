package app

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/service/document"
	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/service/report"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/email"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	s3pkg "github.com/Alijeyrad/consultorio_backend/pkg/s3"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideLocation,
		ProvideAuthService,
		ProvideClinicService,
		ProvidePatientService,
		ProvideRecordService,
		ProvideMigrationService,
		ProvideReportService,
		ProvideDocumentService,
	),
)

// ProvideLocation is the practice's local time zone. Day ranges and ages are
// computed in it.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	tz := cfg.Report.Timezone
	if tz == "" {
		tz = report.DefaultTimezone
	}
	return time.LoadLocation(tz)
}

func ProvideAuthService(
	backend docstore.Backend,
	store *syncstore.Store,
	rdb *redis.Client,
	paseto *pasetotoken.Manager,
	hasher *password.Hasher,
	cfg *config.Config,
	log *slog.Logger,
) auth.Service {
	return auth.New(backend, store, rdb, paseto, hasher, auth.Options{
		LoginSuffix: cfg.Authentication.LoginSuffix,
		NodeID:      NodeID(cfg),
		Logger:      log,
	})
}

func ProvideClinicService(store *syncstore.Store) clinic.Service {
	return clinic.New(store)
}

func ProvidePatientService(store *syncstore.Store, loc *time.Location) patient.Service {
	return patient.New(store, patient.Options{Location: loc})
}

func ProvideRecordService(store *syncstore.Store) record.Service {
	return record.New(store, time.Now)
}

func ProvideMigrationService(store *syncstore.Store, log *slog.Logger, loc *time.Location) migration.Service {
	return migration.New(store, log, loc, time.Now)
}

func ProvideReportService(
	store *syncstore.Store,
	s3 *s3pkg.Client,
	mailer *email.Client,
	loc *time.Location,
	cfg *config.Config,
	log *slog.Logger,
) report.Service {
	opts := report.Options{
		Location:      loc,
		PhoneRegion:   cfg.Report.PhoneRegion,
		ArchivePrefix: cfg.Report.ArchivePrefix,
		Recipients:    cfg.Report.Recipients,
		Logger:        log,
	}
	if s3 != nil && cfg.Report.ArchiveToS3 {
		opts.Archive = s3
	}
	if mailer != nil {
		opts.Mailer = mailer
	}
	return report.New(store, opts)
}

func ProvideDocumentService(
	clinics clinic.Service,
	patients patient.Service,
	records record.Service,
	s3 *s3pkg.Client,
	loc *time.Location,
	log *slog.Logger,
) document.Service {
	var presign document.Presigner
	if s3 != nil {
		presign = s3
	}
	return document.New(clinics, patients, records, presign, loc, log)
}
