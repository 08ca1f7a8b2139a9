package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/api/http/handler"
	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/service/document"
	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/service/report"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg   *config.Config
	Redis *redis.Client
	Auth  authorize.IAuthorization
	Store *syncstore.Store

	AuthSvc      auth.Service
	ClinicSvc    clinic.Service
	PatientSvc   patient.Service
	RecordSvc    record.Service
	ReportSvc    report.Service
	DocumentSvc  document.Service
	MigrationSvc migration.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.AuthSvc)
	clinicHeader := middleware.ClinicHeader(r.p.ClinicSvc)
	loginLimiter := middleware.NewLoginLimiter(r.p.Redis)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.AuthSvc, r.p.ClinicSvc)
	clinicH := handler.NewClinicHandler(r.p.ClinicSvc)
	patientH := handler.NewPatientHandler(r.p.PatientSvc)
	recordH := handler.NewRecordHandler(r.p.RecordSvc)
	documentH := handler.NewDocumentHandler(r.p.DocumentSvc)
	reportH := handler.NewReportHandler(r.p.ReportSvc)
	importH := handler.NewImportHandler(r.p.MigrationSvc)
	syncH := handler.NewSyncHandler(r.p.Store)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerAuthRoutes(api, authH, authRequired, loginLimiter)
	r.registerClinicRoutes(api, clinicH, authRequired, clinicHeader, requirePerm)
	r.registerPatientRoutes(api, patientH, recordH, documentH, authRequired, clinicHeader, requirePerm)
	r.registerReportRoutes(api, reportH, importH, authRequired, clinicHeader, requirePerm)
	r.registerSyncRoutes(api, syncH, authRequired, clinicHeader, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			return r.p.Redis.Ping(ctx).Err() == nil
		},
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
