package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/config"
	"github.com/Alijeyrad/consultorio_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/auth"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/service/document"
	"github.com/Alijeyrad/consultorio_backend/internal/service/migration"
	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/service/report"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/authorize"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

type env struct {
	app   *fiber.App
	auth  auth.Service
	store *syncstore.Store
	token string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := docstore.NewMemory()
	store := syncstore.New(syncstore.Options{
		Journal: syncstore.NewMemoryJournal(),
		Backend: backend,
		Logger:  logs.Discard(),
	})
	t.Cleanup(store.Close)

	mgr, err := pasetotoken.New(pasetotoken.Config{Mode: pasetotoken.ModeLocal, Issuer: "consultorio", Audience: "consultorio-web"}, pasetotoken.NewLocalKeys())
	require.NoError(t, err)
	hasher := password.NewHasher(password.Params{Memory: 1024, Iterations: 1, Parallelism: 1}, 6)
	authSvc := auth.New(backend, store, rdb, mgr, hasher, auth.Options{LoginSuffix: "@sistema.local", Logger: logs.Discard()})
	authSvc.OnTeardown(func(accountID, _ string) { store.CloseAccount(accountID) })

	authz, err := authorize.New(authorize.Config{})
	require.NoError(t, err)

	clinics := clinic.New(store)
	patients := patient.New(store, patient.Options{Location: time.UTC})
	records := record.New(store, time.Now)

	r := NewRouter(Params{
		Cfg:          &config.Config{},
		Redis:        rdb,
		Auth:         authz,
		Store:        store,
		AuthSvc:      authSvc,
		ClinicSvc:    clinics,
		PatientSvc:   patients,
		RecordSvc:    records,
		ReportSvc:    report.New(store, report.Options{Location: time.UTC, Logger: logs.Discard()}),
		DocumentSvc:  document.New(clinics, patients, records, nil, time.UTC, logs.Discard()),
		MigrationSvc: migration.New(store, logs.Discard(), time.UTC, time.Now),
	})

	app := fiber.New()
	app.Use(middleware.RequestID())
	r.Register(app)

	_, err = authSvc.Provision(context.Background(), auth.ProvisionRequest{
		Username: "ruiz",
		Password: "secreto1",
		Role:     schema.RoleDoctor,
		Clinics:  map[string]schema.ClinicConfig{"clinic_a": {Name: "Centro", DoctorName: "Dra. Ruiz"}},
	})
	require.NoError(t, err)

	e := &env{app: app, auth: authSvc, store: store}
	e.token = e.login(t, "Ruiz", "secreto1")
	return e
}

func (e *env) login(t *testing.T, username, secret string) string {
	t.Helper()
	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	body, err := json.Marshal(map[string]string{"username": username, "password": secret})
	require.NoError(t, err)
	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", string(body), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &login)
	require.NotEmpty(t, login.Data.AccessToken)
	return login.Data.AccessToken
}

func (e *env) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (e *env) authed(extra ...string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + e.token}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/v1/patients", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/v1/auth/me", "", e.authed())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestClinicHeader(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/api/v1/clinic", "", e.authed(middleware.HeaderClinicID, "clinic_z"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var out struct {
		Data clinic.Context `json:"data"`
	}
	resp = e.do(t, http.MethodGet, "/api/v1/clinic", "", e.authed())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &out)
	assert.Equal(t, "clinic_a", out.Data.ClinicID)
	assert.Equal(t, "Dra. Ruiz", out.Data.DoctorName)
}

func TestPatientLifecycle(t *testing.T) {
	e := newEnv(t)
	h := e.authed(middleware.HeaderClinicID, "clinic_a")

	resp := e.do(t, http.MethodPost, "/api/v1/patients", `{"birthDate":"2020-01-01"}`, h)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var created struct {
		Data patient.Created `json:"data"`
	}
	resp = e.do(t, http.MethodPost, "/api/v1/patients", `{"name":"Ana Ruiz","birthDate":"2020-01-01"}`, h)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decode(t, resp, &created)
	id := created.Data.Patient.ID
	require.NotEmpty(t, id)

	resp = e.do(t, http.MethodPost, "/api/v1/patients", `{"name":"ana ruiz"}`, h)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var page struct {
		Data patient.Page `json:"data"`
	}
	resp = e.do(t, http.MethodGet, "/api/v1/patients", "", h)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &page)
	assert.Len(t, page.Data.Patients, 1)

	resp = e.do(t, http.MethodPost, "/api/v1/patients/"+id+"/events", `{"type":"consulta","weight":"20","height":"1.10"}`, h)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/v1/patients/"+id, "", h)
	assert.Equal(t, fiber.StatusPreconditionRequired, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/v1/patients/"+id+"?confirm=true", "", h)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/v1/patients/"+id, "", h)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestImportRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/api/v1/imports?mode=pacientes", `[{"Nombre":"Luis"}]`, e.authed())
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSyncStatus(t *testing.T) {
	e := newEnv(t)
	var out struct {
		Data struct {
			Online  bool `json:"online"`
			Pending int  `json:"pending"`
		} `json:"data"`
	}
	resp := e.do(t, http.MethodGet, "/api/v1/sync/status", "", e.authed())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decode(t, resp, &out)
	assert.True(t, out.Data.Online)
}
