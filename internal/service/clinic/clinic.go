// Package clinic resolves the active clinic of an account: its branding with
// fallbacks, the operator name shown on documents and the dashboard summary.
package clinic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
)

const (
	DefaultClinicID     = "clinic_a"
	DefaultClinicName   = "Consultorio Médico"
	DefaultDoctorName   = "Doctor"
	DefaultPrimaryColor = "#3b82f6"

	recentPatients = 5
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Context is the branding of the active clinic with fallbacks applied.
type Context struct {
	ClinicID              string `json:"clinic_id"`
	Name                  string `json:"name"`
	DoctorName            string `json:"doctor_name"`
	PrimaryColor          string `json:"primary_color"`
	RecipeTemplateURL     string `json:"recipe_template_url,omitempty"`
	LetterheadTemplateURL string `json:"letterhead_template_url,omitempty"`
}

type Dashboard struct {
	Clinic    Context          `json:"clinic"`
	Patients  int              `json:"patients"`
	Recent    []schema.Patient `json:"recent"`
	FromCache bool             `json:"from_cache"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	List(account schema.Account) []Context
	// Resolve picks the active clinic; "" selects DefaultClinicID, or the
	// first configured clinic when the account has no default.
	Resolve(account schema.Account, clinicID string) (Context, error)
	UpdateDoctorName(ctx context.Context, scope syncstore.Scope, name string) (syncstore.WriteResult, error)
	Dashboard(ctx context.Context, account schema.Account, scope syncstore.Scope) (*Dashboard, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type clinicService struct {
	store *syncstore.Store
}

func New(store *syncstore.Store) Service {
	return &clinicService{store: store}
}

func (s *clinicService) List(account schema.Account) []Context {
	out := make([]Context, 0, len(account.Clinics))
	for id, cfg := range account.Clinics {
		out = append(out, withFallbacks(id, cfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClinicID < out[j].ClinicID })
	return out
}

func (s *clinicService) Resolve(account schema.Account, clinicID string) (Context, error) {
	clinicID = strings.TrimSpace(clinicID)
	if clinicID == "" {
		clinicID = defaultClinic(account)
	}
	cfg, ok := account.Clinics[clinicID]
	if !ok {
		return Context{}, fmt.Errorf("%w: %s", ErrUnknownClinic, clinicID)
	}
	return withFallbacks(clinicID, cfg), nil
}

// UpdateDoctorName changes the operator name of the active clinic only.
func (s *clinicService) UpdateDoctorName(ctx context.Context, scope syncstore.Scope, name string) (syncstore.WriteResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return syncstore.WriteResult{}, ErrInvalidDoctorName
	}
	if scope.ClinicID == "" {
		return syncstore.WriteResult{}, ErrUnknownClinic
	}
	patch := map[string]any{
		"clinics": map[string]any{
			scope.ClinicID: map[string]any{"doctorName": name},
		},
	}
	return s.store.Write(ctx, scope, schema.ProfileParent, scope.AccountID, patch, syncstore.Merge)
}

func (s *clinicService) Dashboard(ctx context.Context, account schema.Account, scope syncstore.Scope) (*Dashboard, error) {
	clinic, err := s.Resolve(account, scope.ClinicID)
	if err != nil {
		return nil, err
	}
	scope.ClinicID = clinic.ClinicID

	snap, err := s.store.Find(ctx, syncstore.Query{
		Scope:   scope,
		Parent:  schema.PatientsPath(scope.AccountID),
		OrderBy: "createdAt",
	})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Clinic: clinic, Patients: len(snap.Docs), FromCache: snap.FromCache}
	for i, doc := range snap.Docs {
		if i == recentPatients {
			break
		}
		p, err := schema.PatientFromDoc(doc)
		if err != nil {
			continue
		}
		p.Pending = snap.Pending[doc.ID]
		d.Recent = append(d.Recent, p)
	}
	return d, nil
}

func defaultClinic(account schema.Account) string {
	if _, ok := account.Clinics[DefaultClinicID]; ok || len(account.Clinics) == 0 {
		return DefaultClinicID
	}
	ids := make([]string, 0, len(account.Clinics))
	for id := range account.Clinics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0]
}

func withFallbacks(id string, cfg schema.ClinicConfig) Context {
	c := Context{
		ClinicID:              id,
		Name:                  cfg.Name,
		DoctorName:            cfg.DoctorName,
		PrimaryColor:          cfg.PrimaryColor,
		RecipeTemplateURL:     cfg.RecipeTemplateURL,
		LetterheadTemplateURL: cfg.LetterheadTemplateURL,
	}
	if c.Name == "" {
		c.Name = DefaultClinicName
	}
	if c.DoctorName == "" {
		c.DoctorName = DefaultDoctorName
	}
	if c.PrimaryColor == "" {
		c.PrimaryColor = DefaultPrimaryColor
	}
	return c
}
