// Package patient manages the patients of an account: creation with a
// duplicate-name check, edits, the paged clinic list, the account-wide
// search and the cascading delete.
package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

const (
	PageSize    = 20
	SearchLimit = 500

	orderField = "createdAt"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Input is the editable part of a patient.
type Input struct {
	Name            string `json:"name"`
	BirthDate       string `json:"birthDate"`
	Sex             string `json:"sex"`
	Phone           string `json:"phone"`
	BloodType       string `json:"bloodType"`
	CURP            string `json:"curp"`
	Allergies       string `json:"allergies"`
	ChronicDiseases string `json:"chronicDiseases"`
	Tutor           string `json:"tutor"`
	Notes           string `json:"notes"`
}

type CreateRequest struct {
	Input
	// Force skips the duplicate-name check after the operator has seen the
	// match and chosen to continue.
	Force bool `json:"force"`
}

// View is a patient as listed, with the derived values shown next to it.
type View struct {
	schema.Patient
	Age          string `json:"age"`
	HasAllergies bool   `json:"hasAllergies"`
}

type Page struct {
	Patients  []View           `json:"patients"`
	Next      *docstore.Cursor `json:"next,omitempty"`
	FromCache bool             `json:"fromCache"`
}

type Created struct {
	Patient View                  `json:"patient"`
	Write   syncstore.WriteResult `json:"write"`
}

type Deleted struct {
	Patient syncstore.WriteResult   `json:"patient"`
	Events  []syncstore.WriteResult `json:"events"`
}

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, account schema.Account, scope syncstore.Scope, req CreateRequest) (*Created, error)
	Update(ctx context.Context, scope syncstore.Scope, id string, in Input) (syncstore.WriteResult, error)
	Get(ctx context.Context, scope syncstore.Scope, id string) (*View, error)
	// List returns one page of the active clinic, newest first.
	List(ctx context.Context, scope syncstore.Scope, after *docstore.Cursor) (*Page, error)
	// Search scans the account's patients across every clinic.
	Search(ctx context.Context, scope syncstore.Scope, term string) (*Page, error)
	FindDuplicate(ctx context.Context, scope syncstore.Scope, name string) (*schema.Patient, error)
	// Delete removes the patient's clinical events and then the patient.
	Delete(ctx context.Context, scope syncstore.Scope, id string, confirmed bool) (*Deleted, error)
	// Watch opens a live list: the clinic page, or the broad search set.
	Watch(ctx context.Context, scope syncstore.Scope, after *docstore.Cursor, broad bool) (*syncstore.Subscription, error)
	Views(snap syncstore.Snapshot) []View
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type patientService struct {
	store *syncstore.Store
	loc   *time.Location
	now   func() time.Time
}

func New(store *syncstore.Store, opts Options) Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &patientService{store: store, loc: opts.Location, now: opts.Now}
}

func (s *patientService) Create(ctx context.Context, account schema.Account, scope syncstore.Scope, req CreateRequest) (*Created, error) {
	if scope.ClinicID == "" {
		return nil, ErrClinicRequired
	}
	if !account.HasClinic(scope.ClinicID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClinic, scope.ClinicID)
	}
	in, err := s.clean(req.Input)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		match, err := s.FindDuplicate(ctx, scope, in.Name)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return nil, &DuplicateError{Match: *match}
		}
	}

	p := schema.Patient{
		Name:            in.Name,
		NameLowerCase:   strings.ToLower(in.Name),
		BirthDate:       in.BirthDate,
		Sex:             in.Sex,
		Phone:           in.Phone,
		BloodType:       in.BloodType,
		CURP:            in.CURP,
		Allergies:       in.Allergies,
		ChronicDiseases: in.ChronicDiseases,
		Tutor:           in.Tutor,
		Notes:           in.Notes,
		ClinicID:        scope.ClinicID,
		CreatedAt:       docstore.FormatTime(s.now()),
	}
	fields, err := p.Fields()
	if err != nil {
		return nil, err
	}

	res, err := s.store.Write(ctx, scope, schema.PatientsPath(scope.AccountID), "", fields, syncstore.Replace)
	if err != nil {
		return nil, err
	}
	p.ID = res.ID
	p.Pending = true
	return &Created{Patient: s.view(p), Write: res}, nil
}

// Update rewrites the editable fields. The clinic, creation time and legacy
// id are kept.
func (s *patientService) Update(ctx context.Context, scope syncstore.Scope, id string, in Input) (syncstore.WriteResult, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return syncstore.WriteResult{}, err
	}
	in, err := s.clean(in)
	if err != nil {
		return syncstore.WriteResult{}, err
	}
	patch := map[string]any{
		"name":            in.Name,
		"nameLowerCase":   strings.ToLower(in.Name),
		"birthDate":       in.BirthDate,
		"sex":             in.Sex,
		"phone":           in.Phone,
		"bloodType":       in.BloodType,
		"curp":            in.CURP,
		"allergies":       in.Allergies,
		"chronicDiseases": in.ChronicDiseases,
		"tutor":           in.Tutor,
		"notes":           in.Notes,
	}
	return s.store.Write(ctx, scope, schema.PatientsPath(scope.AccountID), id, patch, syncstore.Merge)
}

func (s *patientService) Get(ctx context.Context, scope syncstore.Scope, id string) (*View, error) {
	doc, pending, err := s.store.Get(ctx, scope, schema.PatientsPath(scope.AccountID), id)
	if err != nil {
		if errors.Is(err, syncstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
		}
		return nil, err
	}
	p, err := schema.PatientFromDoc(doc)
	if err != nil {
		return nil, err
	}
	p.Pending = pending
	v := s.view(p)
	return &v, nil
}

func (s *patientService) List(ctx context.Context, scope syncstore.Scope, after *docstore.Cursor) (*Page, error) {
	if scope.ClinicID == "" {
		return nil, ErrClinicRequired
	}
	snap, err := s.store.Find(ctx, s.listQuery(scope, after, false))
	if err != nil {
		return nil, err
	}
	page := &Page{Patients: s.Views(snap), FromCache: snap.FromCache}
	if len(snap.Docs) == PageSize {
		page.Next = snap.Next(orderField)
	}
	return page, nil
}

func (s *patientService) Search(ctx context.Context, scope syncstore.Scope, term string) (*Page, error) {
	snap, err := s.store.Find(ctx, s.listQuery(scope, nil, true))
	if err != nil {
		return nil, err
	}
	page := &Page{Patients: []View{}, FromCache: snap.FromCache}
	for _, v := range s.Views(snap) {
		if clinical.MatchesSearch(v.Name, term) {
			page.Patients = append(page.Patients, v)
		}
	}
	return page, nil
}

// FindDuplicate checks name against every patient of the account. It
// returns nil when nothing matches or the name is too short to check.
func (s *patientService) FindDuplicate(ctx context.Context, scope syncstore.Scope, name string) (*schema.Patient, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < clinical.MinDuplicateQuery {
		return nil, nil
	}
	snap, err := s.store.Find(ctx, s.listQuery(scope, nil, true))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(snap.Docs))
	for i, d := range snap.Docs {
		names[i] = d.String("name")
	}
	i := clinical.FindDuplicate(name, names)
	if i < 0 {
		return nil, nil
	}
	p, err := schema.PatientFromDoc(snap.Docs[i])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *patientService) Delete(ctx context.Context, scope syncstore.Scope, id string, confirmed bool) (*Deleted, error) {
	if !confirmed {
		return nil, syncstore.ErrNotConfirmed
	}
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}

	eventsPath := schema.EventsPath(scope.AccountID, id)
	events, err := s.store.Find(ctx, syncstore.Query{Scope: scope, Parent: eventsPath, Broad: true})
	if err != nil {
		return nil, err
	}

	out := &Deleted{Events: make([]syncstore.WriteResult, 0, len(events.Docs))}
	for _, e := range events.Docs {
		res, err := s.store.Delete(ctx, scope, eventsPath, e.ID, true)
		if err != nil {
			return nil, fmt.Errorf("delete event %s: %w", e.ID, err)
		}
		out.Events = append(out.Events, res)
	}

	out.Patient, err = s.store.Delete(ctx, scope, schema.PatientsPath(scope.AccountID), id, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *patientService) Watch(ctx context.Context, scope syncstore.Scope, after *docstore.Cursor, broad bool) (*syncstore.Subscription, error) {
	if !broad && scope.ClinicID == "" {
		return nil, ErrClinicRequired
	}
	return s.store.Open(ctx, s.listQuery(scope, after, broad))
}

func (s *patientService) Views(snap syncstore.Snapshot) []View {
	out := make([]View, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		p, err := schema.PatientFromDoc(d)
		if err != nil {
			continue
		}
		p.Pending = snap.Pending[d.ID]
		out = append(out, s.view(p))
	}
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *patientService) listQuery(scope syncstore.Scope, after *docstore.Cursor, broad bool) syncstore.Query {
	q := syncstore.Query{
		Scope:   scope,
		Parent:  schema.PatientsPath(scope.AccountID),
		OrderBy: orderField,
		Limit:   PageSize,
		After:   after,
		Broad:   broad,
	}
	if broad {
		q.Limit = SearchLimit
		q.After = nil
	}
	return q
}

func (s *patientService) clean(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	in.BirthDate = strings.TrimSpace(in.BirthDate)
	if in.BirthDate != "" {
		birth, err := clinical.ParseBirthDate(in.BirthDate, s.loc)
		if err != nil || !clinical.ValidBirthDate(birth, s.now().In(s.loc)) {
			return in, fmt.Errorf("%w: %q", ErrInvalidBirthDate, in.BirthDate)
		}
	}
	if strings.TrimSpace(in.Sex) == "" {
		in.Sex = schema.DefaultSex
	}
	return in, nil
}

func (s *patientService) view(p schema.Patient) View {
	v := View{Patient: p, HasAllergies: clinical.HasAllergies(p.Allergies)}
	if birth, err := clinical.ParseBirthDate(p.BirthDate, s.loc); err == nil {
		v.Age = clinical.AgeLabel(birth, s.now().In(s.loc))
	}
	return v
}
