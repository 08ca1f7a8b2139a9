// Package record manages the clinical events of a patient: consultations,
// prescriptions and letterheads.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

const orderField = "date"

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type Timeline struct {
	Events    []schema.ClinicalEvent `json:"events"`
	FromCache bool                   `json:"fromCache"`
}

type Saved struct {
	Event schema.ClinicalEvent  `json:"event"`
	Write syncstore.WriteResult `json:"write"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, scope syncstore.Scope, patientID string, ev schema.ClinicalEvent) (*Saved, error)
	// Update replaces the recorded fields. Type, date and clinic are kept.
	Update(ctx context.Context, scope syncstore.Scope, patientID, id string, ev schema.ClinicalEvent) (*Saved, error)
	Get(ctx context.Context, scope syncstore.Scope, patientID, id string) (*schema.ClinicalEvent, error)
	Delete(ctx context.Context, scope syncstore.Scope, patientID, id string, confirmed bool) (syncstore.WriteResult, error)
	// Timeline lists the patient's events newest first. An empty kind lists
	// every type.
	Timeline(ctx context.Context, scope syncstore.Scope, patientID string, kind schema.EventType) (*Timeline, error)
	Watch(ctx context.Context, scope syncstore.Scope, patientID string) (*syncstore.Subscription, error)
	Events(snap syncstore.Snapshot, kind schema.EventType) []schema.ClinicalEvent
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type recordService struct {
	store *syncstore.Store
	now   func() time.Time
}

func New(store *syncstore.Store, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &recordService{store: store, now: now}
}

func (s *recordService) Create(ctx context.Context, scope syncstore.Scope, patientID string, ev schema.ClinicalEvent) (*Saved, error) {
	if scope.ClinicID == "" {
		return nil, ErrClinicRequired
	}
	if err := s.patientExists(ctx, scope, patientID); err != nil {
		return nil, err
	}

	ev.ID = ""
	ev.ClinicID = scope.ClinicID
	ev.Date = docstore.FormatTime(s.now())
	if err := prepare(&ev); err != nil {
		return nil, err
	}
	return s.save(ctx, scope, patientID, "", ev)
}

func (s *recordService) Update(ctx context.Context, scope syncstore.Scope, patientID, id string, ev schema.ClinicalEvent) (*Saved, error) {
	cur, err := s.Get(ctx, scope, patientID, id)
	if err != nil {
		return nil, err
	}
	if ev.Type == "" {
		ev.Type = cur.Type
	}
	if ev.Type != cur.Type {
		return nil, fmt.Errorf("%w: %s to %s", ErrTypeChanged, cur.Type, ev.Type)
	}

	ev.ID = id
	ev.Date = cur.Date
	ev.ClinicID = cur.ClinicID
	if err := prepare(&ev); err != nil {
		return nil, err
	}
	return s.save(ctx, scope, patientID, id, ev)
}

func (s *recordService) Get(ctx context.Context, scope syncstore.Scope, patientID, id string) (*schema.ClinicalEvent, error) {
	doc, pending, err := s.store.Get(ctx, scope, schema.EventsPath(scope.AccountID, patientID), id)
	if err != nil {
		if errors.Is(err, syncstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, err
	}
	ev, err := schema.EventFromDoc(doc)
	if err != nil {
		return nil, err
	}
	ev.Pending = pending
	return &ev, nil
}

func (s *recordService) Delete(ctx context.Context, scope syncstore.Scope, patientID, id string, confirmed bool) (syncstore.WriteResult, error) {
	if !confirmed {
		return syncstore.WriteResult{}, syncstore.ErrNotConfirmed
	}
	if _, err := s.Get(ctx, scope, patientID, id); err != nil {
		return syncstore.WriteResult{}, err
	}
	return s.store.Delete(ctx, scope, schema.EventsPath(scope.AccountID, patientID), id, true)
}

func (s *recordService) Timeline(ctx context.Context, scope syncstore.Scope, patientID string, kind schema.EventType) (*Timeline, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", schema.ErrInvalidEventType, kind)
	}
	snap, err := s.store.Find(ctx, timelineQuery(scope, patientID))
	if err != nil {
		return nil, err
	}
	return &Timeline{Events: s.Events(snap, kind), FromCache: snap.FromCache}, nil
}

func (s *recordService) Watch(ctx context.Context, scope syncstore.Scope, patientID string) (*syncstore.Subscription, error) {
	return s.store.Open(ctx, timelineQuery(scope, patientID))
}

func (s *recordService) Events(snap syncstore.Snapshot, kind schema.EventType) []schema.ClinicalEvent {
	out := make([]schema.ClinicalEvent, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		ev, err := schema.EventFromDoc(d)
		if err != nil {
			continue
		}
		if kind != "" && ev.Type != kind {
			continue
		}
		ev.Pending = snap.Pending[d.ID]
		out = append(out, ev)
	}
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Events of a patient are read across clinics: imported history carries no
// clinic.
func timelineQuery(scope syncstore.Scope, patientID string) syncstore.Query {
	return syncstore.Query{
		Scope:   scope,
		Parent:  schema.EventsPath(scope.AccountID, patientID),
		OrderBy: orderField,
		Broad:   true,
	}
}

func (s *recordService) patientExists(ctx context.Context, scope syncstore.Scope, patientID string) error {
	_, _, err := s.store.Get(ctx, scope, schema.PatientsPath(scope.AccountID), patientID)
	if errors.Is(err, syncstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	return err
}

func (s *recordService) save(ctx context.Context, scope syncstore.Scope, patientID, id string, ev schema.ClinicalEvent) (*Saved, error) {
	fields, err := ev.Fields()
	if err != nil {
		return nil, err
	}
	res, err := s.store.Write(ctx, scope, schema.EventsPath(scope.AccountID, patientID), id, fields, syncstore.Replace)
	if err != nil {
		return nil, err
	}
	ev.ID = res.ID
	ev.Pending = true
	return &Saved{Event: ev, Write: res}, nil
}

// prepare sanitizes ev for its type and derives the consultation BMI.
func prepare(ev *schema.ClinicalEvent) error {
	if err := ev.Sanitize(); err != nil {
		return err
	}
	if ev.Type == schema.EventConsultation {
		ev.IMC = clinical.BMIFromText(ev.Weight, ev.Height)
	}
	return nil
}
