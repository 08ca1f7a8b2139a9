// Package document describes the printable form of clinical events: the
// physical page, the clinic background and the text laid over it.
// Rendering itself is left to the client.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/service/clinic"
	"github.com/Alijeyrad/consultorio_backend/internal/service/patient"
	"github.com/Alijeyrad/consultorio_backend/internal/service/record"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/s3"
)

// PageSize is a physical sheet in millimetres.
type PageSize struct {
	Name        string  `json:"name"`
	WidthMM     float64 `json:"width_mm"`
	HeightMM    float64 `json:"height_mm"`
	Orientation string  `json:"orientation"`
}

var (
	Letter              = PageSize{Name: "letter", WidthMM: 215.9, HeightMM: 279.4, Orientation: "portrait"}
	HalfLetterLandscape = PageSize{Name: "half-letter", WidthMM: 215.9, HeightMM: 139.7, Orientation: "landscape"}
)

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Vitals are printed with their units; absent values stay empty.
type Vitals struct {
	Weight   string `json:"weight,omitempty"`
	Height   string `json:"height,omitempty"`
	Temp     string `json:"temp,omitempty"`
	Pressure string `json:"pressure,omitempty"`
	IMC      string `json:"imc,omitempty"`
}

type Document struct {
	Kind          schema.EventType `json:"kind"`
	Page          PageSize         `json:"page"`
	BackgroundURL string           `json:"background_url,omitempty"`
	Clinic        clinic.Context   `json:"clinic"`

	PatientName string `json:"patient_name"`
	PatientAge  string `json:"patient_age,omitempty"`
	Date        string `json:"date"`
	LongDate    string `json:"long_date"`

	Diagnosis    string             `json:"diagnosis,omitempty"`
	Prescription string             `json:"prescription,omitempty"`
	Vitals       *Vitals            `json:"vitals,omitempty"`
	Formatting   *schema.Formatting `json:"formatting,omitempty"`

	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Presigner turns a stored template key into a URL. *s3.Client implements it.
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Render(ctx context.Context, account schema.Account, scope syncstore.Scope, patientID, eventID string) (*Document, error)
	// Background resolves the template of a clinic for an event type.
	Background(ctx context.Context, c clinic.Context, kind schema.EventType) string
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type documentService struct {
	clinics  clinic.Service
	patients patient.Service
	records  record.Service
	presign  Presigner
	loc      *time.Location
	log      *slog.Logger
}

// New builds the service. presign may be nil, in which case only absolute
// template URLs are used.
func New(clinics clinic.Service, patients patient.Service, records record.Service, presign Presigner, loc *time.Location, log *slog.Logger) Service {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &documentService{
		clinics:  clinics,
		patients: patients,
		records:  records,
		presign:  presign,
		loc:      loc,
		log:      log.With("component", "document"),
	}
}

func (s *documentService) Render(ctx context.Context, account schema.Account, scope syncstore.Scope, patientID, eventID string) (*Document, error) {
	ev, err := s.records.Get(ctx, scope, patientID, eventID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, scope, patientID)
	if err != nil {
		return nil, err
	}

	clinicID := ev.ClinicID
	if !account.HasClinic(clinicID) {
		clinicID = scope.ClinicID
	}
	c, err := s.clinics.Resolve(account, clinicID)
	if err != nil {
		return nil, err
	}

	when := time.Now()
	if t, err := docstore.ParseTime(ev.Date); err == nil {
		when = t
	}
	when = when.In(s.loc)

	doc := &Document{
		Kind:        ev.Type,
		Clinic:      c,
		PatientName: p.Name,
		PatientAge:  p.Age,
		Date:        when.Format("02/01/2006"),
		LongDate:    longDate(when),
	}

	switch ev.Type {
	case schema.EventConsultation, schema.EventPrescription:
		doc.Page = HalfLetterLandscape
		doc.Diagnosis = ev.Diagnosis
		doc.Prescription = ev.Prescription
		doc.Formatting = ev.Formatting
		if doc.Formatting == nil {
			f := schema.DefaultFormatting()
			doc.Formatting = &f
		}
		if ev.Type == schema.EventConsultation {
			doc.Vitals = vitals(*ev)
		}
	case schema.EventLetterhead:
		doc.Page = Letter
		doc.Subject = ev.Subject
		doc.Body = ev.Body
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotPrintable, ev.Type)
	}

	doc.BackgroundURL = s.Background(ctx, c, ev.Type)
	return doc, nil
}

func (s *documentService) Background(ctx context.Context, c clinic.Context, kind schema.EventType) string {
	ref := c.RecipeTemplateURL
	if kind == schema.EventLetterhead {
		ref = c.LetterheadTemplateURL
	}
	if ref == "" || s3.IsAbsoluteURL(ref) {
		return ref
	}
	if s.presign == nil {
		s.log.Warn("template is an object key but no object storage is configured", "clinic_id", c.ClinicID, "key", ref)
		return ""
	}
	url, err := s.presign.PresignDownload(ctx, ref)
	if err != nil {
		s.log.Warn("presign template", "clinic_id", c.ClinicID, "key", ref, "err", err)
		return ""
	}
	return url
}

func vitals(ev schema.ClinicalEvent) *Vitals {
	v := &Vitals{Pressure: ev.Pressure, IMC: ev.IMC}
	if ev.Weight != "" {
		v.Weight = ev.Weight + " kg"
	}
	if ev.Height != "" {
		v.Height = ev.Height + " Mts"
	}
	if ev.Temp != "" {
		v.Temp = ev.Temp + " °C"
	}
	if *v == (Vitals{}) {
		return nil
	}
	return v
}

// longDate is the date line of official letters, e.g. "10 de marzo del 2024".
func longDate(t time.Time) string {
	return fmt.Sprintf("%d de %s del %d", t.Day(), months[t.Month()-1], t.Year())
}
