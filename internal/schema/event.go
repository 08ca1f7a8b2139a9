package schema

import (
	"errors"
	"fmt"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

type EventType string

const (
	EventConsultation EventType = "consulta"
	EventPrescription EventType = "receta"
	EventLetterhead   EventType = "membrete"
)

func (t EventType) Valid() bool {
	switch t {
	case EventConsultation, EventPrescription, EventLetterhead:
		return true
	}
	return false
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

const (
	MinFontSize     = 8
	MaxFontSize     = 24
	DefaultFontSize = 12

	DefaultLetterSubject = "Constancia Médica"
	ImportedReason       = "Migración Histórica"
)

var (
	ErrInvalidEventType  = errors.New("invalid event type")
	ErrInvalidFormatting = errors.New("invalid formatting")
)

// Formatting controls how prescription text is printed.
type Formatting struct {
	FontSize int   `json:"fontSize"`
	Bold     bool  `json:"bold"`
	Align    Align `json:"align"`
}

func DefaultFormatting() Formatting {
	return Formatting{FontSize: DefaultFontSize, Align: AlignLeft}
}

func (f Formatting) Validate() error {
	if f.FontSize < MinFontSize || f.FontSize > MaxFontSize {
		return fmt.Errorf("%w: font size %d outside %d..%d", ErrInvalidFormatting, f.FontSize, MinFontSize, MaxFontSize)
	}
	switch f.Align {
	case AlignLeft, AlignCenter, AlignRight:
		return nil
	}
	return fmt.Errorf("%w: align %q", ErrInvalidFormatting, f.Align)
}

// ClinicalEvent is a consultation, prescription or letterhead attached to a
// patient. Fields that do not apply to the type are left out; an absent
// field means "not recorded".
type ClinicalEvent struct {
	ID       string    `json:"id,omitempty"`
	Type     EventType `json:"type"`
	Date     string    `json:"date"`
	ClinicID string    `json:"clinicId,omitempty"`

	Weight       string      `json:"weight,omitempty"`
	Height       string      `json:"height,omitempty"`
	Temp         string      `json:"temp,omitempty"`
	Pressure     string      `json:"pressure,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	PhysicalExam string      `json:"physicalExam,omitempty"`
	Diagnosis    string      `json:"diagnosis,omitempty"`
	Prescription string      `json:"prescription,omitempty"`
	Observations string      `json:"observations,omitempty"`
	IMC          string      `json:"imc,omitempty"`
	Formatting   *Formatting `json:"formatting,omitempty"`

	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`

	Pending bool `json:"pending,omitempty"`
}

// Sanitize validates the type, drops fields that do not belong to it and
// fills type defaults.
func (e *ClinicalEvent) Sanitize() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, e.Type)
	}

	switch e.Type {
	case EventLetterhead:
		*e = ClinicalEvent{
			ID:       e.ID,
			Type:     e.Type,
			Date:     e.Date,
			ClinicID: e.ClinicID,
			Subject:  e.Subject,
			Body:     e.Body,
		}
		if e.Subject == "" {
			e.Subject = DefaultLetterSubject
		}
		return nil
	case EventPrescription:
		e.Weight, e.Height, e.Temp, e.Pressure, e.IMC = "", "", "", "", ""
		e.Reason, e.PhysicalExam = "", ""
	}
	e.Subject, e.Body = "", ""

	// Consultations keep formatting only when it was sent; printing applies
	// the default.
	if e.Formatting == nil {
		if e.Type != EventPrescription {
			return nil
		}
		f := DefaultFormatting()
		e.Formatting = &f
	}
	return e.Formatting.Validate()
}

func (e ClinicalEvent) Fields() (map[string]any, error) {
	return toFields(e, "id", "pending")
}

func EventFromDoc(d docstore.Document) (ClinicalEvent, error) {
	var e ClinicalEvent
	if err := fromFields(d.Fields, &e); err != nil {
		return ClinicalEvent{}, fmt.Errorf("event %s: %w", d.ID, err)
	}
	e.ID = d.ID
	return e, nil
}
