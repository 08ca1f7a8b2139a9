package schema

import (
	"errors"
	"fmt"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

const DefaultSex = "Hombre"

var ErrMissingName = errors.New("patient name is required")

// Patient fields are always stored, with "" for anything not captured.
type Patient struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	NameLowerCase   string `json:"nameLowerCase"`
	BirthDate       string `json:"birthDate"`
	Sex             string `json:"sex"`
	Phone           string `json:"phone"`
	BloodType       string `json:"bloodType"`
	CURP            string `json:"curp"`
	Allergies       string `json:"allergies"`
	ChronicDiseases string `json:"chronicDiseases"`
	Tutor           string `json:"tutor"`
	Notes           string `json:"notes"`
	ClinicID        string `json:"clinicId"`
	CreatedAt       string `json:"createdAt"`
	LegacyID        string `json:"legacyId,omitempty"`

	Pending bool `json:"pending,omitempty"`
}

func (p Patient) Fields() (map[string]any, error) {
	if p.Name == "" {
		return nil, ErrMissingName
	}
	return toFields(p, "id", "pending")
}

func PatientFromDoc(d docstore.Document) (Patient, error) {
	var p Patient
	if err := fromFields(d.Fields, &p); err != nil {
		return Patient{}, fmt.Errorf("patient %s: %w", d.ID, err)
	}
	p.ID = d.ID
	return p, nil
}
