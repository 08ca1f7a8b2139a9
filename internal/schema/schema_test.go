package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "users/u1/patients", PatientsPath("u1"))
	assert.Equal(t, "users/u1/patients/p1/consultations", EventsPath("u1", "p1"))
	assert.NoError(t, docstore.ValidatePath(EventsPath("u1", "p1"), "e1"))
}

func TestPatientFieldsKeepEmptyValues(t *testing.T) {
	p := Patient{ID: "p1", Name: "Ana", Sex: DefaultSex, ClinicID: "clinic_a", Pending: true}
	fields, err := p.Fields()
	require.NoError(t, err)

	assert.NotContains(t, fields, "id")
	assert.NotContains(t, fields, "pending")
	assert.NotContains(t, fields, "legacyId")
	assert.Equal(t, "", fields["phone"])

	back, err := PatientFromDoc(docstore.Document{ID: "p1", Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, "p1", back.ID)
	assert.Equal(t, "Ana", back.Name)

	_, err = Patient{}.Fields()
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestEventSanitize(t *testing.T) {
	letter := ClinicalEvent{Type: EventLetterhead, Body: "texto", Weight: "70", Formatting: &Formatting{FontSize: 30}}
	require.NoError(t, letter.Sanitize())
	assert.Equal(t, DefaultLetterSubject, letter.Subject)
	assert.Empty(t, letter.Weight)
	assert.Nil(t, letter.Formatting)

	rx := ClinicalEvent{Type: EventPrescription, Prescription: "Paracetamol", Weight: "70", Subject: "x"}
	require.NoError(t, rx.Sanitize())
	assert.Empty(t, rx.Weight)
	assert.Empty(t, rx.Subject)
	require.NotNil(t, rx.Formatting)
	assert.Equal(t, DefaultFormatting(), *rx.Formatting)

	visit := ClinicalEvent{Type: EventConsultation, Diagnosis: "Faringitis"}
	require.NoError(t, visit.Sanitize())
	assert.Nil(t, visit.Formatting)
	fields, err := visit.Fields()
	require.NoError(t, err)
	assert.NotContains(t, fields, "formatting")

	bad := ClinicalEvent{Type: EventConsultation, Formatting: &Formatting{FontSize: 7, Align: AlignLeft}}
	assert.ErrorIs(t, bad.Sanitize(), ErrInvalidFormatting)

	unknown := ClinicalEvent{Type: "nota"}
	assert.ErrorIs(t, unknown.Sanitize(), ErrInvalidEventType)
}

func TestEventFieldsOmitAbsent(t *testing.T) {
	e := ClinicalEvent{ID: "e1", Type: EventConsultation, Date: "2024-03-10T00:00:00.000000000Z", Weight: "12"}
	fields, err := e.Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":   "consulta",
		"date":   "2024-03-10T00:00:00.000000000Z",
		"weight": "12",
	}, fields)
}

func TestAccountFromDoc(t *testing.T) {
	a, err := AccountFromDoc(docstore.Document{ID: "u1", Fields: map[string]any{
		"username": "ana",
		"role":     "doctor",
		"clinics": map[string]any{
			"clinic_a": map[string]any{"name": "Centro", "doctorName": "Dra. Ana", "primaryColor": "#3b82f6"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UID)
	assert.Equal(t, RoleDoctor, a.Role)
	assert.True(t, a.HasClinic("clinic_a"))
	assert.False(t, a.HasClinic("clinic_b"))
}
