package migration

import (
	"strings"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Alias maps one target field to the source keys accepted for it. Sources
// are tried in order and the first non-empty value wins.
type Alias struct {
	Target  string
	Sources []string
	Default string
	// Numeric strips everything but digits and '.' from the value.
	Numeric bool
}

// Row is one flat object of an import file.
type Row map[string]any

// Value resolves a against r. The bool is false when no source had a value
// and the default was used.
func (r Row) Value(a Alias) (string, bool) {
	for _, key := range a.Sources {
		v, ok := r[key]
		if !ok {
			continue
		}
		var s string
		if a.Numeric {
			s = clinical.CleanNumber(v)
		} else {
			s = strings.TrimSpace(docstore.Text(v))
		}
		if s != "" {
			return s, true
		}
	}
	return a.Default, false
}

const (
	fieldLegacyID = "legacyId"
	fieldDate     = "date"
)

var PatientAliases = []Alias{
	{Target: "name", Sources: []string{"NombreCompleto", "Nombre"}, Default: "Paciente sin nombre"},
	{Target: "birthDate", Sources: []string{"FechaNacimiento"}},
	{Target: "sex", Sources: []string{"Sexo"}, Default: schema.DefaultSex},
	{Target: "phone", Sources: []string{"Telefono", "Teléfono"}},
	{Target: "curp", Sources: []string{"CURP"}},
	{Target: "tutor", Sources: []string{"Tutor"}},
	{Target: "bloodType", Sources: []string{"GrupoSanguineo"}},
	{Target: "allergies", Sources: []string{"Alergias"}},
	{Target: "chronicDiseases", Sources: []string{"EnfermedadesCronicas"}},
	{Target: "notes", Sources: []string{"Notas"}},
	{Target: fieldLegacyID, Sources: []string{"IdPaciente", "ID"}},
}

// EventAliases describe consultation rows. The legacy id links the row to
// an imported patient and is not stored on the event.
var EventAliases = []Alias{
	{Target: fieldLegacyID, Sources: []string{"Paciente_ID", "IdPacienteRelacionado"}},
	{Target: fieldDate, Sources: []string{"Fecha_Consulta", "FechaConsulta"}},
	{Target: "weight", Sources: []string{"Peso"}, Numeric: true},
	{Target: "height", Sources: []string{"Talla"}, Numeric: true},
	{Target: "temp", Sources: []string{"Temperatura"}, Numeric: true},
	{Target: "pressure", Sources: []string{"Tensión Arterial", "TensionArterial"}},
	{Target: "reason", Sources: []string{"Motivo"}, Default: schema.ImportedReason},
	{Target: "diagnosis", Sources: []string{"Diagnóstico", "Diagnostico"}},
	{Target: "prescription", Sources: []string{"Tratamiento", "RecetaTexto"}},
	{Target: "observations", Sources: []string{"Observaciones"}},
}
