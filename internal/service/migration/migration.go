// Package migration imports legacy exports: first patients, then their
// consultation history linked by the legacy patient id. Rows are processed
// one at a time and every row yields exactly one log line.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

type Mode string

const (
	ModePatients Mode = "pacientes"
	ModeEvents   Mode = "consultas"
)

func (m Mode) Valid() bool { return m == ModePatients || m == ModeEvents }

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Line is one log line of an import run.
type Line struct {
	Row  int    `json:"row"`
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

func (l Line) String() string { return l.Text }

type Result struct {
	Mode      Mode `json:"mode"`
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

type Request struct {
	Mode Mode
	Rows []Row
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	// Import processes req.Rows in order, calling emit once per row as it
	// goes. Cancelling ctx stops the run between rows.
	Import(ctx context.Context, account schema.Account, scope syncstore.Scope, req Request, emit func(Line)) (*Result, error)
}

// ParseRows reads an import file: a JSON array of flat objects.
func ParseRows(r io.Reader) ([]Row, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	rows := make([]Row, 0, len(raw))
	for i, msg := range raw {
		var row Row
		if err := json.Unmarshal(msg, &row); err != nil || row == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrNotArray, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type migrationService struct {
	store *syncstore.Store
	log   *slog.Logger
	loc   *time.Location
	now   func() time.Time
}

func New(store *syncstore.Store, log *slog.Logger, loc *time.Location, now func() time.Time) Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &migrationService{store: store, log: log.With("component", "migration"), loc: loc, now: now}
}

func (s *migrationService) Import(ctx context.Context, account schema.Account, scope syncstore.Scope, req Request, emit func(Line)) (*Result, error) {
	if account.Role != schema.RoleAdmin {
		return nil, ErrForbidden
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if scope.ClinicID == "" || !account.HasClinic(scope.ClinicID) {
		return nil, ErrClinicRequired
	}
	if emit == nil {
		emit = func(Line) {}
	}

	s.log.Info("import started", "account_id", scope.AccountID, "clinic_id", scope.ClinicID, "mode", req.Mode, "rows", len(req.Rows))

	res := &Result{Mode: req.Mode}
	for i, row := range req.Rows {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		var line Line
		if req.Mode == ModePatients {
			line = s.importPatient(ctx, scope, row)
		} else {
			line = s.importEvent(ctx, scope, row)
		}
		line.Row = i + 1

		res.Processed++
		if line.OK {
			res.Succeeded++
		} else {
			res.Failed++
		}
		emit(line)
	}

	s.log.Info("import finished",
		"account_id", scope.AccountID,
		"mode", req.Mode,
		"processed", res.Processed,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

func (s *migrationService) importPatient(ctx context.Context, scope syncstore.Scope, row Row) Line {
	fields := make(map[string]any, len(PatientAliases)+3)
	for _, a := range PatientAliases {
		v, _ := row.Value(a)
		fields[a.Target] = v
	}

	name := fields["name"].(string)
	rawBirth := ""
	if birth := fields["birthDate"].(string); birth != "" {
		if t, err := clinical.ParseLegacyDate(birth, s.loc); err == nil {
			fields["birthDate"] = t.In(s.loc).Format(clinical.DateLayout)
		} else {
			// Stored as exported so the row is not lost.
			rawBirth = birth
			s.log.Warn("unreadable birth date kept as exported", "account_id", scope.AccountID, "patient", name, "birth_date", birth)
		}
	}
	fields["nameLowerCase"] = clinical.Normalize(name)
	fields["clinicId"] = scope.ClinicID
	fields["createdAt"] = docstore.FormatTime(s.now())

	if _, err := s.store.Write(ctx, scope, schema.PatientsPath(scope.AccountID), "", fields, syncstore.Replace); err != nil {
		return failure("Error: No se pudo registrar a %s: %v", name, err)
	}
	if rawBirth != "" {
		return success("Registro exitoso: %s (fecha de nacimiento sin formato reconocido: %q)", name, rawBirth)
	}
	return success("Registro exitoso: %s", name)
}

func (s *migrationService) importEvent(ctx context.Context, scope syncstore.Scope, row Row) Line {
	fields := make(map[string]any, len(EventAliases)+2)
	for _, a := range EventAliases {
		if v, ok := row.Value(a); ok || a.Default != "" {
			fields[a.Target] = v
		}
	}

	legacyID, _ := fields[fieldLegacyID].(string)
	delete(fields, fieldLegacyID)
	if legacyID == "" {
		return failure("Omitiendo: Registro sin identificador de relación.")
	}

	date := s.now()
	if raw, ok := fields[fieldDate].(string); ok {
		t, err := clinical.ParseLegacyDate(raw, s.loc)
		if err != nil {
			return failure("Error: Fecha de consulta inválida %q (ID Legacy %s)", raw, legacyID)
		}
		date = t
	}
	fields[fieldDate] = docstore.FormatTime(date)

	snap, err := s.store.Find(ctx, syncstore.Query{
		Scope:   scope,
		Parent:  schema.PatientsPath(scope.AccountID),
		Broad:   true,
		Limit:   2,
		Filters: []docstore.Filter{{Field: fieldLegacyID, Value: legacyID}},
	})
	if err != nil {
		return failure("Error: No se pudo buscar al paciente con ID Legacy %s: %v", legacyID, err)
	}
	switch len(snap.Docs) {
	case 0:
		return failure("Error: No se encontró al paciente con ID Legacy %s", legacyID)
	case 1:
	default:
		return failure("Error: Varios pacientes comparten el ID Legacy %s", legacyID)
	}
	patient := snap.Docs[0]

	fields["type"] = string(schema.EventConsultation)
	fields["clinicId"] = scope.ClinicID
	if imc := clinical.BMIFromText(docstore.Text(fields["weight"]), docstore.Text(fields["height"])); imc != "" {
		fields["imc"] = imc
	}

	if _, err := s.store.Write(ctx, scope, schema.EventsPath(scope.AccountID, patient.ID), "", fields, syncstore.Replace); err != nil {
		return failure("Error: No se pudo vincular el historial de ID Legacy %s: %v", legacyID, err)
	}
	return success("Historial vinculado: %s (ID: %s)", patient.String("name"), legacyID)
}

func success(format string, args ...any) Line {
	return Line{OK: true, Text: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) Line {
	return Line{Text: fmt.Sprintf(format, args...)}
}
