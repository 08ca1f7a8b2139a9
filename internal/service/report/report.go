// Package report builds the registered-patients report of a clinic over an
// inclusive range of local days, renders it as XLSX and optionally archives
// and e-mails it.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/email"
	"github.com/Alijeyrad/consultorio_backend/pkg/s3"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DefaultTimezone    = "America/Mexico_City"
	DefaultPhoneRegion = "MX"

	displayDate = "02/01/2006"
	missing     = "-"
	noPhone     = "N/A"
)

var Columns = []string{"Nombre del Paciente", "Fecha Registro", "Edad", "Teléfono", "Sexo"}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type Row struct {
	Name       string `json:"name"`
	Registered string `json:"registered"`
	Age        string `json:"age"`
	Phone      string `json:"phone"`
	Sex        string `json:"sex"`
}

func (r Row) Cells() []any {
	return []any{r.Name, r.Registered, r.Age, r.Phone, r.Sex}
}

// Request selects the range as YYYY-MM-DD local dates. The clinic fields
// only brand the output.
type Request struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	ClinicName   string `json:"-"`
	DoctorName   string `json:"-"`
	PrimaryColor string `json:"-"`
}

type Report struct {
	Request
	Rows     []Row  `json:"rows"`
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
}

type Delivery struct {
	ArchiveKey string   `json:"archive_key,omitempty"`
	ArchiveURL string   `json:"archive_url,omitempty"`
	EmailedTo  []string `json:"emailed_to,omitempty"`
}

// Archiver stores generated reports. *s3.Client implements it.
type Archiver interface {
	UploadBytes(ctx context.Context, key, contentType string, data []byte) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Mailer sends reports. *email.Client implements it.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, m email.Message) error
}

type Options struct {
	Location    *time.Location
	PhoneRegion string
	// Archive is nil when reports are not archived.
	Archive       Archiver
	ArchivePrefix string
	Mailer        Mailer
	Recipients    []string
	Logger        *slog.Logger
	Now           func() time.Time
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	// Rows lists the clinic's patients created within the range, newest first.
	Rows(ctx context.Context, scope syncstore.Scope, start, end string) ([]Row, error)
	Generate(ctx context.Context, scope syncstore.Scope, req Request) (*Report, error)
	// Deliver archives rep when an archive is configured and e-mails it to
	// to, or to the configured recipients when to is empty.
	Deliver(ctx context.Context, scope syncstore.Scope, rep *Report, to []string) (*Delivery, error)
}

// Filename is Reporte_Pacientes_<start>_<end>.xlsx.
func Filename(start, end string) string {
	return fmt.Sprintf("Reporte_Pacientes_%s_%s.xlsx", start, end)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type reportService struct {
	store *syncstore.Store
	opts  Options
	log   *slog.Logger
}

func New(store *syncstore.Store, opts Options) Service {
	if opts.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.Local
		}
		opts.Location = loc
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = DefaultPhoneRegion
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &reportService{store: store, opts: opts, log: opts.Logger.With("component", "report")}
}

func (s *reportService) Rows(ctx context.Context, scope syncstore.Scope, start, end string) ([]Row, error) {
	if scope.ClinicID == "" {
		return nil, ErrClinicRequired
	}
	from, to, err := clinical.DayBounds(start, end, s.opts.Location)
	if err != nil {
		return nil, err
	}

	snap, err := s.store.Find(ctx, syncstore.Query{
		Scope:   scope,
		Parent:  schema.PatientsPath(scope.AccountID),
		OrderBy: "createdAt",
	})
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().In(s.opts.Location)
	rows := make([]Row, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		created, err := docstore.ParseTime(d.String("createdAt"))
		if err != nil || !clinical.InRange(created, from, to) {
			continue
		}
		p, err := schema.PatientFromDoc(d)
		if err != nil {
			continue
		}
		rows = append(rows, Row{
			Name:       p.Name,
			Registered: created.In(s.opts.Location).Format(displayDate),
			Age:        s.age(p.BirthDate, now),
			Phone:      s.phone(p.Phone),
			Sex:        p.Sex,
		})
	}
	return rows, nil
}

func (s *reportService) Generate(ctx context.Context, scope syncstore.Scope, req Request) (*Report, error) {
	rows, err := s.Rows(ctx, scope, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRecords
	}

	rep := &Report{Request: req, Rows: rows, Filename: Filename(req.Start, req.End)}
	rep.Data, err = renderXLSX(rep)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *reportService) Deliver(ctx context.Context, scope syncstore.Scope, rep *Report, to []string) (*Delivery, error) {
	out := &Delivery{}

	if s.opts.Archive != nil {
		key := s3.ReportKey(s.opts.ArchivePrefix, scope.AccountID, rep.Filename)
		if err := s.opts.Archive.UploadBytes(ctx, key, ContentType, rep.Data); err != nil {
			return nil, err
		}
		out.ArchiveKey = key
		if url, err := s.opts.Archive.PresignDownload(ctx, key); err == nil {
			out.ArchiveURL = url
		} else {
			s.log.Warn("presign archived report", "key", key, "err", err)
		}
	}

	if len(to) == 0 {
		to = s.opts.Recipients
	}
	if len(to) == 0 {
		if out.ArchiveKey != "" {
			return out, nil
		}
		return nil, ErrNoRecipients
	}
	if s.opts.Mailer == nil || !s.opts.Mailer.Enabled() {
		return nil, ErrEmailDisabled
	}

	msg := email.BuildReportEmail(to, email.ReportEmailData{
		ClinicName:  rep.ClinicName,
		DoctorName:  rep.DoctorName,
		Start:       s.display(rep.Start),
		End:         s.display(rep.End),
		Rows:        len(rep.Rows),
		Filename:    rep.Filename,
		ContentType: ContentType,
		Data:        rep.Data,
	})
	if err := s.opts.Mailer.Send(ctx, msg); err != nil {
		return nil, err
	}
	out.EmailedTo = to

	s.log.Info("report delivered", "account_id", scope.AccountID, "file", rep.Filename, "recipients", len(to), "archived", out.ArchiveKey != "")
	return out, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *reportService) age(birthDate string, now time.Time) string {
	if birthDate == "" {
		return missing
	}
	birth, err := clinical.ParseBirthDate(birthDate, s.opts.Location)
	if err != nil || birth.After(now) {
		return missing
	}
	return fmt.Sprintf("%d años", clinical.AgeYears(birth, now))
}

// phone renders a parseable number in E.164 and anything else verbatim.
func (s *reportService) phone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return noPhone
	}
	num, err := phonenumbers.Parse(raw, s.opts.PhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func (s *reportService) display(day string) string {
	t, err := time.ParseInLocation(clinical.DateLayout, day, s.opts.Location)
	if err != nil {
		return day
	}
	return t.Format(displayDate)
}
