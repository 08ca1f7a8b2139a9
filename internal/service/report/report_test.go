package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Alijeyrad/consultorio_backend/internal/clinical"
	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/email"
	"github.com/Alijeyrad/consultorio_backend/pkg/logs"
)

var (
	cst   = time.FixedZone("CST", -6*60*60)
	scope = syncstore.Scope{AccountID: "u1", ClinicID: "clinic_a"}
)

type fakeArchive struct {
	keys map[string][]byte
}

func (a *fakeArchive) UploadBytes(_ context.Context, key, _ string, data []byte) error {
	a.keys[key] = data
	return nil
}

func (a *fakeArchive) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://files.example.com/" + key, nil
}

type fakeMailer struct {
	enabled bool
	sent    []email.Message
	err     error
}

func (m *fakeMailer) Enabled() bool { return m.enabled }

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newStore(t *testing.T) *syncstore.Store {
	t.Helper()
	store := syncstore.New(syncstore.Options{
		Journal: syncstore.NewMemoryJournal(),
		Backend: docstore.NewMemory(),
		Logger:  logs.Discard(),
	})
	t.Cleanup(store.Close)
	return store
}

func addPatient(t *testing.T, store *syncstore.Store, clinic, name, birth, phone string, created time.Time) {
	t.Helper()
	p := schema.Patient{
		Name:      name,
		BirthDate: birth,
		Phone:     phone,
		Sex:       "Mujer",
		ClinicID:  clinic,
		CreatedAt: docstore.FormatTime(created),
	}
	fields, err := p.Fields()
	require.NoError(t, err)
	_, err = store.Write(context.Background(), scope, schema.PatientsPath("u1"), "", fields, syncstore.Replace)
	require.NoError(t, err)
}

func newService(t *testing.T, opts Options) (Service, *syncstore.Store) {
	t.Helper()
	store := newStore(t)
	opts.Location = cst
	opts.Logger = logs.Discard()
	opts.Now = func() time.Time { return time.Date(2024, 3, 12, 10, 0, 0, 0, cst) }
	return New(store, opts), store
}

func TestRowsUseInclusiveLocalDays(t *testing.T) {
	svc, store := newService(t, Options{})
	addPatient(t, store, "clinic_a", "Ana Ruiz", "2020-06-15", "55 1234 5678", time.Date(2024, 3, 10, 23, 59, 59, 0, cst))
	addPatient(t, store, "clinic_a", "Luis Ortega", "", "", time.Date(2024, 3, 11, 0, 0, 1, 0, cst))
	addPatient(t, store, "clinic_a", "Eva Soto", "", "sin teléfono", time.Date(2024, 3, 10, 0, 0, 0, 0, cst))
	addPatient(t, store, "clinic_b", "Otra Sede", "", "", time.Date(2024, 3, 10, 12, 0, 0, 0, cst))

	rows, err := svc.Rows(context.Background(), scope, "2024-03-10", "2024-03-10")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Name: "Ana Ruiz", Registered: "10/03/2024", Age: "3 años", Phone: "+525512345678", Sex: "Mujer"}, rows[0])
	assert.Equal(t, Row{Name: "Eva Soto", Registered: "10/03/2024", Age: "-", Phone: "sin teléfono", Sex: "Mujer"}, rows[1])

	rows, err = svc.Rows(context.Background(), scope, "2024-03-10", "2024-03-11")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "N/A", rows[0].Phone)

	_, err = svc.Rows(context.Background(), scope, "2024-03-11", "2024-03-10")
	assert.ErrorIs(t, err, clinical.ErrInvalidRange)
}

func TestGenerateXLSX(t *testing.T) {
	svc, store := newService(t, Options{})
	addPatient(t, store, "clinic_a", "Ana Ruiz", "2020-06-15", "", time.Date(2024, 3, 10, 9, 0, 0, 0, cst))

	_, err := svc.Generate(context.Background(), scope, Request{Start: "2024-01-01", End: "2024-01-31"})
	require.ErrorIs(t, err, ErrNoRecords)

	rep, err := svc.Generate(context.Background(), scope, Request{Start: "2024-03-01", End: "2024-03-31", ClinicName: "Centro", PrimaryColor: "#0f766e"})
	require.NoError(t, err)
	assert.Equal(t, "Reporte_Pacientes_2024-03-01_2024-03-31.xlsx", rep.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(rep.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetPatients)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"Ana Ruiz", "10/03/2024", "3 años", "N/A", "Mujer"}, rows[1])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	assert.Equal(t, "Centro", summary[0][0])
}

func TestDeliver(t *testing.T) {
	archive := &fakeArchive{keys: map[string][]byte{}}
	mailer := &fakeMailer{enabled: true}
	svc, _ := newService(t, Options{Archive: archive, ArchivePrefix: "reports", Mailer: mailer, Recipients: []string{"admin@clinica.mx"}})

	rep := &Report{Request: Request{Start: "2024-03-01", End: "2024-03-31"}, Rows: []Row{{Name: "Ana"}}, Filename: Filename("2024-03-01", "2024-03-31"), Data: []byte("xlsx")}
	out, err := svc.Deliver(context.Background(), scope, rep, nil)
	require.NoError(t, err)
	assert.Equal(t, "reports/u1/Reporte_Pacientes_2024-03-01_2024-03-31.xlsx", out.ArchiveKey)
	assert.Equal(t, []byte("xlsx"), archive.keys[out.ArchiveKey])
	assert.Contains(t, out.ArchiveURL, out.ArchiveKey)
	assert.Equal(t, []string{"admin@clinica.mx"}, out.EmailedTo)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Reporte de pacientes 01/03/2024 - 31/03/2024", mailer.sent[0].Subject)
	require.Len(t, mailer.sent[0].Attachments, 1)
	assert.Equal(t, ContentType, mailer.sent[0].Attachments[0].ContentType)

	mailer.err = errors.New("smtp down")
	_, err = svc.Deliver(context.Background(), scope, rep, []string{"otro@clinica.mx"})
	assert.Error(t, err)
}

func TestDeliverWithoutChannels(t *testing.T) {
	svc, _ := newService(t, Options{})
	rep := &Report{Filename: "r.xlsx"}

	_, err := svc.Deliver(context.Background(), scope, rep, nil)
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = svc.Deliver(context.Background(), scope, rep, []string{"a@b.mx"})
	assert.ErrorIs(t, err, ErrEmailDisabled)
}
