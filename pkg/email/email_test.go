package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageValidation(t *testing.T) {
	_, err := buildMessage("", Message{Subject: "x", TextBody: "y"})
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	_, err = buildMessage("a@b.c", Message{TextBody: "y"})
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	_, err = buildMessage("a@b.c", Message{Subject: "x"})
	assert.ErrorAs(t, err, &ErrInvalidMessage{})

	_, err = buildMessage("a@b.c", Message{Subject: "x", TextBody: "y", Attachments: []Attachment{{}}})
	assert.ErrorAs(t, err, &ErrInvalidMessage{})
}

func TestBuildReportEmail(t *testing.T) {
	m := BuildReportEmail([]string{" doc@clinica.mx ", ""}, ReportEmailData{
		ClinicName: "Clínica <Norte>",
		Start:      "01/03/2024",
		End:        "31/03/2024",
		Rows:       4,
		Filename:   "Reporte_Pacientes_2024-03-01_2024-03-31.xlsx",
		Data:       []byte("PK-xlsx"),
	})

	msg, err := buildMessage("consultorio@clinica.mx", m)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "To: doc@clinica.mx")
	assert.Contains(t, raw, "Reporte_Pacientes_2024-03-01_2024-03-31.xlsx")
	assert.Contains(t, raw, "Content-Disposition: attachment")
	assert.Contains(t, m.HTMLBody, "Clínica &lt;Norte&gt;")
	assert.Contains(t, m.TextBody, "Pacientes registrados: 4")
}

func TestSendDisabled(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.ErrorAs(t, c.Send(context.Background(), Message{}), &ErrDisabled{})

	_, err = New(Config{Enabled: true})
	assert.Error(t, err)
}
