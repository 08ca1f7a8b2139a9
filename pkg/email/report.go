package email

import (
	"fmt"
	"html"
)

// ReportEmailData describes a generated patient report.
type ReportEmailData struct {
	ClinicName  string
	DoctorName  string
	Start       string // dd/mm/yyyy
	End         string // dd/mm/yyyy
	Rows        int
	Filename    string
	ContentType string
	Data        []byte
}

// BuildReportEmail returns a message with the XLSX report attached.
func BuildReportEmail(to []string, d ReportEmailData) Message {
	clinic := d.ClinicName
	if clinic == "" {
		clinic = "Consultorio"
	}

	subject := fmt.Sprintf("Reporte de pacientes %s - %s", d.Start, d.End)

	text := fmt.Sprintf(`Reporte de pacientes de %s

Periodo: %s al %s
Pacientes registrados: %d

El archivo %s va adjunto.
`, clinic, d.Start, d.End, d.Rows, d.Filename)
	if d.DoctorName != "" {
		text += "\n" + d.DoctorName + "\n"
	}

	htmlBody := fmt.Sprintf(`<p><strong>Reporte de pacientes de %s</strong></p>
<p>Periodo: %s al %s<br>Pacientes registrados: %d</p>
<p>El archivo <em>%s</em> va adjunto.</p>`,
		html.EscapeString(clinic), html.EscapeString(d.Start), html.EscapeString(d.End),
		d.Rows, html.EscapeString(d.Filename))

	return Message{
		To:       to,
		Subject:  subject,
		TextBody: text,
		HTMLBody: htmlBody,
		Attachments: []Attachment{{
			Filename:    d.Filename,
			ContentType: d.ContentType,
			Data:        d.Data,
		}},
	}
}
