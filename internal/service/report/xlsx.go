package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetPatients = "Pacientes"
	sheetSummary  = "Resumen"

	defaultHeaderColor = "#3B82F6"
)

var columnWidths = []float64{36, 16, 10, 18, 12}

// renderXLSX writes the patients table on the first sheet and the report
// heading on a second one.
func renderXLSX(rep *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPatients); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	color := strings.ToUpper(rep.PrimaryColor)
	if !strings.HasPrefix(color, "#") || len(color) != 7 {
		color = defaultHeaderColor
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := f.SetSheetRow(sheetPatients, "A1", &Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetPatients, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, row := range rep.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		cells := row.Cells()
		if err := f.SetSheetRow(sheetPatients, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetPatients, col, col, w); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SetPanes(sheetPatients, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, rep); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, rep *Report) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	clinic := rep.ClinicName
	if clinic == "" {
		clinic = "Consultorio"
	}
	lines := [][]any{
		{clinic},
		{"Reporte de Pacientes Registrados"},
		{"Periodo", rep.Start, rep.End},
		{"Total de registros", len(rep.Rows)},
	}
	if rep.DoctorName != "" {
		lines = append(lines, []any{"Médico", rep.DoctorName})
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return f.SetColWidth(sheetSummary, "A", "A", 28)
}
