// Package export writes monitoring events to spreadsheets.
package export

import (
	"fmt"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/xuri/excelize/v2"
)

const sheet = "Monitoreos"

var headers = []string{
	"ID",
	"Cliente",
	"Tipo de agua",
	"Tipo de muestreo",
	"Fecha de muestreo",
	"Punto de muestreo",
	"Coordenadas",
	"Parámetro",
	"Valor",
	"Valor original",
	"Unidad",
	"Método",
	"Límite",
	"PDF origen",
	"Fecha de procesamiento",
}

// MonitoringXLSX renders events as an XLSX workbook with one row per parameter
// measurement. Events without parameters still get a single row.
func MonitoringXLSX(events []models.MonitoringEvent) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for _, e := range events {
		params := e.Parameters
		if len(params) == 0 {
			params = []models.ParameterMeasurement{{}}
		}
		for _, p := range params {
			write(1, e.ID)
			write(2, e.Client)
			write(3, text(e.WaterType))
			write(4, text(e.SamplingType))
			write(5, text(e.SamplingDate))
			write(6, text(e.SamplingPoint))
			write(7, text(e.Coordinates))
			write(8, p.Parameter)
			if p.Value != nil {
				write(9, *p.Value)
			}
			write(10, p.OriginalValue)
			write(11, text(p.Unit))
			write(12, text(p.Method))
			write(13, text(p.Limit))
			write(14, e.SourceDocument)
			if !e.ProcessedAt.IsZero() {
				write(15, e.ProcessedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 32) // client
	_ = f.SetColWidth(sheet, "C", "G", 18)
	_ = f.SetColWidth(sheet, "H", "H", 22) // parameter
	_ = f.SetColWidth(sheet, "I", "M", 14)
	_ = f.SetColWidth(sheet, "N", "O", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
