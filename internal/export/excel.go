// Package export renders the working set of operations as an Excel
// workbook for the operations team.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

const sheetName = "Operaciones"

var headers = []string{
	"ID", "Cliente", "Deudor", "Moneda", "Monto", "Estado",
	"Facturas", "Verificadas", "Gestiones", "Adelanto Express",
	"Antigüedad (días)", "Analista",
}

// Reporter writes operation reports.
type Reporter struct {
	now    func() time.Time
	logger *zap.Logger
}

func NewReporter(logger *zap.Logger) *Reporter {
	return &Reporter{now: time.Now, logger: logger}
}

// OperationsWorkbook renders the operations into a single-sheet workbook
// and returns the serialized .xlsx bytes.
func (r *Reporter) OperationsWorkbook(ops []entity.Operation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		r.setCell(f, cell, h)
	}

	now := r.now()
	for i, op := range ops {
		row := i + 2
		verified := 0
		for _, inv := range op.Facturas {
			if inv.Estado == status.InvoiceVerificada {
				verified++
			}
		}
		analista := ""
		if op.Analista != nil {
			analista = op.Analista.Nombre
		}
		express := "No"
		if op.AdelantoExpress {
			express = "Sí"
		}

		values := []interface{}{
			op.ID, op.Cliente, op.Deudor, op.Moneda,
			op.Monto.InexactFloat64(), op.Estado.String(),
			len(op.Facturas), verified, len(op.Gestiones), express,
			op.Antiquity(now), analista,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			r.setCell(f, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	r.logger.Info("Operations workbook generated", zap.Int("operations", len(ops)))
	return buf.Bytes(), nil
}

// Filename returns a dated download name for the report.
func (r *Reporter) Filename() string {
	date := r.now().Format("2006-01-02")
	return strings.ToLower(fmt.Sprintf("operaciones_%s.xlsx", date))
}

func (r *Reporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
