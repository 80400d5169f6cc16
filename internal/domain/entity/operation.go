package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andescap/factoring-console/internal/domain/status"
)

// Operation represents a single factoring transaction as served by the
// orchestrator. JSON tags follow the orchestrator's wire format.
type Operation struct {
	ID              string          `json:"id"`
	Cliente         string          `json:"cliente"`
	Deudor          string          `json:"deudor"`
	Moneda          string          `json:"moneda"`
	Monto           decimal.Decimal `json:"monto"`
	Facturas        []Invoice       `json:"facturas"`
	Gestiones       []Gestion       `json:"gestiones"`
	Estado          status.Status   `json:"estado"`
	AdelantoExpress bool            `json:"adelantoExpress"`
	AlertaIA        *AIAlert        `json:"alertaIA,omitempty"`
	CorreosEnviados int             `json:"correosEnviados"`
	FechaIngreso    time.Time       `json:"fechaIngreso"`
	Analista        *Analyst        `json:"analistaAsignado,omitempty"`
}

// AIAlert is an automated annotation attached to an operation by the
// orchestrator's processing pipeline.
type AIAlert struct {
	Tipo  string `json:"tipo"`
	Texto string `json:"texto"`
}

// Analyst is an assignable verification analyst.
type Analyst struct {
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

// TotalAmount sums the operation's invoice amounts.
func (o *Operation) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, f := range o.Facturas {
		total = total.Add(f.Monto)
	}
	return total
}

// Antiquity returns the whole days elapsed since ingestion, at minimum zero.
func (o *Operation) Antiquity(now time.Time) int {
	days := int(now.Sub(o.FechaIngreso).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// InvoiceStatuses returns the statuses of the operation's invoices in order.
func (o *Operation) InvoiceStatuses() []status.InvoiceStatus {
	out := make([]status.InvoiceStatus, len(o.Facturas))
	for i, f := range o.Facturas {
		out[i] = f.Estado
	}
	return out
}

// RecomputeStatus re-derives the aggregate status from the invoice statuses.
// A completed operation is left untouched.
func (o *Operation) RecomputeStatus() {
	if o.Estado.IsTerminal() {
		return
	}
	o.Estado = status.Derive(o.InvoiceStatuses())
}

// Invoice is a single factura within an operation. Folios are unique within
// an operation.
type Invoice struct {
	Folio  string               `json:"folio"`
	Monto  decimal.Decimal      `json:"monto"`
	Moneda string               `json:"moneda"`
	Estado status.InvoiceStatus `json:"estado"`
}
