package orchestrator

import (
	"fmt"
	"time"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

// DashboardData is the payload of GET /api/operaciones.
type DashboardData struct {
	Operations []entity.Operation `json:"operations"`
	LastLogin  *time.Time         `json:"last_login"`
}

// SubmitResult is the payload returned by the submit-operation endpoint.
type SubmitResult struct {
	Message    string            `json:"message"`
	Operations []SubmitOperation `json:"operations"`
}

// SubmitOperation describes one operation created from a submission.
type SubmitOperation struct {
	OperationID  string `json:"operation_id"`
	Currency     string `json:"currency"`
	InvoiceCount int    `json:"invoice_count"`
	DriveURL     string `json:"drive_url"`
}

// errorBody is the orchestrator's error envelope for non-2xx responses.
type errorBody struct {
	Detail string `json:"detail"`
}

// validateOperations checks the invariants the local cache relies on before
// any payload is allowed in: globally unique operation ids, per-operation
// unique folios, and recognized status values.
func validateOperations(ops []entity.Operation) error {
	seen := make(map[string]bool, len(ops))
	for i := range ops {
		op := &ops[i]
		if op.ID == "" {
			return fmt.Errorf("operation %d: missing id", i)
		}
		if seen[op.ID] {
			return fmt.Errorf("duplicate operation id %q", op.ID)
		}
		seen[op.ID] = true

		if !op.Estado.IsValid() {
			return fmt.Errorf("operation %s: unknown status %q", op.ID, op.Estado)
		}

		folios := make(map[string]bool, len(op.Facturas))
		for _, f := range op.Facturas {
			if f.Folio == "" {
				return fmt.Errorf("operation %s: invoice with empty folio", op.ID)
			}
			if folios[f.Folio] {
				return fmt.Errorf("operation %s: duplicate folio %q", op.ID, f.Folio)
			}
			folios[f.Folio] = true
			if !f.Estado.IsValid() {
				return fmt.Errorf("operation %s: invoice %s has unknown status %q", op.ID, f.Folio, f.Estado)
			}
		}
	}
	return nil
}

// validateSubmitResult checks the created-operation listing.
func validateSubmitResult(res *SubmitResult) error {
	for i, op := range res.Operations {
		if op.OperationID == "" {
			return fmt.Errorf("submit result entry %d: missing operation_id", i)
		}
		if op.InvoiceCount <= 0 {
			return fmt.Errorf("submit result %s: non-positive invoice count", op.OperationID)
		}
	}
	return nil
}

// normalizeStatuses fills in a derivable status when the orchestrator sent an
// operation without one. New operations default to En Verificación.
func normalizeStatuses(ops []entity.Operation) {
	for i := range ops {
		if ops[i].Estado == "" {
			ops[i].Estado = status.Derive(ops[i].InvoiceStatuses())
		}
	}
}
