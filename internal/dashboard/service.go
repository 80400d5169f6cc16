// Package dashboard serves the operations panel: the actor's submitted
// operations, their lifecycle status, and placement KPIs.
package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
	"github.com/andescap/factoring-console/internal/orchestrator"
)

// Remote is the orchestrator surface the dashboard depends on.
type Remote interface {
	FetchDashboard(ctx context.Context) (*orchestrator.DashboardData, error)
}

// Config holds dashboard tuning loaded from configuration.
type Config struct {
	// PlacementGoal is the monthly placement target in PEN.
	PlacementGoal decimal.Decimal
	// USDRate converts USD operation amounts into PEN for the KPI.
	USDRate decimal.Decimal
}

// Service loads and summarizes the actor's operations.
type Service struct {
	remote Remote
	cfg    Config
	logger *zap.Logger
}

// NewService creates a dashboard service.
func NewService(remote Remote, cfg Config, logger *zap.Logger) *Service {
	return &Service{remote: remote, cfg: cfg, logger: logger}
}

// Snapshot is one dashboard load.
type Snapshot struct {
	Operations []entity.Operation
	LastLogin  *time.Time
	KPI        KPI
}

// KPI summarizes monthly placement against the configured goal.
type KPI struct {
	MonthlyPlacement decimal.Decimal `json:"colocacionMensual"`
	PlacementGoal    decimal.Decimal `json:"metaColocacion"`
}

// Load fetches the actor's operations and computes the KPIs.
func (s *Service) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.remote.FetchDashboard(ctx)
	if err != nil {
		s.logger.Error("Failed to load dashboard", zap.Error(err))
		return nil, err
	}
	return &Snapshot{
		Operations: data.Operations,
		LastLogin:  data.LastLogin,
		KPI: KPI{
			MonthlyPlacement: s.monthlyPlacement(data.Operations),
			PlacementGoal:    s.cfg.PlacementGoal,
		},
	}, nil
}

// monthlyPlacement sums the amounts of verified operations, converting USD
// amounts into PEN at the configured rate.
func (s *Service) monthlyPlacement(ops []entity.Operation) decimal.Decimal {
	total := decimal.Zero
	for i := range ops {
		if ops[i].Estado != status.Conforme {
			continue
		}
		amount := ops[i].Monto
		if ops[i].Moneda == "USD" {
			amount = amount.Mul(s.cfg.USDRate)
		}
		total = total.Add(amount)
	}
	return total
}

// StatusFilter is a dashboard status filter label. The dashboard speaks the
// submitter's vocabulary: "Verificada" is the verified (Conforme) state and
// "Rechazada" the discrepancy state.
type StatusFilter string

const (
	FilterTodas          StatusFilter = "Todas"
	FilterEnVerificacion StatusFilter = "En Verificación"
	FilterVerificada     StatusFilter = "Verificada"
	FilterRechazada      StatusFilter = "Rechazada"
)

var filterStatus = map[StatusFilter]status.Status{
	FilterEnVerificacion: status.EnVerificacion,
	FilterVerificada:     status.Conforme,
	FilterRechazada:      status.Discrepancia,
}

// FilterByStatus derives the filtered view. Unknown labels behave as Todas.
func FilterByStatus(ops []entity.Operation, filter StatusFilter) []entity.Operation {
	want, ok := filterStatus[filter]
	if !ok {
		return ops
	}
	out := make([]entity.Operation, 0, len(ops))
	for i := range ops {
		if ops[i].Estado == want {
			out = append(out, ops[i])
		}
	}
	return out
}
