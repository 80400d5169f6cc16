// Package archive keeps a local sqlite journal of completed operations
// so the console retains a record after the orchestrator drops them from
// the working set.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
	"github.com/andescap/factoring-console/pkg/database"
)

// Record is an archived operation as read back from the store.
type Record struct {
	Operation   entity.Operation
	CompletedAt time.Time
	CompletedBy string
}

// Store persists completed operations and login activity.
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

func NewStore(db *database.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ArchiveOperation writes the operation, its invoices and its gestion
// trail in one transaction. Archiving the same operation twice is a
// conflict, not an upsert.
func (s *Store) ArchiveOperation(ctx context.Context, op *entity.Operation, completedBy string, completedAt time.Time) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO archived_operations (
				id, cliente, deudor, moneda, monto, adelanto_express,
				fecha_ingreso, completed_at, completed_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			op.ID, op.Cliente, op.Deudor, op.Moneda, op.Monto.String(),
			op.AdelantoExpress, op.FechaIngreso, completedAt, completedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to archive operation %s: %w", op.ID, err)
		}

		for _, inv := range op.Facturas {
			_, err := tx.Exec(`
				INSERT INTO archived_invoices (operation_id, folio, monto, moneda, estado)
				VALUES (?, ?, ?, ?, ?)`,
				op.ID, inv.Folio, inv.Monto.String(), inv.Moneda, string(inv.Estado),
			)
			if err != nil {
				return fmt.Errorf("failed to archive invoice %s: %w", inv.Folio, err)
			}
		}

		for _, g := range op.Gestiones {
			_, err := tx.Exec(`
				INSERT INTO archived_gestiones (
					operation_id, tipo, contacto, cargo, telefono, resultado, notas, analista, fecha
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				op.ID, string(g.Tipo), g.Contacto, g.Cargo, g.Telefono,
				string(g.Resultado), g.Notas, g.Analista, g.Fecha,
			)
			if err != nil {
				return fmt.Errorf("failed to archive gestion for %s: %w", op.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to archive operation",
			zap.String("operation_id", op.ID),
			zap.Error(err))
		return err
	}

	s.logger.Info("Operation archived",
		zap.String("operation_id", op.ID),
		zap.String("completed_by", completedBy))
	return nil
}

// ListArchived returns the most recently completed operations, newest
// first, with invoices and gestiones attached.
func (s *Store) ListArchived(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cliente, deudor, moneda, monto, adelanto_express,
			fecha_ingreso, completed_at, completed_by
		FROM archived_operations
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived operations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var monto string
		var express int
		if err := rows.Scan(
			&rec.Operation.ID, &rec.Operation.Cliente, &rec.Operation.Deudor,
			&rec.Operation.Moneda, &monto, &express,
			&rec.Operation.FechaIngreso, &rec.CompletedAt, &rec.CompletedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archived operation: %w", err)
		}
		rec.Operation.Monto, err = decimal.NewFromString(monto)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for %s: %w", rec.Operation.ID, err)
		}
		rec.Operation.AdelantoExpress = express != 0
		rec.Operation.Estado = status.Completada
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if err := s.loadInvoices(ctx, &records[i].Operation); err != nil {
			return nil, err
		}
		if err := s.loadGestiones(ctx, &records[i].Operation); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) loadInvoices(ctx context.Context, op *entity.Operation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT folio, monto, moneda, estado
		FROM archived_invoices WHERE operation_id = ? ORDER BY folio`, op.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoices for %s: %w", op.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv entity.Invoice
		var monto, estado string
		if err := rows.Scan(&inv.Folio, &monto, &inv.Moneda, &estado); err != nil {
			return fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Monto, err = decimal.NewFromString(monto)
		if err != nil {
			return fmt.Errorf("corrupt amount for invoice %s: %w", inv.Folio, err)
		}
		inv.Estado = status.InvoiceStatus(estado)
		op.Facturas = append(op.Facturas, inv)
	}
	return rows.Err()
}

func (s *Store) loadGestiones(ctx context.Context, op *entity.Operation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tipo, contacto, cargo, telefono, resultado, notas, analista, fecha
		FROM archived_gestiones WHERE operation_id = ? ORDER BY id`, op.ID)
	if err != nil {
		return fmt.Errorf("failed to load gestiones for %s: %w", op.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var g entity.Gestion
		var tipo, resultado string
		if err := rows.Scan(&tipo, &g.Contacto, &g.Cargo, &g.Telefono,
			&resultado, &g.Notas, &g.Analista, &g.Fecha); err != nil {
			return fmt.Errorf("failed to scan gestion: %w", err)
		}
		g.Tipo = entity.GestionType(tipo)
		g.Resultado = entity.GestionOutcome(resultado)
		op.Gestiones = append(op.Gestiones, g)
	}
	return rows.Err()
}

// RecordLogin upserts the user's latest login time.
func (s *Store) RecordLogin(ctx context.Context, email string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_logins (email, last_seen) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET last_seen = excluded.last_seen`,
		email, at)
	if err != nil {
		return fmt.Errorf("failed to record login for %s: %w", email, err)
	}
	return nil
}

// LastLogin returns the user's previous login time, or nil when unseen.
func (s *Store) LastLogin(ctx context.Context, email string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT last_seen FROM user_logins WHERE email = ?", email).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last login for %s: %w", email, err)
	}
	return &at, nil
}
