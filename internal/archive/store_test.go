package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
	"github.com/andescap/factoring-console/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:         filepath.Join(t.TempDir(), "archive.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background(), "../../migrations"))
	return NewStore(db, zap.NewNop())
}

func archivedOp() *entity.Operation {
	return &entity.Operation{
		ID:      "OP-77",
		Cliente: "Textiles del Sur SAC",
		Deudor:  "Ripley Perú",
		Moneda:  "PEN",
		Monto:   decimal.NewFromInt(48000),
		Facturas: []entity.Invoice{
			{Folio: "F001-101", Monto: decimal.NewFromInt(20000), Moneda: "PEN", Estado: status.InvoiceVerificada},
			{Folio: "F001-102", Monto: decimal.NewFromInt(28000), Moneda: "PEN", Estado: status.InvoiceVerificada},
		},
		Gestiones: []entity.Gestion{
			{
				Tipo:      entity.GestionLlamada,
				Contacto:  "María Torres",
				Resultado: entity.OutcomeConforme,
				Analista:  "Karla",
				Fecha:     time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
			},
		},
		Estado:       status.Conforme,
		FechaIngreso: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_ArchiveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	completedAt := time.Date(2026, 8, 25, 16, 30, 0, 0, time.UTC)
	require.NoError(t, store.ArchiveOperation(ctx, archivedOp(), "karla@andescap.pe", completedAt))

	records, err := store.ListArchived(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "OP-77", rec.Operation.ID)
	assert.Equal(t, "karla@andescap.pe", rec.CompletedBy)
	assert.True(t, completedAt.Equal(rec.CompletedAt))
	assert.Equal(t, status.Completada, rec.Operation.Estado)
	assert.True(t, rec.Operation.Monto.Equal(decimal.NewFromInt(48000)))

	require.Len(t, rec.Operation.Facturas, 2)
	assert.Equal(t, "F001-101", rec.Operation.Facturas[0].Folio)
	assert.Equal(t, status.InvoiceVerificada, rec.Operation.Facturas[0].Estado)

	require.Len(t, rec.Operation.Gestiones, 1)
	assert.Equal(t, entity.GestionLlamada, rec.Operation.Gestiones[0].Tipo)
	assert.Equal(t, entity.OutcomeConforme, rec.Operation.Gestiones[0].Resultado)
}

func TestStore_ArchiveTwiceConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	op := archivedOp()
	require.NoError(t, store.ArchiveOperation(ctx, op, "karla@andescap.pe", time.Now()))
	assert.Error(t, store.ArchiveOperation(ctx, op, "karla@andescap.pe", time.Now()))
}

func TestStore_ListArchived_Order(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := archivedOp()
	second := archivedOp()
	second.ID = "OP-78"
	second.Facturas = nil
	second.Gestiones = nil

	require.NoError(t, store.ArchiveOperation(ctx, first, "a@andescap.pe",
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.ArchiveOperation(ctx, second, "b@andescap.pe",
		time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)))

	records, err := store.ListArchived(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "OP-78", records[0].Operation.ID)
	assert.Equal(t, "OP-77", records[1].Operation.ID)
}

func TestStore_Logins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	last, err := store.LastLogin(ctx, "karla@andescap.pe")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordLogin(ctx, "karla@andescap.pe", first))

	later := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordLogin(ctx, "karla@andescap.pe", later))

	last, err = store.LastLogin(ctx, "karla@andescap.pe")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, later.Equal(*last))
}
