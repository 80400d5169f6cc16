package gestiones

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/auth"
	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
	"github.com/andescap/factoring-console/internal/orchestrator"
)

type mockRemote struct {
	fetchFunc         func(ctx context.Context) ([]entity.Operation, error)
	createGestionFunc func(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error)
	updateInvoiceFunc func(ctx context.Context, opID, folio string, st status.InvoiceStatus) error
	adelantoFunc      func(ctx context.Context, opID, justification string) error
	completeFunc      func(ctx context.Context, opID string) error
	assignFunc        func(ctx context.Context, opID, email string) error
	fetchAnalystsFunc func(ctx context.Context) ([]entity.Analyst, error)
}

func (m *mockRemote) FetchGestionOperations(ctx context.Context) ([]entity.Operation, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx)
	}
	return nil, nil
}

func (m *mockRemote) CreateGestion(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
	if m.createGestionFunc != nil {
		return m.createGestionFunc(ctx, opID, g)
	}
	return nil, nil
}

func (m *mockRemote) UpdateInvoiceStatus(ctx context.Context, opID, folio string, st status.InvoiceStatus) error {
	if m.updateInvoiceFunc != nil {
		return m.updateInvoiceFunc(ctx, opID, folio, st)
	}
	return nil
}

func (m *mockRemote) RequestAdelantoExpress(ctx context.Context, opID, justification string) error {
	if m.adelantoFunc != nil {
		return m.adelantoFunc(ctx, opID, justification)
	}
	return nil
}

func (m *mockRemote) CompleteOperation(ctx context.Context, opID string) error {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, opID)
	}
	return nil
}

func (m *mockRemote) AssignAnalyst(ctx context.Context, opID, email string) error {
	if m.assignFunc != nil {
		return m.assignFunc(ctx, opID, email)
	}
	return nil
}

func (m *mockRemote) FetchAnalysts(ctx context.Context) ([]entity.Analyst, error) {
	if m.fetchAnalystsFunc != nil {
		return m.fetchAnalystsFunc(ctx)
	}
	return nil, nil
}

func testOperations() []entity.Operation {
	return []entity.Operation{
		{
			ID:      "OP-1",
			Cliente: "Textiles Lima",
			Deudor:  "Comercial Andina",
			Moneda:  "PEN",
			Estado:  status.EnVerificacion,
			Facturas: []entity.Invoice{
				{Folio: "A", Monto: decimal.NewFromInt(100), Moneda: "PEN", Estado: status.InvoicePendiente},
				{Folio: "B", Monto: decimal.NewFromInt(200), Moneda: "PEN", Estado: status.InvoicePendiente},
			},
		},
		{
			ID:              "OP-2",
			Cliente:         "Agroexport SAC",
			Deudor:          "Mercados Frescos Inc.",
			Moneda:          "USD",
			Estado:          status.EnVerificacion,
			AdelantoExpress: true,
			Facturas: []entity.Invoice{
				{Folio: "X", Monto: decimal.NewFromInt(500), Moneda: "USD", Estado: status.InvoicePendiente},
			},
			Gestiones: []entity.Gestion{
				{Tipo: entity.GestionLlamada, Resultado: entity.OutcomeNoContesta},
			},
		},
	}
}

func newLoadedController(t *testing.T, remote *mockRemote) *Controller {
	t.Helper()
	ops := testOperations()
	base := remote.fetchFunc
	remote.fetchFunc = func(ctx context.Context) ([]entity.Operation, error) {
		if base != nil {
			return base(ctx)
		}
		return ops, nil
	}
	c := NewController(remote, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestController_Load_AuthFailure(t *testing.T) {
	remote := &mockRemote{
		fetchFunc: func(ctx context.Context) ([]entity.Operation, error) {
			return nil, &orchestrator.APIError{StatusCode: 401, Detail: "token expired"}
		},
	}
	c := NewController(remote, zap.NewNop())

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, orchestrator.IsAuthError(err))
	assert.Empty(t, c.View(FilterAll))
	assert.Equal(t, "token expired", c.Err())
}

func TestController_Load_ClearsPreviousError(t *testing.T) {
	fail := true
	remote := &mockRemote{
		fetchFunc: func(ctx context.Context) ([]entity.Operation, error) {
			if fail {
				return nil, errors.New("unreachable")
			}
			return testOperations(), nil
		},
	}
	c := NewController(remote, zap.NewNop())

	require.Error(t, c.Load(context.Background()))
	assert.NotEmpty(t, c.Err())

	fail = false
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Err())
	assert.Len(t, c.View(FilterAll), 2)
}

// Mark A verified: still in verification. Mark B verified: Conforme. Reject
// A: Discrepancia even though B stays verified.
func TestController_InvoiceStatusScenario(t *testing.T) {
	c := newLoadedController(t, &mockRemote{})
	ctx := context.Background()

	c.SetInvoiceStatus(ctx, "OP-1", "A", status.InvoiceVerificada)
	c.Wait()
	assert.Equal(t, status.EnVerificacion, opByID(t, c, "OP-1").Estado)

	c.SetInvoiceStatus(ctx, "OP-1", "B", status.InvoiceVerificada)
	c.Wait()
	assert.Equal(t, status.Conforme, opByID(t, c, "OP-1").Estado)

	c.SetInvoiceStatus(ctx, "OP-1", "A", status.InvoiceRechazada)
	c.Wait()
	assert.Equal(t, status.Discrepancia, opByID(t, c, "OP-1").Estado)
}

func TestController_SetInvoiceStatus_RollsBackOnFailure(t *testing.T) {
	remote := &mockRemote{
		updateInvoiceFunc: func(ctx context.Context, opID, folio string, st status.InvoiceStatus) error {
			return errors.New("sync failed")
		},
	}
	c := newLoadedController(t, remote)

	c.SetInvoiceStatus(context.Background(), "OP-1", "A", status.InvoiceVerificada)
	c.Wait()

	op := opByID(t, c, "OP-1")
	assert.Equal(t, status.InvoicePendiente, op.Facturas[0].Estado)
	assert.Equal(t, status.EnVerificacion, op.Estado)
	assert.NotEmpty(t, c.Err())
}

func TestController_AppendGestion(t *testing.T) {
	var sent entity.Gestion
	remote := &mockRemote{
		createGestionFunc: func(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
			sent = g
			return nil, nil
		},
	}
	c := newLoadedController(t, remote)
	c.SetActiveGestion("OP-1")

	entry := entity.Gestion{
		Tipo:      entity.GestionLlamada,
		Contacto:  "Juan Pérez",
		Resultado: entity.OutcomeConforme,
		Notas:     "confirmó por teléfono",
	}
	c.AppendGestion(context.Background(), "OP-1", entry, auth.Actor{Name: "Karla Gianecchine"})
	c.Wait()

	op1 := opByID(t, c, "OP-1")
	require.Len(t, op1.Gestiones, 1)
	assert.Equal(t, "Karla", op1.Gestiones[0].Analista)
	assert.False(t, op1.Gestiones[0].Fecha.IsZero())

	// Only the target operation's log grows.
	assert.Len(t, opByID(t, c, "OP-2").Gestiones, 1)

	// Editing state closed, success notice shown, finalized entry sent.
	assert.Empty(t, c.ActiveGestion())
	msg, ok := c.Notice()
	assert.True(t, ok)
	assert.Equal(t, "¡Gestión guardada con éxito!", msg)
	assert.Equal(t, "Karla", sent.Analista)
}

func TestController_AppendGestion_RollsBackOnFailure(t *testing.T) {
	remote := &mockRemote{
		createGestionFunc: func(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
			return nil, errors.New("the server is down")
		},
	}
	c := newLoadedController(t, remote)
	before := len(opByID(t, c, "OP-2").Gestiones)

	c.AppendGestion(context.Background(), "OP-2", entity.Gestion{Tipo: entity.GestionWhatsApp}, auth.Actor{Name: "Ana"})
	c.Wait()

	assert.Len(t, opByID(t, c, "OP-2").Gestiones, before)
	assert.NotEmpty(t, c.Err())
}

func TestController_Complete_RemovesOnSuccessOnly(t *testing.T) {
	fail := false
	remote := &mockRemote{
		completeFunc: func(ctx context.Context, opID string) error {
			if fail {
				return errors.New("nope")
			}
			return nil
		},
	}
	c := newLoadedController(t, remote)

	fail = true
	c.Complete(context.Background(), "OP-1")
	c.Wait()
	assert.Len(t, c.View(FilterAll), 2)
	assert.NotEmpty(t, c.Err())

	fail = false
	c.ClearErr()
	c.Complete(context.Background(), "OP-1")
	c.Wait()
	remaining := c.View(FilterAll)
	require.Len(t, remaining, 1)
	assert.Equal(t, "OP-2", remaining[0].ID)
	msg, ok := c.Notice()
	assert.True(t, ok)
	assert.Equal(t, "Operación completada y archivada.", msg)
}

func TestController_Complete_CallsHookWithSnapshot(t *testing.T) {
	remote := &mockRemote{
		completeFunc: func(ctx context.Context, opID string) error { return nil },
	}
	c := newLoadedController(t, remote)

	var archived []entity.Operation
	c.OnComplete(func(ctx context.Context, op entity.Operation) {
		archived = append(archived, op)
	})

	c.Complete(context.Background(), "OP-1")
	c.Wait()

	require.Len(t, archived, 1)
	assert.Equal(t, "OP-1", archived[0].ID)
	assert.Len(t, archived[0].Facturas, 2)
}

func TestController_Complete_NoHookOnFailure(t *testing.T) {
	remote := &mockRemote{
		completeFunc: func(ctx context.Context, opID string) error { return errors.New("nope") },
	}
	c := newLoadedController(t, remote)

	called := false
	c.OnComplete(func(ctx context.Context, op entity.Operation) { called = true })

	c.Complete(context.Background(), "OP-1")
	c.Wait()
	assert.False(t, called)
}

func TestController_EscalateExpress_RefetchesOnSuccess(t *testing.T) {
	fetches := 0
	remote := &mockRemote{}
	remote.fetchFunc = func(ctx context.Context) ([]entity.Operation, error) {
		fetches++
		ops := testOperations()
		if fetches > 1 {
			ops[0].AdelantoExpress = true
		}
		return ops, nil
	}
	c := NewController(remote, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))

	c.EscalateExpress(context.Background(), "OP-1", "gerente confirmó el pago")
	c.Wait()

	assert.Equal(t, 2, fetches)
	assert.True(t, opByID(t, c, "OP-1").AdelantoExpress)
}

func TestController_EscalateExpress_FailureKeepsState(t *testing.T) {
	remote := &mockRemote{
		adelantoFunc: func(ctx context.Context, opID, justification string) error {
			return errors.New("rejected")
		},
	}
	c := newLoadedController(t, remote)

	c.EscalateExpress(context.Background(), "OP-1", "x")
	c.Wait()

	assert.False(t, opByID(t, c, "OP-1").AdelantoExpress)
	assert.Equal(t, "No se pudo mover la operación a Adelanto Express.", c.Err())
}

func TestController_Assign_PatchesFromRoster(t *testing.T) {
	remote := &mockRemote{
		fetchAnalystsFunc: func(ctx context.Context) ([]entity.Analyst, error) {
			return []entity.Analyst{{Nombre: "Ana Ruiz", Email: "ana@andescap.pe"}}, nil
		},
	}
	c := newLoadedController(t, remote)
	require.NoError(t, c.LoadAnalysts(context.Background()))

	c.Assign(context.Background(), "OP-1", "ana@andescap.pe")
	c.Wait()

	op := opByID(t, c, "OP-1")
	require.NotNil(t, op.Analista)
	assert.Equal(t, "Ana Ruiz", op.Analista.Nombre)
}

func TestController_FilterPartition(t *testing.T) {
	c := newLoadedController(t, &mockRemote{})

	inProcess := c.View(FilterInProcess)
	express := c.View(FilterExpress)
	all := c.View(FilterAll)

	// Disjoint partitions whose union is the non-completed subset.
	assert.Len(t, all, len(inProcess)+len(express))
	for _, op := range inProcess {
		assert.False(t, op.AdelantoExpress)
	}
	for _, op := range express {
		assert.True(t, op.AdelantoExpress)
	}
}

func TestController_FilterHidesCompleted(t *testing.T) {
	ops := testOperations()
	ops[0].Estado = status.Completada
	remote := &mockRemote{
		fetchFunc: func(ctx context.Context) ([]entity.Operation, error) { return ops, nil },
	}
	c := NewController(remote, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))

	for _, f := range []Filter{FilterInProcess, FilterExpress, FilterAll} {
		for _, op := range c.View(f) {
			assert.NotEqual(t, "OP-1", op.ID)
		}
	}
}

func TestController_ViewIsACopy(t *testing.T) {
	c := newLoadedController(t, &mockRemote{})

	view := c.View(FilterAll)
	view[0].Facturas[0].Estado = status.InvoiceRechazada
	view[0].Cliente = "tampered"

	op := opByID(t, c, "OP-1")
	assert.Equal(t, status.InvoicePendiente, op.Facturas[0].Estado)
	assert.Equal(t, "Textiles Lima", op.Cliente)
}

func TestController_CloseDiscardsLateCallbacks(t *testing.T) {
	release := make(chan struct{})
	remote := &mockRemote{
		createGestionFunc: func(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
			<-release
			return nil, errors.New("late failure")
		},
	}
	c := newLoadedController(t, remote)

	c.AppendGestion(context.Background(), "OP-1", entity.Gestion{Tipo: entity.GestionLlamada}, auth.Actor{Name: "Ana"})
	c.Close()
	close(release)
	c.Wait()

	// The optimistic append stays, but the discarded state records no error.
	assert.Empty(t, c.Err())
}

func TestController_AppendGestion_PersistsAfterCallerCancels(t *testing.T) {
	remote := &mockRemote{
		createGestionFunc: func(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &g, nil
		},
	}
	c := newLoadedController(t, remote)

	// The HTTP layer responds 202 before persistence runs, at which point the
	// request context is already dead. Token and actor values must survive.
	ctx, cancel := context.WithCancel(auth.WithToken(context.Background(), "tok-123"))
	cancel()

	c.AppendGestion(ctx, "OP-1", entity.Gestion{Tipo: entity.GestionLlamada}, auth.Actor{Name: "Ana"})
	c.Wait()

	assert.Empty(t, c.Err())
	assert.Len(t, opByID(t, c, "OP-1").Gestiones, 1)
}

func TestController_SetInvoiceStatus_PersistsAfterCallerCancels(t *testing.T) {
	remote := &mockRemote{
		updateInvoiceFunc: func(ctx context.Context, opID, folio string, st status.InvoiceStatus) error {
			return ctx.Err()
		},
	}
	c := newLoadedController(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.SetInvoiceStatus(ctx, "OP-1", "A", status.InvoiceVerificada)
	c.Wait()

	assert.Empty(t, c.Err())
	assert.Equal(t, status.InvoiceVerificada, opByID(t, c, "OP-1").Facturas[0].Estado)
}

func TestNotifier_Expires(t *testing.T) {
	n := NewNotifier()
	current := time.Now()
	n.now = func() time.Time { return current }

	n.Show("hecho")
	msg, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "hecho", msg)

	current = current.Add(successTTL + time.Millisecond)
	_, ok = n.Current()
	assert.False(t, ok)
}

func opByID(t *testing.T, c *Controller, id string) entity.Operation {
	t.Helper()
	for _, op := range c.View(FilterAll) {
		if op.ID == id {
			return op
		}
	}
	t.Fatalf("operation %s not in working set", id)
	return entity.Operation{}
}
