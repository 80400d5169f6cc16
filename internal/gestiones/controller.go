// Package gestiones implements the operation sync controller: an in-memory
// working set of operations kept consistent with the orchestrator through
// optimistic local mutation, asynchronous persistence and precise rollback on
// failure.
package gestiones

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/auth"
	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

// Remote is the orchestrator surface the controller depends on.
type Remote interface {
	FetchGestionOperations(ctx context.Context) ([]entity.Operation, error)
	CreateGestion(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error)
	UpdateInvoiceStatus(ctx context.Context, opID, folio string, st status.InvoiceStatus) error
	RequestAdelantoExpress(ctx context.Context, opID, justification string) error
	CompleteOperation(ctx context.Context, opID string) error
	AssignAnalyst(ctx context.Context, opID, analystEmail string) error
	FetchAnalysts(ctx context.Context) ([]entity.Analyst, error)
}

// Controller owns the local cache of operations for one console session.
//
// Mutating methods apply the optimistic change synchronously and persist it
// in a background goroutine; the cache is guarded by a mutex, so concurrent
// mutations resolve last-write-wins locally while the orchestrator remains
// the authority for persisted state. After Close, outstanding persistence
// callbacks become no-ops against the discarded state.
type Controller struct {
	remote   Remote
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time

	onComplete func(ctx context.Context, op entity.Operation)

	mu            sync.Mutex
	ops           []entity.Operation
	analysts      []entity.Analyst
	errMsg        string
	activeFilter  Filter
	activeGestion string
	closed        bool

	inflight sync.WaitGroup
}

// NewController creates a controller with an empty working set.
func NewController(remote Remote, logger *zap.Logger) *Controller {
	return &Controller{
		remote:       remote,
		notifier:     NewNotifier(),
		logger:       logger,
		now:          time.Now,
		activeFilter: FilterInProcess,
	}
}

// Load fetches the full working set. On failure the cache is emptied and the
// error is retained for display; the error is also returned so callers can
// distinguish auth failures.
func (c *Controller) Load(ctx context.Context) error {
	ops, err := c.remote.FetchGestionOperations(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err != nil {
		c.logger.Error("Failed to load operations", zap.Error(err))
		c.ops = nil
		c.errMsg = err.Error()
		return err
	}
	c.ops = ops
	c.errMsg = ""
	c.logger.Info("Working set loaded", zap.Int("operations", len(ops)))
	return nil
}

// LoadAnalysts fetches the roster of assignable analysts.
func (c *Controller) LoadAnalysts(ctx context.Context) error {
	analysts, err := c.remote.FetchAnalysts(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err != nil {
		c.logger.Error("Failed to load analysts", zap.Error(err))
		c.errMsg = "No se pudo cargar la lista de analistas."
		return err
	}
	c.analysts = analysts
	return nil
}

// AppendGestion finalizes the entry (timestamp now, analyst from the actor),
// appends it optimistically, closes the open editing state and persists it in
// the background. A failed submission drops the appended entry again and sets
// a persistent error; no retry is attempted.
func (c *Controller) AppendGestion(ctx context.Context, opID string, entry entity.Gestion, actor auth.Actor) {
	entry.Fecha = c.now()
	entry.Analista = actor.FirstName()

	c.mu.Lock()
	op := c.findOp(opID)
	if op == nil {
		c.mu.Unlock()
		c.logger.Warn("Gestion for unknown operation", zap.String("operation_id", opID))
		return
	}
	op.Gestiones = append(op.Gestiones, entry)
	c.activeGestion = ""
	c.mu.Unlock()

	c.notifier.Show("¡Gestión guardada con éxito!")

	c.spawn(ctx, func(ctx context.Context) {
		_, err := c.remote.CreateGestion(ctx, opID, entry)
		if err == nil {
			return
		}
		c.logger.Error("Failed to sync gestion",
			zap.String("operation_id", opID), zap.Error(err))

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		// Exact rollback: drop the last appended entry for this operation.
		if op := c.findOp(opID); op != nil && len(op.Gestiones) > 0 {
			op.Gestiones = op.Gestiones[:len(op.Gestiones)-1]
		}
		c.errMsg = "Falló al guardar la gestión. Por favor, recargue la página."
	})
}

// SetInvoiceStatus updates the invoice optimistically, recomputes the
// operation's aggregate status and persists the change in the background.
// On failure the invoice reverts to its previous status and the aggregate is
// recomputed again.
func (c *Controller) SetInvoiceStatus(ctx context.Context, opID, folio string, st status.InvoiceStatus) {
	if !st.IsValid() {
		c.logger.Warn("Rejected invalid invoice status", zap.String("status", string(st)))
		return
	}

	c.mu.Lock()
	op := c.findOp(opID)
	if op == nil {
		c.mu.Unlock()
		return
	}
	var prev status.InvoiceStatus
	found := false
	for i := range op.Facturas {
		if op.Facturas[i].Folio == folio {
			prev = op.Facturas[i].Estado
			op.Facturas[i].Estado = st
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		c.logger.Warn("Unknown folio", zap.String("operation_id", opID), zap.String("folio", folio))
		return
	}
	op.RecomputeStatus()
	c.mu.Unlock()

	c.spawn(ctx, func(ctx context.Context) {
		err := c.remote.UpdateInvoiceStatus(ctx, opID, folio, st)
		if err == nil {
			return
		}
		c.logger.Error("Failed to sync invoice status",
			zap.String("operation_id", opID), zap.String("folio", folio), zap.Error(err))

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if op := c.findOp(opID); op != nil {
			for i := range op.Facturas {
				if op.Facturas[i].Folio == folio {
					op.Facturas[i].Estado = prev
					break
				}
			}
			op.RecomputeStatus()
		}
		c.errMsg = "Falló la actualización de la factura. Por favor, recargue la página."
	})
}

// OnComplete registers a callback invoked once the orchestrator confirms a
// completion, with a snapshot of the operation as it left the working set.
// Must be set before the controller is shared.
func (c *Controller) OnComplete(fn func(ctx context.Context, op entity.Operation)) {
	c.onComplete = fn
}

// Complete requests remote completion and removes the operation from the
// working set once the orchestrator confirms. Completion is final; a failed
// request leaves the operation in place.
func (c *Controller) Complete(ctx context.Context, opID string) {
	c.mu.Lock()
	var snapshot *entity.Operation
	if op := c.findOp(opID); op != nil {
		cloned := cloneOperations([]entity.Operation{*op})
		snapshot = &cloned[0]
	}
	c.mu.Unlock()

	c.spawn(ctx, func(ctx context.Context) {
		if err := c.remote.CompleteOperation(ctx, opID); err != nil {
			c.logger.Error("Failed to complete operation",
				zap.String("operation_id", opID), zap.Error(err))
			c.setErr("No se pudo completar la operación.")
			return
		}

		c.mu.Lock()
		closed := c.closed
		if !closed {
			c.removeOp(opID)
		}
		c.mu.Unlock()
		c.notifier.Show("Operación completada y archivada.")

		if !closed && c.onComplete != nil && snapshot != nil {
			c.onComplete(ctx, *snapshot)
		}
	})
}

// EscalateExpress asks the orchestrator to flag the operation for the
// expedited-advance track and refetches the whole working set on success.
func (c *Controller) EscalateExpress(ctx context.Context, opID, justification string) {
	c.spawn(ctx, func(ctx context.Context) {
		if err := c.remote.RequestAdelantoExpress(ctx, opID, justification); err != nil {
			c.logger.Error("Failed to escalate operation",
				zap.String("operation_id", opID), zap.Error(err))
			c.setErr("No se pudo mover la operación a Adelanto Express.")
			return
		}
		// Full reload rather than a local patch: escalation may reshuffle
		// priorities server-side.
		_ = c.Load(ctx)
	})
}

// Assign asks the orchestrator to assign the operation, then patches the
// local record from the previously loaded roster.
func (c *Controller) Assign(ctx context.Context, opID, analystEmail string) {
	c.spawn(ctx, func(ctx context.Context) {
		if err := c.remote.AssignAnalyst(ctx, opID, analystEmail); err != nil {
			c.logger.Error("Failed to assign operation",
				zap.String("operation_id", opID), zap.Error(err))
			c.setErr("No se pudo asignar la operación.")
			return
		}

		c.mu.Lock()
		if !c.closed {
			if op := c.findOp(opID); op != nil {
				for i := range c.analysts {
					if c.analysts[i].Email == analystEmail {
						a := c.analysts[i]
						op.Analista = &a
						break
					}
				}
			}
		}
		c.mu.Unlock()
		c.notifier.Show("Operación asignada correctamente.")
	})
}

// Filtered returns a copy of the active filter's view over the cache.
func (c *Controller) Filtered() []entity.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneOperations(applyFilter(c.ops, c.activeFilter))
}

// View returns a copy of the given filter's view without changing the active
// filter.
func (c *Controller) View(filter Filter) []entity.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneOperations(applyFilter(c.ops, filter))
}

// SetFilter changes the active filter.
func (c *Controller) SetFilter(filter Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeFilter = filter
}

// ActiveFilter returns the active filter.
func (c *Controller) ActiveFilter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeFilter
}

// Analysts returns the loaded roster.
func (c *Controller) Analysts() []entity.Analyst {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.Analyst, len(c.analysts))
	copy(out, c.analysts)
	return out
}

// SetActiveGestion records which operation has its editing form open.
func (c *Controller) SetActiveGestion(opID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeGestion = opID
}

// ActiveGestion returns the operation with the editing form open, if any.
func (c *Controller) ActiveGestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeGestion
}

// Err returns the persistent error message, empty when healthy. It stays set
// until ClearErr or a successful Load.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// ClearErr dismisses the persistent error.
func (c *Controller) ClearErr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// Notice returns the transient success notification, if one is active.
func (c *Controller) Notice() (string, bool) {
	return c.notifier.Current()
}

// ClearNotice dismisses the success notification before its TTL expires.
func (c *Controller) ClearNotice() {
	c.notifier.Clear()
}

// Close marks the controller torn down. In-flight persistence callbacks
// resolving afterwards leave the discarded state alone.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Wait blocks until all background persistence calls have resolved.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// spawn runs fn in the background on a context detached from the caller's
// cancellation. The triggering request context dies as soon as its handler
// returns; persistence must outlive it, so only the context values (session
// token, actor) are carried over.
func (c *Controller) spawn(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		fn(ctx)
	}()
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.errMsg = msg
}

// findOp returns a pointer into the cache. Callers must hold the mutex.
func (c *Controller) findOp(opID string) *entity.Operation {
	for i := range c.ops {
		if c.ops[i].ID == opID {
			return &c.ops[i]
		}
	}
	return nil
}

// removeOp drops the operation with the given id. Callers must hold the
// mutex.
func (c *Controller) removeOp(opID string) {
	for i := range c.ops {
		if c.ops[i].ID == opID {
			c.ops = append(c.ops[:i], c.ops[i+1:]...)
			return
		}
	}
}

// cloneOperations deep-copies the slice-valued fields so view snapshots
// cannot alias cache internals.
func cloneOperations(ops []entity.Operation) []entity.Operation {
	out := make([]entity.Operation, len(ops))
	for i := range ops {
		out[i] = ops[i]
		out[i].Facturas = append([]entity.Invoice(nil), ops[i].Facturas...)
		out[i].Gestiones = append([]entity.Gestion(nil), ops[i].Gestiones...)
		if ops[i].Analista != nil {
			a := *ops[i].Analista
			out[i].Analista = &a
		}
	}
	return out
}
