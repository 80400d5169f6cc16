package http

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/archive"
	"github.com/andescap/factoring-console/internal/auth"
	"github.com/andescap/factoring-console/internal/dashboard"
	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
	"github.com/andescap/factoring-console/internal/export"
	"github.com/andescap/factoring-console/internal/gestiones"
	"github.com/andescap/factoring-console/internal/insight"
	"github.com/andescap/factoring-console/internal/orchestrator"
	"github.com/andescap/factoring-console/internal/submission"
)

// Adviser produces a next-move recommendation for an operation.
type Adviser interface {
	Advise(ctx context.Context, op *entity.Operation) (*insight.Advice, error)
}

// ArchiveStore is the slice of the archive the handlers use.
type ArchiveStore interface {
	ListArchived(ctx context.Context, limit int) ([]archive.Record, error)
	RecordLogin(ctx context.Context, email string, at time.Time) error
	LastLogin(ctx context.Context, email string) (*time.Time, error)
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	controller *gestiones.Controller
	dashboard  *dashboard.Service
	submitter  *submission.Service
	adviser    Adviser
	reporter   *export.Reporter
	archive    ArchiveStore
	logger     *zap.Logger
	now        func() time.Time
}

func NewHandlers(
	controller *gestiones.Controller,
	dashboardSvc *dashboard.Service,
	submitter *submission.Service,
	adviser Adviser,
	reporter *export.Reporter,
	archiveStore ArchiveStore,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		controller: controller,
		dashboard:  dashboardSvc,
		submitter:  submitter,
		adviser:    adviser,
		reporter:   reporter,
		archive:    archiveStore,
		logger:     logger,
		now:        time.Now,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// workingSet carries the filtered view plus the controller's session state.
type workingSet struct {
	Operaciones   []entity.Operation `json:"operaciones"`
	Filtro        gestiones.Filter   `json:"filtro"`
	GestionActiva string             `json:"gestionActiva,omitempty"`
	Error         string             `json:"error,omitempty"`
	Aviso         string             `json:"aviso,omitempty"`
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ListOperations handles GET /api/operaciones. It refreshes the working set
// from the orchestrator and returns the requested filter's view.
func (h *Handlers) ListOperations(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.controller.Load(ctx); err != nil {
		h.failUpstream(c, err, "failed to load operations")
		return
	}

	filter := gestiones.Filter(c.Query("filtro"))
	if filter == "" {
		filter = h.controller.ActiveFilter()
	} else {
		h.controller.SetFilter(filter)
	}

	ws := workingSet{
		Operaciones:   h.controller.Filtered(),
		Filtro:        filter,
		GestionActiva: h.controller.ActiveGestion(),
		Error:         h.controller.Err(),
	}
	if msg, ok := h.controller.Notice(); ok {
		ws.Aviso = msg
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ws})
}

type gestionRequest struct {
	Tipo      string `json:"tipo" binding:"required"`
	Contacto  string `json:"contacto"`
	Cargo     string `json:"cargo"`
	Telefono  string `json:"telefono"`
	Resultado string `json:"resultado"`
	Notas     string `json:"notas"`
}

// CreateGestion handles POST /api/operaciones/:id/gestiones. The mutation is
// applied optimistically; persistence happens in the background.
func (h *Handlers) CreateGestion(c *gin.Context) {
	var req gestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid gestion payload"})
		return
	}
	actor, _ := auth.ActorFrom(c.Request.Context())

	h.controller.AppendGestion(c.Request.Context(), c.Param("id"), entity.Gestion{
		Tipo:      entity.GestionType(req.Tipo),
		Contacto:  req.Contacto,
		Cargo:     req.Cargo,
		Telefono:  req.Telefono,
		Resultado: entity.GestionOutcome(req.Resultado),
		Notas:     req.Notas,
	}, actor)

	c.JSON(http.StatusAccepted, Response{Success: true})
}

// OpenGestionForm handles POST /api/operaciones/:id/gestiones/abrir: marks
// the operation whose management-log form is open. Saving an entry closes it.
func (h *Handlers) OpenGestionForm(c *gin.Context) {
	opID := c.Param("id")
	found := false
	for _, op := range h.controller.View(gestiones.FilterAll) {
		if op.ID == opID {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "operation not found"})
		return
	}

	h.controller.SetActiveGestion(opID)
	c.JSON(http.StatusOK, Response{Success: true})
}

// UpdateInvoiceStatus handles PATCH /api/operaciones/:id/facturas/:folio.
func (h *Handlers) UpdateInvoiceStatus(c *gin.Context) {
	var req struct {
		Estado string `json:"estado" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid status payload"})
		return
	}
	st := status.InvoiceStatus(req.Estado)
	if !st.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown invoice status"})
		return
	}

	h.controller.SetInvoiceStatus(c.Request.Context(), c.Param("id"), c.Param("folio"), st)
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// EscalateExpress handles POST /api/operaciones/:id/adelanto-express.
func (h *Handlers) EscalateExpress(c *gin.Context) {
	var req struct {
		Justificacion string `json:"justificacion" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "justification is required"})
		return
	}

	h.controller.EscalateExpress(c.Request.Context(), c.Param("id"), req.Justificacion)
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// CompleteOperation handles PATCH /api/operaciones/:id/completar.
func (h *Handlers) CompleteOperation(c *gin.Context) {
	h.controller.Complete(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// AssignAnalyst handles PATCH /api/operaciones/:id/asignar.
func (h *Handlers) AssignAnalyst(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "analyst email is required"})
		return
	}

	h.controller.Assign(c.Request.Context(), c.Param("id"), req.Email)
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// SuggestNextMove handles GET /api/operaciones/:id/sugerencia.
func (h *Handlers) SuggestNextMove(c *gin.Context) {
	opID := c.Param("id")
	var op *entity.Operation
	for _, candidate := range h.controller.View(gestiones.FilterAll) {
		if candidate.ID == opID {
			op = &candidate
			break
		}
	}
	if op == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "operation not found"})
		return
	}

	advice, err := h.adviser.Advise(c.Request.Context(), op)
	if err != nil {
		h.logger.Error("Advice generation failed", zap.String("operation_id", opID), zap.Error(err))
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: "failed to generate advice"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: advice})
}

// ListAnalysts handles GET /api/analistas.
func (h *Handlers) ListAnalysts(c *gin.Context) {
	if err := h.controller.LoadAnalysts(c.Request.Context()); err != nil {
		h.failUpstream(c, err, "failed to load analysts")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.controller.Analysts()})
}

// dashboardView is the dashboard payload.
type dashboardView struct {
	Operaciones  []entity.Operation `json:"operaciones"`
	UltimoAcceso *time.Time         `json:"ultimoAcceso,omitempty"`
	KPI          dashboard.KPI      `json:"kpi"`
}

// Dashboard handles GET /api/dashboard. Each visit records a login; the
// reported last access is the previous one.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := auth.ActorFrom(ctx)

	snapshot, err := h.dashboard.Load(ctx)
	if err != nil {
		h.failUpstream(c, err, "failed to load dashboard")
		return
	}

	lastLogin := snapshot.LastLogin
	if lastLogin == nil {
		if prev, err := h.archive.LastLogin(ctx, actor.Email); err == nil {
			lastLogin = prev
		}
	}
	if err := h.archive.RecordLogin(ctx, actor.Email, h.now()); err != nil {
		h.logger.Warn("Failed to record login", zap.String("email", actor.Email), zap.Error(err))
	}

	ops := dashboard.FilterByStatus(snapshot.Operations, dashboard.StatusFilter(c.Query("estado")))
	c.JSON(http.StatusOK, Response{Success: true, Data: dashboardView{
		Operaciones:  ops,
		UltimoAcceso: lastLogin,
		KPI:          snapshot.KPI,
	}})
}

// archivedView is one archived operation in API responses.
type archivedView struct {
	Operacion     entity.Operation `json:"operacion"`
	CompletadaEl  time.Time        `json:"completadaEl"`
	CompletadaPor string           `json:"completadaPor"`
}

// ListArchived handles GET /api/archivo.
func (h *Handlers) ListArchived(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limite", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	records, err := h.archive.ListArchived(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list archive", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list archive"})
		return
	}

	views := make([]archivedView, len(records))
	for i, rec := range records {
		views[i] = archivedView{
			Operacion:     rec.Operation,
			CompletadaEl:  rec.CompletedAt,
			CompletadaPor: rec.CompletedBy,
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: views})
}

// ExportOperations handles GET /api/reporte: the working set as .xlsx.
func (h *Handlers) ExportOperations(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.controller.Load(ctx); err != nil {
		h.failUpstream(c, err, "failed to load operations")
		return
	}

	raw, err := h.reporter.OperationsWorkbook(h.controller.View(gestiones.FilterAll))
	if err != nil {
		h.logger.Error("Report generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to generate report"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+h.reporter.Filename()+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", raw)
}

// ClearError handles DELETE /api/error: dismisses the session error banner.
func (h *Handlers) ClearError(c *gin.Context) {
	h.controller.ClearErr()
	c.JSON(http.StatusOK, Response{Success: true})
}

// ClearNotice handles DELETE /api/aviso: dismisses the success notification
// before it expires on its own.
func (h *Handlers) ClearNotice(c *gin.Context) {
	h.controller.ClearNotice()
	c.JSON(http.StatusOK, Response{Success: true})
}

// SubmitOperation handles POST /api/operaciones (multipart).
func (h *Handlers) SubmitOperation(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid multipart form"})
		return
	}
	actor, _ := auth.ActorFrom(c.Request.Context())

	req, err := h.buildSubmission(actor, form)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	result, err := h.submitter.Submit(c.Request.Context(), req)
	if err != nil {
		var apiErr *orchestrator.APIError
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.StatusCode, Response{Success: false, Error: apiErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// buildSubmission assembles a submission request from form fields. Numeric
// fields are parsed here; domain rules stay in the submission package.
func (h *Handlers) buildSubmission(actor auth.Actor, form *multipart.Form) (*submission.Request, error) {
	field := func(name string) string {
		if vs := form.Value[name]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	tasa, err := decimal.NewFromString(field("tasaOperacion"))
	if err != nil {
		return nil, errors.New("tasa de operación inválida")
	}
	comision, err := decimal.NewFromString(field("comision"))
	if err != nil {
		return nil, errors.New("comisión inválida")
	}

	req := &submission.Request{
		UserEmail:     actor.Email,
		TasaOperacion: tasa,
		Comision:      comision,
	}
	if emails := field("mailVerificacion"); emails != "" {
		req.VerificationEmails = strings.Split(emails, ";")
	}

	if field("solicitaAdelanto") == "true" {
		pct, err := decimal.NewFromString(field("porcentajeAdelanto"))
		if err != nil {
			return nil, errors.New("porcentaje de adelanto inválido")
		}
		req.Adelanto = submission.AdvanceRequest{Solicita: true, Porcentaje: pct}
	}

	if banco := field("banco"); banco != "" || field("numeroCuenta") != "" {
		req.Cuenta = &submission.DisbursementAccount{
			Banco:  banco,
			Tipo:   field("tipoCuenta"),
			Numero: field("numeroCuenta"),
			Moneda: field("monedaCuenta"),
		}
	}

	for _, group := range []struct {
		name  string
		files *[]submission.File
	}{
		{"xml_files", &req.XMLFiles},
		{"pdf_files", &req.PDFFiles},
		{"respaldo_files", &req.RespaldoFiles},
	} {
		for _, fh := range form.File[group.name] {
			data, err := readUpload(fh)
			if err != nil {
				return nil, err
			}
			*group.files = append(*group.files, submission.File{Name: fh.Filename, Data: data})
		}
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("no se pudo leer " + fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("no se pudo leer " + fh.Filename)
	}
	return data, nil
}

// failUpstream maps orchestrator failures: expired sessions surface as 401
// so the frontend can re-authenticate, everything else as 502.
func (h *Handlers) failUpstream(c *gin.Context, err error, msg string) {
	h.logger.Error(msg, zap.Error(err))
	code := http.StatusBadGateway
	if orchestrator.IsAuthError(err) || errors.Is(err, auth.ErrNoToken) {
		code = http.StatusUnauthorized
	}
	c.JSON(code, Response{Success: false, Error: msg})
}
