// Package orchestrator is the typed REST client for the upstream
// orchestrator service, which owns persistent state and business processing.
// Every call carries a bearer token obtained from the active session; every
// response is validated before it may reach the local cache.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

// TokenSource supplies a fresh bearer token per call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds orchestrator client configuration.
type Config struct {
	// BaseURL is the root of the REST API, e.g. http://orchestrator:8000/api.
	BaseURL string
	// SubmitURL is the root of the multipart submission service. Falls back
	// to BaseURL when empty.
	SubmitURL string
	Timeout   time.Duration
}

// Client talks to the orchestrator REST API.
type Client struct {
	baseURL    string
	submitURL  string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// NewClient creates a new orchestrator client.
func NewClient(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	submitURL := cfg.SubmitURL
	if submitURL == "" {
		submitURL = cfg.BaseURL
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		submitURL:  submitURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// FetchGestionOperations returns the verification working set for the
// authenticated actor.
func (c *Client) FetchGestionOperations(ctx context.Context) ([]entity.Operation, error) {
	var ops []entity.Operation
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/gestiones/operaciones", nil, &ops); err != nil {
		return nil, err
	}
	normalizeStatuses(ops)
	if err := validateOperations(ops); err != nil {
		return nil, fmt.Errorf("invalid operations payload: %w", err)
	}
	return ops, nil
}

// FetchDashboard returns the actor's operations together with the last login
// timestamp.
func (c *Client) FetchDashboard(ctx context.Context) (*DashboardData, error) {
	var data DashboardData
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/operaciones", nil, &data); err != nil {
		return nil, err
	}
	normalizeStatuses(data.Operations)
	if err := validateOperations(data.Operations); err != nil {
		return nil, fmt.Errorf("invalid operations payload: %w", err)
	}
	return &data, nil
}

// CreateGestion submits a management log entry. Some orchestrator versions
// echo the created record; callers get nil when the body is empty.
func (c *Client) CreateGestion(ctx context.Context, opID string, g entity.Gestion) (*entity.Gestion, error) {
	endpoint := fmt.Sprintf("%s/operaciones/%s/gestiones", c.baseURL, url.PathEscape(opID))
	var created entity.Gestion
	err := c.doJSON(ctx, http.MethodPost, endpoint, g, &created)
	if err != nil {
		return nil, err
	}
	if created.Tipo == "" {
		return nil, nil
	}
	return &created, nil
}

// UpdateInvoiceStatus persists a factura verification decision.
func (c *Client) UpdateInvoiceStatus(ctx context.Context, opID, folio string, st status.InvoiceStatus) error {
	endpoint := fmt.Sprintf("%s/operaciones/%s/facturas/%s",
		c.baseURL, url.PathEscape(opID), url.PathEscape(folio))
	body := struct {
		Estado status.InvoiceStatus `json:"estado"`
	}{Estado: st}
	return c.doJSON(ctx, http.MethodPatch, endpoint, body, nil)
}

// RequestAdelantoExpress flags the operation for the expedited-advance track.
func (c *Client) RequestAdelantoExpress(ctx context.Context, opID, justification string) error {
	endpoint := fmt.Sprintf("%s/operaciones/%s/adelanto-express", c.baseURL, url.PathEscape(opID))
	body := struct {
		Justificacion string `json:"justificacion"`
	}{Justificacion: justification}
	return c.doJSON(ctx, http.MethodPost, endpoint, body, nil)
}

// CompleteOperation archives the operation remotely.
func (c *Client) CompleteOperation(ctx context.Context, opID string) error {
	endpoint := fmt.Sprintf("%s/operaciones/%s/completar", c.baseURL, url.PathEscape(opID))
	return c.doJSON(ctx, http.MethodPatch, endpoint, nil, nil)
}

// AssignAnalyst assigns the operation to the analyst with the given email.
func (c *Client) AssignAnalyst(ctx context.Context, opID, analystEmail string) error {
	endpoint := fmt.Sprintf("%s/operaciones/%s/assign?assignee_email=%s",
		c.baseURL, url.PathEscape(opID), url.QueryEscape(analystEmail))
	return c.doJSON(ctx, http.MethodPatch, endpoint, nil, nil)
}

// FetchAnalysts returns the roster of assignable analysts.
func (c *Client) FetchAnalysts(ctx context.Context) ([]entity.Analyst, error) {
	var analysts []entity.Analyst
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/users/analysts", nil, &analysts); err != nil {
		return nil, err
	}
	return analysts, nil
}

// SubmitOperation posts a prepared multipart submission (metadata JSON plus
// the xml/pdf/respaldo file groups) and returns the created operations.
func (c *Client) SubmitOperation(ctx context.Context, body io.Reader, contentType string) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL+"/submit-operation", body)
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain session token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit operation: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var result SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	if err := validateSubmitResult(&result); err != nil {
		return nil, fmt.Errorf("invalid submit response: %w", err)
	}
	return &result, nil
}

// doJSON performs an authenticated JSON round trip. out may be nil when the
// response body is irrelevant; an empty body with a non-nil out is tolerated
// because several orchestrator endpoints acknowledge without content.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain session token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Orchestrator request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("Orchestrator request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the orchestrator's detail message from an error body.
func decodeError(statusCode int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return &APIError{StatusCode: statusCode, Detail: body.Detail}
	}
	return &APIError{StatusCode: statusCode}
}
