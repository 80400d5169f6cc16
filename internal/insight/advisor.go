// Package insight suggests the next verification move for an operation
// using an LLM, based on the operation's state and its contact history.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

// Advice is the advisor's recommendation for an operation.
type Advice struct {
	Recomendacion string `json:"recomendacion"`
	Prioridad     string `json:"prioridad"`
	Razonamiento  string `json:"razonamiento"`
}

// chatCompleter is the slice of the OpenAI client the advisor uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Advisor asks the model for a debtor-contact recommendation.
type Advisor struct {
	client chatCompleter
	model  string
	temp   float32
	now    func() time.Time
	logger *zap.Logger
}

func NewAdvisor(apiKey, model string, temperature float32, logger *zap.Logger) *Advisor {
	return &Advisor{
		client: openai.NewClient(apiKey),
		model:  model,
		temp:   temperature,
		now:    time.Now,
		logger: logger,
	}
}

const systemPrompt = "Eres un analista senior de verificación de facturas en una empresa " +
	"de factoring peruana. Recomiendas la siguiente acción de contacto con el deudor. " +
	"Responde únicamente con un objeto JSON válido."

// Advise returns a recommendation for the given operation. Completed
// operations need no advice.
func (a *Advisor) Advise(ctx context.Context, op *entity.Operation) (*Advice, error) {
	if op.Estado.IsTerminal() {
		return nil, fmt.Errorf("operation %s is already completed", op.ID)
	}

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: a.buildPrompt(op)},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("Advisor completion failed",
			zap.String("operation_id", op.ID),
			zap.Error(err))
		return nil, fmt.Errorf("advisor request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("advisor returned no choices")
	}

	advice, err := parseAdvice(resp.Choices[0].Message.Content)
	if err != nil {
		a.logger.Error("Unparseable advisor response",
			zap.String("operation_id", op.ID),
			zap.Error(err))
		return nil, err
	}

	a.logger.Info("Advice generated",
		zap.String("operation_id", op.ID),
		zap.String("prioridad", advice.Prioridad))
	return advice, nil
}

// buildPrompt summarizes the operation for the model: amounts, invoice
// states, antiquity and the most recent contact attempts.
func (a *Advisor) buildPrompt(op *entity.Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operación %s\n", op.ID)
	fmt.Fprintf(&b, "Cliente: %s\n", op.Cliente)
	fmt.Fprintf(&b, "Deudor: %s\n", op.Deudor)
	fmt.Fprintf(&b, "Monto: %s %s\n", op.Monto.String(), op.Moneda)
	fmt.Fprintf(&b, "Estado: %s\n", op.Estado)
	fmt.Fprintf(&b, "Antigüedad: %d días\n", op.Antiquity(a.now()))

	b.WriteString("Facturas:\n")
	for _, inv := range op.Facturas {
		fmt.Fprintf(&b, "- %s: %s %s (%s)\n", inv.Folio, inv.Monto.String(), inv.Moneda, inv.Estado)
	}

	if len(op.Gestiones) == 0 {
		b.WriteString("Sin gestiones registradas todavía.\n")
	} else {
		b.WriteString("Últimas gestiones:\n")
		recent := op.Gestiones
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, g := range recent {
			fmt.Fprintf(&b, "- %s a %s: %s\n", g.Tipo, g.Contacto, g.Resultado)
		}
	}

	if pending := countPending(op); pending > 0 {
		fmt.Fprintf(&b, "Facturas pendientes de verificación: %d\n", pending)
	}

	b.WriteString(`
Responde SOLO con este JSON:
{
  "recomendacion": "siguiente acción concreta de contacto",
  "prioridad": "alta" | "media" | "baja",
  "razonamiento": "por qué esta acción"
}`)
	return b.String()
}

func countPending(op *entity.Operation) int {
	n := 0
	for _, inv := range op.Facturas {
		if inv.Estado == status.InvoicePendiente {
			n++
		}
	}
	return n
}

// parseAdvice decodes the model output, tolerating markdown fences and
// surrounding prose by extracting the first balanced JSON object.
func parseAdvice(content string) (*Advice, error) {
	var advice Advice
	if err := json.Unmarshal([]byte(content), &advice); err == nil {
		return validateAdvice(&advice)
	}

	raw, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in advisor response")
	}
	if err := json.Unmarshal([]byte(raw), &advice); err != nil {
		return nil, fmt.Errorf("failed to parse advisor response: %w", err)
	}
	return validateAdvice(&advice)
}

func validateAdvice(advice *Advice) (*Advice, error) {
	if advice.Recomendacion == "" {
		return nil, fmt.Errorf("advisor response missing recomendacion")
	}
	switch advice.Prioridad {
	case "alta", "media", "baja":
	default:
		advice.Prioridad = "media"
	}
	return advice, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
