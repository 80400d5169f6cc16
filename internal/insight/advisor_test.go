package insight

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/domain/entity"
	"github.com/andescap/factoring-console/internal/domain/status"
)

type mockCompleter struct {
	lastReq openai.ChatCompletionRequest
	content string
	err     error
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}

func newTestAdvisor(mock *mockCompleter) *Advisor {
	return &Advisor{
		client: mock,
		model:  "gpt-4o-mini",
		temp:   0.2,
		now:    func() time.Time { return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC) },
		logger: zap.NewNop(),
	}
}

func adviseOp() *entity.Operation {
	return &entity.Operation{
		ID:      "OP-1",
		Cliente: "Textiles del Sur SAC",
		Deudor:  "Ripley Perú",
		Moneda:  "PEN",
		Monto:   decimal.NewFromInt(15000),
		Facturas: []entity.Invoice{
			{Folio: "F001-1", Monto: decimal.NewFromInt(15000), Moneda: "PEN", Estado: status.InvoicePendiente},
		},
		Gestiones: []entity.Gestion{
			{Tipo: entity.GestionLlamada, Contacto: "María Torres", Resultado: entity.OutcomeNoContesta},
		},
		Estado:       status.EnVerificacion,
		FechaIngreso: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
	}
}

func TestAdvisor_Advise(t *testing.T) {
	mock := &mockCompleter{
		content: `{"recomendacion":"Llamar al contacto de tesorería antes del mediodía","prioridad":"alta","razonamiento":"La última llamada no fue contestada"}`,
	}
	advisor := newTestAdvisor(mock)

	advice, err := advisor.Advise(context.Background(), adviseOp())
	require.NoError(t, err)
	assert.Equal(t, "alta", advice.Prioridad)
	assert.Contains(t, advice.Recomendacion, "tesorería")

	require.Len(t, mock.lastReq.Messages, 2)
	prompt := mock.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "Ripley Perú")
	assert.Contains(t, prompt, "F001-1")
	assert.Contains(t, prompt, "Antigüedad: 7 días")
	assert.Contains(t, prompt, "No Contesta")
}

func TestAdvisor_Advise_ExtractsFencedJSON(t *testing.T) {
	mock := &mockCompleter{
		content: "Claro, aquí está mi análisis:\n```json\n{\"recomendacion\":\"Enviar correo formal\",\"prioridad\":\"media\",\"razonamiento\":\"x\"}\n```",
	}
	advice, err := newTestAdvisor(mock).Advise(context.Background(), adviseOp())
	require.NoError(t, err)
	assert.Equal(t, "Enviar correo formal", advice.Recomendacion)
}

func TestAdvisor_Advise_DefaultsUnknownPriority(t *testing.T) {
	mock := &mockCompleter{
		content: `{"recomendacion":"Visitar en terreno","prioridad":"urgentísima","razonamiento":"x"}`,
	}
	advice, err := newTestAdvisor(mock).Advise(context.Background(), adviseOp())
	require.NoError(t, err)
	assert.Equal(t, "media", advice.Prioridad)
}

func TestAdvisor_Advise_RejectsCompleted(t *testing.T) {
	op := adviseOp()
	op.Estado = status.Completada
	_, err := newTestAdvisor(&mockCompleter{}).Advise(context.Background(), op)
	assert.Error(t, err)
}

func TestAdvisor_Advise_GarbageResponse(t *testing.T) {
	mock := &mockCompleter{content: "no puedo ayudarte con eso"}
	_, err := newTestAdvisor(mock).Advise(context.Background(), adviseOp())
	assert.ErrorContains(t, err, "no JSON object")
}

func TestExtractJSON_IgnoresBracesInStrings(t *testing.T) {
	raw, ok := extractJSON(`texto {"a":"valor con } dentro","b":1} cola`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"valor con } dentro","b":1}`, raw)
}
