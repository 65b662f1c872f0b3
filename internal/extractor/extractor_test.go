package extractor_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/extractor"
	"github.com/expensabot/expensa/internal/models"
)

func newTestExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	return extractor.NewExtractor(&config.Config{}, zap.NewNop())
}

func TestExtract_TextGrammar(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *models.ParsedExpense
	}{
		{
			name: "spend verb with connector",
			text: "gasté 5000 en pizza",
			want: &models.ParsedExpense{AmountCents: 500000, Description: "pizza", Category: "comida"},
		},
		{
			name: "currency sign with thousands and decimals",
			text: "$1.234,56 almuerzo",
			want: &models.ParsedExpense{AmountCents: 123456, Description: "almuerzo", Category: "comida"},
		},
		{
			name: "dot decimal separator",
			text: "pagué 1200.50 de internet",
			want: &models.ParsedExpense{AmountCents: 120050, Description: "internet", Category: "servicios"},
		},
		{
			name: "comma decimal separator",
			text: "500,50 taxi",
			want: &models.ParsedExpense{AmountCents: 50050, Description: "taxi", Category: "transporte"},
		},
		{
			name: "dot as thousands separator",
			text: "alquiler 85.000",
			want: &models.ParsedExpense{AmountCents: 8500000, Description: "alquiler", Category: "hogar"},
		},
		{
			name: "bare amount gets placeholder description",
			text: "5.000",
			want: &models.ParsedExpense{AmountCents: 500000, Description: "gasto", Category: "otros"},
		},
		{
			name: "purchase verb",
			text: "compré zapatillas 45000",
			want: &models.ParsedExpense{AmountCents: 4500000, Description: "zapatillas", Category: "ropa"},
		},
	}

	ext := newTestExtractor(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ext.Extract(context.Background(), tt.text, nil, "")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want.AmountCents, got.AmountCents)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.Equal(t, tt.want.Category, got.Category)
		})
	}
}

func TestExtract_UnrecognizedInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "no amount", text: "hola, como estás?"},
		{name: "zero amount", text: "gasté $0 en nada"},
		{name: "empty text", text: ""},
		{name: "whitespace only", text: "   "},
	}

	ext := newTestExtractor(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ext.Extract(context.Background(), tt.text, nil, "")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestExtract_MediaWithoutModelConfigured(t *testing.T) {
	ext := newTestExtractor(t)

	got, err := ext.Extract(context.Background(), "", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExtract_ModelFallback(t *testing.T) {
	newModelExtractor := func(t *testing.T, answer string) *extractor.Extractor {
		t.Helper()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-4o-mini", req["model"])

			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
		}))
		t.Cleanup(server.Close)

		cfg := &config.Config{}
		cfg.Extractor.APIKey = "test-key"
		cfg.Extractor.Model = "gpt-4o-mini"
		cfg.Extractor.BaseURL = server.URL

		return extractor.NewExtractor(cfg, zap.NewNop())
	}

	t.Run("image receipt parsed by model", func(t *testing.T) {
		ext := newModelExtractor(t, `{"amount": 2350.75, "description": "supermercado", "category": "comida"}`)

		got, err := ext.Extract(context.Background(), "", []byte("jpeg-bytes"), "image/jpeg")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(235075), got.AmountCents)
		assert.Equal(t, "supermercado", got.Description)
		assert.Equal(t, "comida", got.Category)
	})

	t.Run("fenced json answer", func(t *testing.T) {
		ext := newModelExtractor(t, "```json\n{\"amount\": 100, \"description\": \"peaje\", \"category\": \"transporte\"}\n```")

		got, err := ext.Extract(context.Background(), "pagar el peaje costó", nil, "")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(10000), got.AmountCents)
	})

	t.Run("decimal amount rounds to whole cents", func(t *testing.T) {
		// 4.35 has no exact float64 representation; cents must round,
		// not truncate to 434.
		ext := newModelExtractor(t, `{"amount": 4.35, "description": "chicles", "category": "otros"}`)

		got, err := ext.Extract(context.Background(), "", []byte("jpeg-bytes"), "image/jpeg")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(435), got.AmountCents)
	})

	t.Run("model reports no expense", func(t *testing.T) {
		ext := newModelExtractor(t, `{"amount": 0}`)

		got, err := ext.Extract(context.Background(), "buen día!", nil, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("free-form answer treated as unrecognized", func(t *testing.T) {
		ext := newModelExtractor(t, "No puedo identificar un gasto en ese mensaje.")

		got, err := ext.Extract(context.Background(), "mmm", nil, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("audio media is not sent to the model", func(t *testing.T) {
		ext := newModelExtractor(t, `{"amount": 100}`)

		got, err := ext.Extract(context.Background(), "", []byte("ogg-bytes"), "audio/ogg")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestExtract_GrammarPreferredOverModel(t *testing.T) {
	// The model endpoint must not be reached when the grammar already
	// parsed the text.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("model endpoint should not be called")
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Extractor.APIKey = "test-key"
	cfg.Extractor.BaseURL = server.URL

	ext := extractor.NewExtractor(cfg, zap.NewNop())

	got, err := ext.Extract(context.Background(), "gasté 300 en cafe", nil, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(30000), got.AmountCents)
}
