package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
)

const llmSystemPrompt = `Sos un asistente que registra gastos personales.
Extraé del mensaje el monto, una descripción corta y una categoría
(comida, transporte, servicios, entretenimiento, salud, hogar, ropa, otros).
Respondé solo JSON: {"amount": <número>, "description": "...", "category": "..."}.
Si el mensaje no describe un gasto, respondé {"amount": 0}.`

// llmClient is the language-model fallback for input the regex grammar
// cannot parse, including image receipts.
type llmClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func newLLMClient(cfg *config.ExtractorConfig) *llmClient {
	return &llmClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type llmExpense struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}

func (c *llmClient) Extract(ctx context.Context, text string, media []byte, mimeType string) (*models.ParsedExpense, error) {
	userMsg := chatMessage{Role: "user", Content: text}
	if len(media) > 0 {
		if !strings.HasPrefix(mimeType, "image/") {
			// Audio transcription is not wired; only images reach the model.
			return nil, nil
		}
		userMsg.Content = []chatContent{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &chatImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(media)),
			}},
		}
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: llmSystemPrompt},
			userMsg,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, nil
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	var parsed llmExpense
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Model answered free-form; treat as unrecognized input.
		return nil, nil
	}
	if parsed.Amount <= 0 {
		return nil, nil
	}

	return &models.ParsedExpense{
		AmountCents: int64(math.Round(parsed.Amount * 100)),
		Description: strings.TrimSpace(parsed.Description),
		Category:    strings.ToLower(strings.TrimSpace(parsed.Category)),
	}, nil
}
