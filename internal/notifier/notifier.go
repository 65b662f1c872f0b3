package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
)

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// Notifier sends text replies through the provider's message API.
type Notifier struct {
	baseURL        string
	token          string
	phoneNumberID  string
	httpClient     *http.Client
	logger         *zap.Logger
	circuitBreaker *CircuitBreaker
}

func NewNotifier(cfg *config.Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		baseURL:       cfg.WhatsApp.GraphBaseURL,
		token:         cfg.WhatsApp.Token,
		phoneNumberID: cfg.WhatsApp.PhoneNumberID,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Notifier.TimeoutSec) * time.Second,
		},
		logger:         logger,
		circuitBreaker: NewCircuitBreaker(&cfg.Notifier.CircuitBreaker, logger),
	}
}

// Send delivers one text message to the given recipient.
func (n *Notifier) Send(ctx context.Context, to, text string) error {
	return n.circuitBreaker.Execute(ctx, func() error {
		reqBody := sendRequest{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: text},
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal send request: %w", err)
		}

		url := fmt.Sprintf("%s/%s/messages", n.baseURL, n.phoneNumberID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create send request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+n.token)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		defer func() {
			if closeErr := resp.Body.Close(); closeErr != nil {
				n.logger.Warn("Failed to close response body", zap.Error(closeErr))
			}
		}()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("message send returned status %d", resp.StatusCode)
		}

		n.logger.Info("Reply sent",
			zap.String("to", to),
			zap.String("circuitBreakerState", string(n.circuitBreaker.State())))

		return nil
	})
}

// BreakerState exposes the circuit breaker state for health reporting.
func (n *Notifier) BreakerState() api.HealthResponseCircuitBreakerState {
	return n.circuitBreaker.State()
}

// BreakerCounts exposes the circuit breaker counters for health reporting.
func (n *Notifier) BreakerCounts() (requests, failures uint32) {
	return n.circuitBreaker.Counts()
}

// ConfirmationMessage is the reply sent after an expense is saved.
func ConfirmationMessage(exp *models.ParsedExpense) string {
	return fmt.Sprintf("✅ Gasto registrado: %s %s en %s", FormatAmount(exp.AmountCents), exp.Description, exp.Category)
}

// HelpMessage is the reply sent when the input could not be understood.
func HelpMessage() string {
	return "🤔 No entendí el gasto. Probá con algo como: \"gasté 5000 en pizza\" — monto y en qué lo gastaste."
}

// FormatAmount renders cents as "$1.234,56", dropping the decimals when
// they are zero.
func FormatAmount(cents int64) string {
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, d)
	}

	if frac == 0 {
		return "$" + string(grouped)
	}
	return fmt.Sprintf("$%s,%02d", grouped, frac)
}
