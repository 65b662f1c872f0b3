// Package broker publishes queued units to the delivery broker, which
// re-delivers them to the worker endpoint with at-least-once semantics.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
)

// DeduplicationHeader carries the provider message ID so the broker can
// collapse duplicate publishes of the same unit.
const DeduplicationHeader = "X-Broker-Deduplication-Id"

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Publisher submits one QueuedUnit per call to the broker's publish
// endpoint.
type Publisher struct {
	brokerURL  string
	token      string
	workerURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPublisher(cfg *config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		brokerURL: cfg.Broker.URL,
		token:     cfg.Broker.Token,
		workerURL: cfg.Broker.WorkerURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Publish enqueues one unit and returns the broker-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, unit *models.QueuedUnit) (string, error) {
	jsonData, err := json.Marshal(unit)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queued unit: %w", err)
	}

	publishURL := fmt.Sprintf("%s/v2/publish/%s", p.brokerURL, url.QueryEscape(p.workerURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set(DeduplicationHeader, unit.Message.ID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("broker publish returned status %d", resp.StatusCode)
	}

	var pubResp publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&pubResp); err != nil {
		// Some brokers answer 200 with an empty body; the unit is queued
		// either way.
		pubResp.MessageID = ""
	}

	p.logger.Info("Queued unit published",
		zap.String("messageID", unit.Message.ID),
		zap.String("brokerMessageID", pubResp.MessageID))

	return pubResp.MessageID, nil
}
