package service

import (
	"context"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/models"
)

// PipelineService processes one queued unit per broker delivery attempt.
type PipelineService interface {
	Process(ctx context.Context, unit *models.QueuedUnit) (api.WorkerStatus, error)
}

// IngressService fans a provider payload out into independent queued units.
type IngressService interface {
	Ingest(ctx context.Context, rawBody []byte) (int, error)
}

// ReclaimerService periodically re-publishes claimed-but-incomplete
// ledger records so crashed attempts are not silently dropped.
type ReclaimerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth() *HealthStatus
}

// Extractor turns raw text or media into a structured expense. A nil
// expense with a nil error means the input is unrecognized.
type Extractor interface {
	Extract(ctx context.Context, text string, media []byte, mimeType string) (*models.ParsedExpense, error)
}

// Notifier sends a reply to the original sender.
type Notifier interface {
	Send(ctx context.Context, to, text string) error
	BreakerState() api.HealthResponseCircuitBreakerState
	BreakerCounts() (requests, failures uint32)
}

// MediaFetcher downloads a provider-hosted attachment.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaID string) (*models.MediaContent, error)
}

// Publisher submits one queued unit to the broker.
type Publisher interface {
	Publish(ctx context.Context, unit *models.QueuedUnit) (string, error)
}
