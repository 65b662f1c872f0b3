package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/models"
)

type ingressService struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewIngressService(publisher Publisher, logger *zap.Logger) IngressService {
	return &ingressService{
		publisher: publisher,
		logger:    logger,
	}
}

// Ingest parses an already-verified provider payload, fans every embedded
// message out to the broker as an independent unit, and returns how many
// units were queued. One failing enqueue never blocks its siblings, and
// failures are logged rather than surfaced to the provider: once a unit
// is durably queued, broker retries are the safety net, not provider
// redelivery.
func (s *ingressService) Ingest(ctx context.Context, rawBody []byte) (int, error) {
	var payload api.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		s.logger.Warn("Discarding undecodable webhook payload", zap.Error(err))
		return 0, nil
	}

	if payload.Object != api.ObjectBusinessAccount {
		s.logger.Info("Ignoring webhook for unexpected object", zap.String("object", payload.Object))
		return 0, nil
	}

	units := extractUnits(&payload)
	if len(units) == 0 {
		return 0, nil
	}

	results := make([]error, len(units))
	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit *models.QueuedUnit) {
			defer wg.Done()
			_, err := s.publisher.Publish(ctx, unit)
			results[i] = err
		}(i, unit)
	}
	wg.Wait()

	queued := 0
	for i, err := range results {
		if err != nil {
			s.logger.Error("Failed to enqueue message",
				zap.String("messageID", units[i].Message.ID),
				zap.Error(err))
			continue
		}
		queued++
	}

	return queued, nil
}

// extractUnits flattens a payload into one QueuedUnit per message,
// skipping changes that are not message deliveries (e.g. status
// callbacks).
func extractUnits(payload *api.WebhookPayload) []*models.QueuedUnit {
	now := time.Now()
	var units []*models.QueuedUnit

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != api.FieldMessages {
				continue
			}

			names := profileNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				units = append(units, &models.QueuedUnit{
					Message:       toInboundMessage(msg, names),
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					ReceivedAt:    now,
				})
			}
		}
	}

	return units
}

func profileNames(contacts []api.Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

func toInboundMessage(msg api.Message, names map[string]string) models.InboundMessage {
	inbound := models.InboundMessage{
		ID:          msg.ID,
		From:        msg.From,
		ProfileName: names[msg.From],
	}

	switch msg.Type {
	case "text":
		inbound.Kind = models.KindText
		if msg.Text != nil {
			inbound.Text = msg.Text.Body
		}
	case "audio":
		inbound.Kind = models.KindAudio
		if msg.Audio != nil {
			inbound.Media = &models.MediaRef{ID: msg.Audio.ID, MimeType: msg.Audio.MimeType}
		}
	case "image":
		inbound.Kind = models.KindImage
		if msg.Image != nil {
			inbound.Media = &models.MediaRef{ID: msg.Image.ID, MimeType: msg.Image.MimeType}
			inbound.Text = msg.Image.Caption
		}
	case "document":
		// Receipts often arrive as documents; treat them like images.
		inbound.Kind = models.KindDocument
		if msg.Document != nil {
			inbound.Media = &models.MediaRef{ID: msg.Document.ID, MimeType: msg.Document.MimeType}
			inbound.Text = msg.Document.Caption
		}
	default:
		inbound.Kind = models.KindOther
	}

	return inbound
}
