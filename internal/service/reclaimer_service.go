package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/repository"
	"github.com/expensabot/expensa/internal/scheduler"
)

// reclaimerService sweeps the ledger for claims that crashed before
// completing: records with no completion and no recorded failure older
// than the stale threshold. Each is stamped re-claimable and re-published
// to the broker.
type reclaimerService struct {
	scheduler  *scheduler.Scheduler
	repo       repository.Repository
	publisher  Publisher
	staleAfter time.Duration
	batchSize  int
	logger     *zap.Logger
}

func NewReclaimerService(
	cfg *config.Config,
	repo repository.Repository,
	publisher Publisher,
	logger *zap.Logger,
) ReclaimerService {
	svc := &reclaimerService{
		repo:       repo,
		publisher:  publisher,
		staleAfter: time.Duration(cfg.Reclaimer.StaleAfterMinutes) * time.Minute,
		batchSize:  cfg.Reclaimer.BatchSize,
		logger:     logger,
	}

	interval := time.Duration(cfg.Reclaimer.IntervalMinutes) * time.Minute
	svc.scheduler = scheduler.NewScheduler(logger, interval, svc.executeReclaim)
	return svc
}

func (s *reclaimerService) Start() error {
	ctx := context.Background()
	return s.scheduler.Start(ctx)
}

func (s *reclaimerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *reclaimerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

// executeReclaim runs one sweep. Per-record failures are logged and do
// not stop the rest of the batch.
func (s *reclaimerService) executeReclaim(ctx context.Context) error {
	records, err := s.repo.Ledger().ListStaleIncomplete(ctx, s.staleAfter, s.batchSize)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	s.logger.Info("Reclaiming stale claims", zap.Int("count", len(records)))

	for _, record := range records {
		var unit models.QueuedUnit
		if err := json.Unmarshal(record.Payload, &unit); err != nil {
			s.logger.Error("Stale record has undecodable payload, skipping",
				zap.String("messageID", record.MessageID),
				zap.Error(err))
			continue
		}

		if err := s.repo.Ledger().MarkReaped(ctx, record.MessageID); err != nil {
			s.logger.Error("Failed to reap stale claim",
				zap.String("messageID", record.MessageID),
				zap.Error(err))
			continue
		}

		if _, err := s.publisher.Publish(ctx, &unit); err != nil {
			// The reap mark survives, so the record stays visible to the
			// next sweep and the re-publish is retried there.
			s.logger.Error("Failed to re-publish reclaimed unit",
				zap.String("messageID", record.MessageID),
				zap.Error(err))
			continue
		}

		s.logger.Info("Stale claim re-published",
			zap.String("messageID", record.MessageID),
			zap.Int("attempts", record.Attempts))
	}

	return nil
}
