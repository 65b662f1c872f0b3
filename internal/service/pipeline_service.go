// Package service provides business logic implementation for the application.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/notifier"
	"github.com/expensabot/expensa/internal/repository"
)

// completedCacheTTL bounds the Redis fast-path entries for finished
// messages. Postgres remains the authority; the cache only short-circuits
// obvious duplicates.
const completedCacheTTL = 24 * time.Hour

type pipelineService struct {
	repo        repository.Repository
	redisClient *redis.Client
	fetcher     MediaFetcher
	extractor   Extractor
	notifier    Notifier
	logger      *zap.Logger
}

func NewPipelineService(
	repo repository.Repository,
	redisClient *redis.Client,
	fetcher MediaFetcher,
	extractor Extractor,
	notif Notifier,
	logger *zap.Logger,
) PipelineService {
	return &pipelineService{
		repo:        repo,
		redisClient: redisClient,
		fetcher:     fetcher,
		extractor:   extractor,
		notifier:    notif,
		logger:      logger,
	}
}

// Process runs one delivery attempt: claim, extract, persist, notify.
// Returned errors are retryable pipeline failures; every other outcome is
// terminal success for the broker.
func (s *pipelineService) Process(ctx context.Context, unit *models.QueuedUnit) (api.WorkerStatus, error) {
	unit.Message.From = normalizeSender(unit.Message.From)
	messageID := unit.Message.ID

	if s.isCachedCompleted(ctx, messageID) {
		s.logger.Info("Duplicate message short-circuited by cache", zap.String("messageID", messageID))
		return api.WorkerStatusDuplicate, nil
	}

	claimed, err := s.repo.Ledger().Claim(ctx, unit)
	if err != nil {
		return "", fmt.Errorf("failed to claim message: %w", err)
	}
	if !claimed {
		s.logger.Info("Duplicate message skipped", zap.String("messageID", messageID))
		return api.WorkerStatusDuplicate, nil
	}

	status, err := s.runClaimed(ctx, unit)
	if err != nil {
		if markErr := s.repo.Ledger().MarkFailed(ctx, messageID, err.Error()); markErr != nil {
			s.logger.Error("Failed to annotate ledger record",
				zap.String("messageID", messageID),
				zap.Error(markErr))
		}
		return "", err
	}

	if markErr := s.repo.Ledger().MarkCompleted(ctx, messageID); markErr != nil {
		// The pipeline outcome is already decided; the reclaimer will
		// re-deliver and the unique transaction constraint absorbs it.
		s.logger.Error("Failed to mark ledger record completed",
			zap.String("messageID", messageID),
			zap.Error(markErr))
	} else {
		s.cacheCompleted(ctx, messageID)
	}

	return status, nil
}

// runClaimed executes the stages after a successful claim.
func (s *pipelineService) runClaimed(ctx context.Context, unit *models.QueuedUnit) (api.WorkerStatus, error) {
	msg := unit.Message

	var text string
	var media []byte
	var mimeType string

	switch msg.Kind {
	case models.KindText:
		text = msg.Text
	case models.KindAudio, models.KindImage, models.KindDocument:
		content, err := s.fetcher.Fetch(ctx, msg.Media.ID)
		if err != nil {
			return "", fmt.Errorf("media fetch failed: %w", err)
		}
		text = msg.Text
		media = content.Data
		mimeType = content.MimeType
	default:
		s.logger.Info("Ignoring message of unsupported kind",
			zap.String("messageID", msg.ID),
			zap.String("kind", string(msg.Kind)))
		return api.WorkerStatusIgnored, nil
	}

	expense, err := s.extractor.Extract(ctx, text, media, mimeType)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	if expense == nil {
		// Unrecognized input is an expected outcome, never a retry.
		if err := s.notifier.Send(ctx, msg.From, notifier.HelpMessage()); err != nil {
			return "", fmt.Errorf("failed to send help reply: %w", err)
		}
		s.logger.Info("Unrecognized input, help reply sent", zap.String("messageID", msg.ID))
		return api.WorkerStatusProcessed, nil
	}

	if err := s.persistExpense(ctx, unit, expense); err != nil {
		return "", err
	}

	if err := s.notifier.Send(ctx, msg.From, notifier.ConfirmationMessage(expense)); err != nil {
		return "", fmt.Errorf("failed to send confirmation: %w", err)
	}

	s.logger.Info("Expense recorded",
		zap.String("messageID", msg.ID),
		zap.String("sender", msg.From),
		zap.Int64("amountCents", expense.AmountCents),
		zap.String("category", expense.Category))

	return api.WorkerStatusProcessed, nil
}

// persistExpense resolves the user and category concurrently, then writes
// the transaction. The two lookups have no data dependency on each other.
func (s *pipelineService) persistExpense(ctx context.Context, unit *models.QueuedUnit, expense *models.ParsedExpense) error {
	var (
		wg       sync.WaitGroup
		user     *models.User
		category *models.Category
		userErr  error
		catErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		user, userErr = s.repo.Users().GetOrCreate(ctx, unit.Message.From, unit.Message.ProfileName)
	}()
	go func() {
		defer wg.Done()
		category, catErr = s.repo.Categories().GetOrCreate(ctx, expense.Category)
	}()
	wg.Wait()

	if userErr != nil {
		return fmt.Errorf("failed to resolve user: %w", userErr)
	}
	if catErr != nil {
		return fmt.Errorf("failed to resolve category: %w", catErr)
	}

	inserted, err := s.repo.Transactions().Create(ctx, &models.Transaction{
		MessageID:   unit.Message.ID,
		UserID:      user.ID,
		CategoryID:  category.ID,
		AmountCents: expense.AmountCents,
		Description: expense.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to persist transaction: %w", err)
	}
	if !inserted {
		s.logger.Warn("Transaction already persisted for message, skipping insert",
			zap.String("messageID", unit.Message.ID))
	}

	return nil
}

func (s *pipelineService) isCachedCompleted(ctx context.Context, messageID string) bool {
	if s.redisClient == nil {
		return false
	}
	exists, err := s.redisClient.Exists(ctx, completedCacheKey(messageID)).Result()
	if err != nil {
		s.logger.Warn("Redis duplicate check failed, falling through to ledger", zap.Error(err))
		return false
	}
	return exists > 0
}

func (s *pipelineService) cacheCompleted(ctx context.Context, messageID string) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Set(ctx, completedCacheKey(messageID), time.Now().Format(time.RFC3339), completedCacheTTL).Err(); err != nil {
		s.logger.Warn("Failed to cache completed message ID",
			zap.String("messageID", messageID),
			zap.Error(err))
	}
}

func completedCacheKey(messageID string) string {
	return "processed:" + messageID
}

// normalizeSender corrects the provider's mobile-prefix quirk: Mexican
// wa_ids arrive as 521XXXXXXXXXX but the send API only accepts
// 52XXXXXXXXXX.
func normalizeSender(waID string) string {
	if strings.HasPrefix(waID, "521") && len(waID) == 13 {
		return "52" + waID[3:]
	}
	return waID
}
