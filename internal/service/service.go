package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/repository"
)

type Service struct {
	Pipeline  PipelineService
	Ingress   IngressService
	Reclaimer ReclaimerService
	Health    HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	redisClient *redis.Client,
	publisher Publisher,
	fetcher MediaFetcher,
	extractor Extractor,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	pipelineService := NewPipelineService(repo, redisClient, fetcher, extractor, notifier, logger)
	ingressService := NewIngressService(publisher, logger)
	reclaimerService := NewReclaimerService(cfg, repo, publisher, logger)
	healthService := NewHealthService(repo, redisClient, reclaimerService, notifier)

	return &Service{
		Pipeline:  pipelineService,
		Ingress:   ingressService,
		Reclaimer: reclaimerService,
		Health:    healthService,
	}
}
