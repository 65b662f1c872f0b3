package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/repository"
)

type healthService struct {
	repo             repository.Repository
	redisClient      *redis.Client
	reclaimerService ReclaimerService
	notifier         Notifier
}

func NewHealthService(
	repo repository.Repository,
	redisClient *redis.Client,
	reclaimerService ReclaimerService,
	notif Notifier,
) HealthService {
	return &healthService{
		repo:             repo,
		redisClient:      redisClient,
		reclaimerService: reclaimerService,
		notifier:         notif,
	}
}

func (s *healthService) GetHealth() *HealthStatus {
	status := &HealthStatus{
		Status: api.Healthy,
	}

	if s.reclaimerService.IsRunning() {
		status.ReclaimerStatus = api.HealthResponseReclaimerStatusRunning
	} else {
		status.ReclaimerStatus = api.HealthResponseReclaimerStatusStopped
	}

	status.DatabaseStatus = s.checkDatabaseHealth()

	status.RedisStatus = s.checkRedisHealth()

	state := s.notifier.BreakerState()
	requests, failures := s.notifier.BreakerCounts()
	status.CircuitBreakerState = state
	if requests > 0 {
		failureRate := float64(failures) / float64(requests) * 100
		status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
	} else {
		status.CircuitBreakerStatus = "No requests yet"
	}

	// Determine overall health. The duplicate cache is advisory and an
	// open breaker means replies are failing but ingestion still works,
	// so both only degrade; a lost database takes the service down.
	if status.RedisStatus != api.HealthResponseRedisStatusConnected || state == api.Open {
		status.Status = api.Degraded
	}
	if status.DatabaseStatus != api.HealthResponseDatabaseStatusConnected {
		status.Status = api.Unhealthy
	}

	return status
}

func (s *healthService) checkDatabaseHealth() api.HealthResponseDatabaseStatus {
	err := s.repo.Ping()
	if err != nil {
		return api.HealthResponseDatabaseStatusDisconnected
	}
	return api.HealthResponseDatabaseStatusConnected
}

func (s *healthService) checkRedisHealth() api.HealthResponseRedisStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return api.HealthResponseRedisStatusDisconnected
	}

	return api.HealthResponseRedisStatusConnected
}
