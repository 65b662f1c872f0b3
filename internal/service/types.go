package service

import "github.com/expensabot/expensa/internal/api"

type HealthStatus struct {
	Status               api.HealthResponseStatus              `json:"status"`
	ReclaimerStatus      api.HealthResponseReclaimerStatus     `json:"reclaimer_status"`
	DatabaseStatus       api.HealthResponseDatabaseStatus      `json:"database_status"`
	RedisStatus          api.HealthResponseRedisStatus         `json:"redis_status"`
	CircuitBreakerStatus string                                `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  api.HealthResponseCircuitBreakerState `json:"circuit_breaker_state,omitempty"`
}
