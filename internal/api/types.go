// Package api defines the wire types exchanged with the messaging provider,
// the queue broker and this service's own HTTP clients.
package api

import "time"

// WebhookPayload is the top-level object the provider posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// ObjectBusinessAccount is the only top-level object type this service
// processes; anything else is acknowledged and ignored.
const ObjectBusinessAccount = "whatsapp_business_account"

// FieldMessages marks a change that carries user messages. Other change
// fields (delivery statuses, template updates) are skipped.
const FieldMessages = "messages"

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message exactly as the provider delivers it.
type Message struct {
	From      string      `json:"from"`
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Type      string      `json:"type"`
	Text      *TextBody   `json:"text,omitempty"`
	Audio     *MediaBody  `json:"audio,omitempty"`
	Image     *MediaBody  `json:"image,omitempty"`
	Document  *MediaBody  `json:"document,omitempty"`
	Errors    []ErrorBody `json:"errors,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type ErrorBody struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// Status is a delivery-status callback entry. Present only so payloads
// decode cleanly; the pipeline ignores them.
type Status struct {
	ID          string `json:"id"`
	StatusValue string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// IngressResponse acknowledges a provider webhook delivery.
type IngressResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued"`
}

// Worker outcome values reported back to the broker.
type WorkerStatus string

const (
	WorkerStatusProcessed WorkerStatus = "processed"
	WorkerStatusDuplicate WorkerStatus = "duplicate"
	WorkerStatusIgnored   WorkerStatus = "ignored"
)

// WorkerResponse reports the outcome of one queued-unit delivery.
type WorkerResponse struct {
	Status    WorkerStatus `json:"status"`
	MessageID string       `json:"id"`
}

// WorkerErrorResponse is returned with a 5xx status so the broker retries.
type WorkerErrorResponse struct {
	Error     string `json:"error"`
	MessageID string `json:"id"`
}

// ErrorResponse is the generic error body for non-worker endpoints.
type ErrorResponse struct {
	Error     string     `json:"error"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Health enums mirror the health endpoint contract.
type HealthResponseStatus string

const (
	Healthy   HealthResponseStatus = "healthy"
	Degraded  HealthResponseStatus = "degraded"
	Unhealthy HealthResponseStatus = "unhealthy"
)

type HealthResponseDatabaseStatus string

const (
	HealthResponseDatabaseStatusConnected    HealthResponseDatabaseStatus = "connected"
	HealthResponseDatabaseStatusDisconnected HealthResponseDatabaseStatus = "disconnected"
)

type HealthResponseRedisStatus string

const (
	HealthResponseRedisStatusConnected    HealthResponseRedisStatus = "connected"
	HealthResponseRedisStatusDisconnected HealthResponseRedisStatus = "disconnected"
)

type HealthResponseReclaimerStatus string

const (
	HealthResponseReclaimerStatusRunning HealthResponseReclaimerStatus = "running"
	HealthResponseReclaimerStatusStopped HealthResponseReclaimerStatus = "stopped"
)

type HealthResponseCircuitBreakerState string

const (
	Closed   HealthResponseCircuitBreakerState = "closed"
	HalfOpen HealthResponseCircuitBreakerState = "half-open"
	Open     HealthResponseCircuitBreakerState = "open"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status               HealthResponseStatus               `json:"status"`
	Timestamp            time.Time                          `json:"timestamp"`
	DatabaseStatus       *HealthResponseDatabaseStatus      `json:"database_status,omitempty"`
	RedisStatus          *HealthResponseRedisStatus         `json:"redis_status,omitempty"`
	ReclaimerStatus      *HealthResponseReclaimerStatus     `json:"reclaimer_status,omitempty"`
	CircuitBreakerState  *HealthResponseCircuitBreakerState `json:"circuit_breaker_state,omitempty"`
	CircuitBreakerStatus *string                            `json:"circuit_breaker_status,omitempty"`
}
