// Package handler provides HTTP request handlers for the application.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/api"
	"github.com/expensabot/expensa/internal/middleware"
	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/service"
	"github.com/expensabot/expensa/internal/signature"
)

// ProviderSignatureHeader carries the provider's HMAC over the raw body.
const ProviderSignatureHeader = "X-Hub-Signature-256"

// BrokerSignatureHeader carries the broker's signed delivery token.
const BrokerSignatureHeader = "X-Broker-Signature"

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

const (
	errorCodeUnauthorized = "UNAUTHORIZED"
	errorCodeForbidden    = "FORBIDDEN"
)

const (
	errorMessageBadProviderSignature = "Provider signature verification failed"
	errorMessageBadBrokerSignature   = "Broker signature verification failed"
	errorMessageBadVerifyToken       = "Verification token mismatch"
	errorMessageUnreadableBody       = "Could not read request body"
)

type Handler struct {
	service        *service.Service
	appSecret      string
	verifyToken    string
	brokerVerifier *signature.BrokerVerifier
	logger         *zap.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(
	svc *service.Service,
	appSecret string,
	verifyToken string,
	brokerVerifier *signature.BrokerVerifier,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		service:        svc,
		appSecret:      appSecret,
		verifyToken:    verifyToken,
		brokerVerifier: brokerVerifier,
		logger:         logger,
	}
}

// VerifyWebhook answers the provider's subscription handshake. No side
// effects.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.Warn("Webhook handshake rejected", zap.String("mode", mode))
		h.sendError(w, r, http.StatusForbidden, errorCodeForbidden, errorMessageBadVerifyToken)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// ReceiveWebhook ingests one provider delivery. The raw body is captured
// before any decoding so the signature check covers the exact bytes
// received. Nothing beyond enqueueing runs synchronously here: the
// provider expects an acknowledgment well inside its retry timeout.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read webhook body",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusBadRequest, middleware.ErrorCodeInternal, errorMessageUnreadableBody)
		return
	}

	if !signature.VerifyProvider(rawBody, r.Header.Get(ProviderSignatureHeader), h.appSecret) {
		h.logger.Warn("Provider signature verification failed",
			zap.String("request_id", requestID))
		h.sendError(w, r, http.StatusUnauthorized, errorCodeUnauthorized, errorMessageBadProviderSignature)
		return
	}

	queued, err := h.service.Ingress.Ingest(r.Context(), rawBody)
	if err != nil {
		// Enqueue fan-out failures are already isolated and logged per
		// unit; this path only fires on wiring errors. The provider still
		// gets success so it does not re-deliver the whole payload.
		h.logger.Error("Ingress processing error",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	render.JSON(w, r, api.IngressResponse{
		Status: "accepted",
		Queued: queued,
	})
}

// ProcessQueuedUnit handles one broker delivery attempt. A 5xx response
// tells the broker to retry the unit.
func (h *Handler) ProcessQueuedUnit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read worker body",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusBadRequest, middleware.ErrorCodeInternal, errorMessageUnreadableBody)
		return
	}

	if err := h.brokerVerifier.Verify(rawBody, r.Header.Get(BrokerSignatureHeader)); err != nil {
		h.logger.Warn("Broker signature verification failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusUnauthorized, errorCodeUnauthorized, errorMessageBadBrokerSignature)
		return
	}

	var unit models.QueuedUnit
	if err := json.Unmarshal(rawBody, &unit); err != nil {
		h.logger.Error("Undecodable queued unit",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusBadRequest, middleware.ErrorCodeInternal, "Undecodable queued unit")
		return
	}

	status, err := h.service.Pipeline.Process(r.Context(), &unit)
	if err != nil {
		h.logger.Error("Pipeline failure, requesting broker retry",
			zap.String("request_id", requestID),
			zap.String("messageID", unit.Message.ID),
			zap.Error(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, api.WorkerErrorResponse{
			Error:     err.Error(),
			MessageID: unit.Message.ID,
		})
		return
	}

	render.JSON(w, r, api.WorkerResponse{
		Status:    status,
		MessageID: unit.Message.ID,
	})
}

// HealthCheck reports dependency health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth()

	response := api.HealthResponse{
		Status:    health.Status,
		Timestamp: time.Now(),
	}

	if health.ReclaimerStatus != "" {
		status := health.ReclaimerStatus
		response.ReclaimerStatus = &status
	}

	if health.DatabaseStatus != "" {
		status := health.DatabaseStatus
		response.DatabaseStatus = &status
	}

	if health.RedisStatus != "" {
		status := health.RedisStatus
		response.RedisStatus = &status
	}

	if health.CircuitBreakerStatus != "" {
		response.CircuitBreakerStatus = &health.CircuitBreakerStatus
	}

	if health.CircuitBreakerState != "" {
		state := health.CircuitBreakerState
		response.CircuitBreakerState = &state
	}

	if health.Status == api.Unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, api.ErrorResponse{
		Error:   errorCode,
		Message: message,
		Timestamp: func() *time.Time {
			t := time.Now()
			return &t
		}(),
	})
}
