package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"envelope-service/internal/codec"
	"envelope-service/internal/messages"
	"envelope-service/internal/models"
	"envelope-service/internal/observability"
	"envelope-service/internal/rabbitmq"
	"envelope-service/internal/repositories"
	"envelope-service/internal/telemetry"
	"envelope-service/internal/ws"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// EnvelopeHandler wraps posted payloads into envelopes and publishes them.
type EnvelopeHandler struct {
	outbox      repositories.OutboxRepository
	publisher   rabbitmq.Publisher
	contentType string
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
	logger      *slog.Logger
}

// NewEnvelopeHandler builds an EnvelopeHandler.
func NewEnvelopeHandler(outbox repositories.OutboxRepository, publisher rabbitmq.Publisher, c codec.Codec, hub *ws.Hub, audit *telemetry.AuditEmitter, logger *slog.Logger) *EnvelopeHandler {
	return &EnvelopeHandler{
		outbox:      outbox,
		publisher:   publisher,
		contentType: c.ContentType(),
		hub:         hub,
		audit:       audit,
		logger:      logger,
	}
}

type envelopeRequest struct {
	RoutingKey string         `json:"routing_key"`
	Headers    map[string]any `json:"headers"`
	Messages   []any          `json:"messages"`
}

// PublishEnvelope handles POST /envelopes.
func (h *EnvelopeHandler) PublishEnvelope(c *gin.Context) {
	var req envelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RoutingKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "routing_key is required"})
		return
	}

	requestID := requestIDFromContext(c)
	env := buildEnvelope(req, requestID, observability.TraceHeaders(c.Request.Context(), requestID))
	messageID, _ := env.Header(messages.HeaderMessageID)
	label := env.Label()

	rec, err := h.storeEnvelope(c, req.RoutingKey, env)
	if err != nil {
		h.logger.Error("outbox store failed", "message_id", messageID, "label", label, "error", err)
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store envelope"})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), req.RoutingKey, env); err != nil {
		if markErr := h.outbox.MarkFailed(c.Request.Context(), rec.ID, err.Error()); markErr != nil {
			h.logger.Error("outbox mark failed", "message_id", messageID, "error", markErr)
		}
		h.emitAudit(c, "ERROR", "publish failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to publish envelope", "message_id": messageID})
		return
	}

	if err := h.outbox.MarkPublished(c.Request.Context(), rec.ID); err != nil {
		h.logger.Error("outbox mark published failed", "message_id", messageID, "error", err)
	}

	h.hub.BroadcastEnvelope(models.EnvelopeEvent{
		Type:       "published",
		MessageID:  messageID,
		RoutingKey: req.RoutingKey,
		Label:      label,
	})
	h.emitAudit(c, "INFO", "Envelope published: "+label)
	c.JSON(http.StatusCreated, gin.H{"message_id": messageID, "label": label, "status": models.OutboxStatusPublished})
}

// PreviewLabel handles POST /envelopes/label. Nothing is stored or published.
func (h *EnvelopeHandler) PreviewLabel(c *gin.Context) {
	var req envelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"label": messages.Label(req.Messages)})
}

// ListEnvelopes handles GET /envelopes.
func (h *EnvelopeHandler) ListEnvelopes(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	recs, err := h.outbox.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load envelopes"})
		return
	}
	if recs == nil {
		recs = []models.OutboxRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"envelopes": recs})
}

// GetEnvelope handles GET /envelopes/:message_id.
func (h *EnvelopeHandler) GetEnvelope(c *gin.Context) {
	rec, err := h.outbox.GetByMessageID(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrEnvelopeNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "envelope not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// buildEnvelope copies the request into an envelope and fills in the ids the
// transport relies on.
func buildEnvelope(req envelopeRequest, requestID string, traceHeaders map[string]string) *messages.Envelope {
	env := messages.New(req.Messages...)
	for key, value := range req.Headers {
		env.Headers[key] = value
	}
	for key, value := range traceHeaders {
		if _, ok := env.Headers[key]; !ok {
			env.Headers[key] = value
		}
	}
	if id, ok := env.Header(messages.HeaderMessageID); !ok || id == "" {
		env.SetHeader(messages.HeaderMessageID, uuid.NewString())
	}
	if corr, ok := env.Header(messages.HeaderCorrelationID); (!ok || corr == "") && requestID != "" {
		env.SetHeader(messages.HeaderCorrelationID, requestID)
	}
	env.SetHeader(messages.HeaderRoutingKey, req.RoutingKey)
	env.SetHeader(messages.HeaderSentTime, time.Now().UTC().Format(time.RFC3339Nano))
	return env
}

func (h *EnvelopeHandler) storeEnvelope(c *gin.Context, routingKey string, env *messages.Envelope) (models.OutboxRecord, error) {
	headers, err := json.Marshal(env.Headers)
	if err != nil {
		return models.OutboxRecord{}, err
	}
	payloads, err := codec.JSON{}.Encode(env.Messages)
	if err != nil {
		return models.OutboxRecord{}, err
	}

	messageID, _ := env.Header(messages.HeaderMessageID)
	return h.outbox.Create(c.Request.Context(), models.OutboxRecord{
		MessageID:   messageID,
		RoutingKey:  routingKey,
		Label:       env.Label(),
		ContentType: h.contentType,
		Headers:     headers,
		Payloads:    payloads,
	})
}

func (h *EnvelopeHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c))
}
