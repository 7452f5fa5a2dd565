package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/forwarder"
	"github.com/quiltdata/benchling-webhook-sub011/internal/signature"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

// forwardTimeout bounds the background publish of one verified delivery.
const forwardTimeout = 30 * time.Second

// HandleWebhook authenticates an incoming webhook delivery
// @Summary Receive webhook
// @Description Verifies the delivery's signature against the app's published keys, records the outcome, and forwards verified events downstream
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook-id header string true "Delivery message ID"
// @Param webhook-timestamp header string true "Unix seconds the delivery was signed"
// @Param webhook-signature header string true "Space-delimited signature candidates"
// @Success 200 {object} map[string]string "Delivery accepted"
// @Failure 401 {object} map[string]string "Delivery rejected"
// @Router /webhook [post]
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	req := &signature.Request{
		Headers:  flattenHeaders(r.Header),
		Body:     base64.StdEncoding.EncodeToString(body),
		SourceIP: h.clientIP(r),
	}

	result, err := h.verifier.Verify(r.Context(), req)
	if err != nil {
		h.recordRejection(logger, req, err)
		h.respondUnauthorized(w)
		return
	}

	delivery := &storage.Delivery{
		MessageID:  result.MessageID,
		AppID:      result.AppID,
		Outcome:    storage.OutcomeAccepted,
		SourceIP:   req.SourceIP,
		Payload:    result.RawBody,
		ReceivedAt: time.Now().UTC(),
	}

	if err := h.storage.CreateDelivery(delivery); err != nil {
		// The delivery is authenticated; a recording failure must not make
		// the sender re-deliver.
		logger.Error("Failed to record delivery", err,
			logging.Field{Key: "message_id", Value: result.MessageID})
	}

	if h.forwarder != nil {
		go h.forwardDelivery(delivery, result.RawBody)
	}

	h.sendJSONResponse(w, map[string]string{"status": "ok"})
}

// recordRejection stores the rejected delivery with the reason the verifier
// produced. The message ID is taken from the headers when present.
func (h *Handlers) recordRejection(logger logging.Logger, req *signature.Request, verr error) {
	headers := signature.NormalizeHeaders(req.Headers)

	delivery := &storage.Delivery{
		MessageID:    headers[signature.HeaderID],
		Outcome:      storage.OutcomeRejected,
		RejectReason: string(signature.ReasonOf(verr)),
		SourceIP:     req.SourceIP,
		ReceivedAt:   time.Now().UTC(),
	}

	if err := h.storage.CreateDelivery(delivery); err != nil {
		logger.Error("Failed to record rejected delivery", err)
	}
}

// respondUnauthorized answers every rejected delivery identically. The
// rejection reason stays in logs and storage so callers cannot probe which
// check failed.
func (h *Handlers) respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message": "Unauthorized"}`))
}

func (h *Handlers) forwardDelivery(delivery *storage.Delivery, rawBody []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	event := &forwarder.Event{
		MessageID:  delivery.MessageID,
		AppID:      delivery.AppID,
		Body:       rawBody,
		SourceIP:   delivery.SourceIP,
		ReceivedAt: delivery.ReceivedAt,
	}

	if err := h.forwarder.Publish(ctx, event); err != nil {
		h.logger.Error("Failed to forward delivery", err,
			logging.Field{Key: "message_id", Value: delivery.MessageID},
			logging.Field{Key: "app_id", Value: delivery.AppID})
		return
	}

	if delivery.ID == "" {
		return
	}
	if err := h.storage.MarkDeliveryForwarded(delivery.ID); err != nil {
		h.logger.Error("Failed to mark delivery forwarded", err,
			logging.Field{Key: "delivery_id", Value: delivery.ID})
	}
}

// flattenHeaders keeps the first value per header name, which is the one
// the sender signed.
func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}

// HealthCheck returns the health status of the application
// @Summary Health check
// @Description Returns the health status of the application and its dependencies
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	}

	// Check forwarder health if configured
	if h.forwarder != nil {
		if err := h.forwarder.Health(); err != nil {
			status["forwarder_status"] = "unhealthy"
			status["forwarder_error"] = err.Error()
		} else {
			status["forwarder_status"] = "healthy"
		}
	} else {
		status["forwarder_status"] = "not_configured"
	}

	// Check redis health if configured
	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			status["redis_status"] = "unhealthy"
			status["redis_error"] = err.Error()
		} else {
			status["redis_status"] = "healthy"
		}
	} else {
		status["redis_status"] = "not_configured"
	}

	// Check storage health
	if err := h.storage.Health(); err != nil {
		status["storage_status"] = "unhealthy"
		status["storage_error"] = err.Error()
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		status["storage_status"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
