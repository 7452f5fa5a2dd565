package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

// GetDeliveries returns paginated delivery records
// @Summary List deliveries
// @Description Returns paginated delivery records, newest first, with optional filtering
// @Tags deliveries
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 50, max: 100)"
// @Param app_id query string false "Filter by app ID"
// @Param outcome query string false "Filter by outcome (accepted/rejected)"
// @Success 200 {object} map[string]interface{} "Paginated deliveries"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /api/deliveries [get]
func (h *Handlers) GetDeliveries(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsedPage, err := strconv.Atoi(p); err == nil && parsedPage > 0 {
			page = parsedPage
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsedLimit, err := strconv.Atoi(l); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	offset := (page - 1) * limit
	filters := storage.DeliveryFilters{
		AppID:   r.URL.Query().Get("app_id"),
		Outcome: r.URL.Query().Get("outcome"),
	}

	deliveries, total, err := h.storage.ListDeliveries(filters, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list deliveries", err)
		http.Error(w, "Failed to get deliveries", http.StatusInternalServerError)
		return
	}

	responseDeliveries := make([]map[string]interface{}, len(deliveries))
	for i, delivery := range deliveries {
		responseDeliveries[i] = map[string]interface{}{
			"id":            delivery.ID,
			"message_id":    delivery.MessageID,
			"app_id":        delivery.AppID,
			"outcome":       delivery.Outcome,
			"reject_reason": delivery.RejectReason,
			"source_ip":     delivery.SourceIP,
			"forwarded":     delivery.Forwarded,
			"received_at":   delivery.ReceivedAt.Format(time.RFC3339),
		}
	}

	response := map[string]interface{}{
		"deliveries": responseDeliveries,
		"pagination": createPaginationResponse(page, limit, total),
	}

	h.sendJSONResponse(w, response)
}

// GetDelivery returns a single delivery by ID
// @Summary Get delivery by ID
// @Description Returns one delivery record including its stored payload
// @Tags deliveries
// @Produce json
// @Security BearerAuth
// @Param id path string true "Delivery ID"
// @Success 200 {object} map[string]interface{} "Delivery details"
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "Delivery not found"
// @Router /api/deliveries/{id} [get]
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if _, err := h.getUserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deliveryID := mux.Vars(r)["id"]
	if deliveryID == "" {
		http.Error(w, "Delivery ID required", http.StatusBadRequest)
		return
	}

	delivery, err := h.storage.GetDelivery(deliveryID)
	if err != nil {
		h.logger.Error("Failed to get delivery", err)
		http.Error(w, "Delivery not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"id":            delivery.ID,
		"message_id":    delivery.MessageID,
		"app_id":        delivery.AppID,
		"outcome":       delivery.Outcome,
		"reject_reason": delivery.RejectReason,
		"source_ip":     delivery.SourceIP,
		"forwarded":     delivery.Forwarded,
		"received_at":   delivery.ReceivedAt.Format(time.RFC3339),
	}

	// The storage layer already decrypted the payload; accepted deliveries
	// carry the verified JSON body, rejections carry nothing.
	if len(delivery.Payload) > 0 {
		if json.Valid(delivery.Payload) {
			response["payload"] = json.RawMessage(delivery.Payload)
		} else {
			response["payload"] = string(delivery.Payload)
		}
	}

	h.sendJSONResponse(w, response)
}

// GetStats returns delivery statistics
// @Summary Get delivery statistics
// @Description Returns overall delivery counts, the last-24h volume, and a rejection reason breakdown
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} storage.Stats "Delivery statistics"
// @Failure 500 {string} string "Failed to get statistics"
// @Router /api/stats [get]
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.GetStats()
	if err != nil {
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	h.sendJSONResponse(w, stats)
}

func createPaginationResponse(page, limit, total int) map[string]interface{} {
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	return map[string]interface{}{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages,
		"has_next":    page < totalPages,
		"has_prev":    page > 1,
	}
}
