package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lisavoice/orderstatus/internal/calls"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

const defaultCallListLimit = 50

// AdminCallsHandler exposes the call audit trail as a JSON API.
type AdminCallsHandler struct {
	store  *calls.Store
	logger *logging.Logger
}

// NewAdminCallsHandler builds the audit API handler.
func NewAdminCallsHandler(store *calls.Store, logger *logging.Logger) *AdminCallsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCallsHandler{store: store, logger: logger}
}

// Routes mounts the audit endpoints on a chi router.
func (h *AdminCallsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/calls", h.ListCalls)
	r.Get("/calls/stats", h.Stats)
	r.Get("/calls/{callID}", h.CallDetail)
	r.Patch("/calls/{callID}/status", h.UpdateStatus)
	r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
	return r
}

// ListCalls returns calls matching the query filters, newest first.
func (h *AdminCallsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := calls.ListFilter{
		Status:   calls.Status(q.Get("status")),
		Language: q.Get("language"),
		Phone:    q.Get("phone"),
		Limit:    defaultCallListLimit,
	}
	if filter.Status != "" && !calls.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		filter.Offset = offset
	}

	records, err := h.store.ListCalls(r.Context(), filter)
	if err != nil {
		h.logger.Error("list calls failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list calls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calls": records,
		"count": len(records),
	})
}

// Stats returns aggregate call counts by status.
func (h *AdminCallsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("call stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CallDetail returns one call with its full step log and order records.
func (h *AdminCallsHandler) CallDetail(w http.ResponseWriter, r *http.Request) {
	callID, err := uuid.Parse(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	call, err := h.store.GetCall(r.Context(), callID)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		h.logger.Error("load call failed", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load call")
		return
	}

	steps, err := h.store.ListSteps(r.Context(), callID)
	if err != nil {
		h.logger.Error("load steps failed", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load call")
		return
	}
	orders, err := h.store.ListOrders(r.Context(), callID)
	if err != nil {
		h.logger.Error("load orders failed", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load call")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"call":   call,
		"steps":  steps,
		"orders": orders,
	})
}

// UpdateStatus sets a call's lifecycle status, e.g. marking a problem call
// handled after a human follow-up.
func (h *AdminCallsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	callID, err := uuid.Parse(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	var req struct {
		Status calls.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !calls.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := h.store.UpdateCallStatus(r.Context(), callID, req.Status); err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		h.logger.Error("update call status failed", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id": callID,
		"status":  req.Status,
	})
}

// UpdateOrderStatus amends a stored order-lookup outcome.
func (h *AdminCallsHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := h.store.UpdateOrderStatus(r.Context(), orderID, req.Status, req.Notes); err != nil {
		if errors.Is(err, calls.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order record not found")
			return
		}
		h.logger.Error("update order status failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"status":   req.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
