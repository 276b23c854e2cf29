package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// ListNodes handles GET /api/nodes
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.nodes.ListNodes(r.Context(), r.URL.Query().Get("faculty"))
	if err != nil {
		h.respondServiceError(w, err, "failed to list nodes")
		return
	}

	h.respondJSON(w, http.StatusOK, nodes)
}

// SaveNode handles PUT /api/nodes/{id}
func (h *Handler) SaveNode(w http.ResponseWriter, r *http.Request) {
	var node model.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	node.ID = chi.URLParam(r, "id")

	if err := h.nodes.SaveNode(r.Context(), identityFrom(r.Context()), &node); err != nil {
		h.respondServiceError(w, err, "failed to save node")
		return
	}

	h.respondJSON(w, http.StatusOK, node)
}

// GetNodeCapacity handles GET /api/nodes/{id}/capacity
func (h *Handler) GetNodeCapacity(w http.ResponseWriter, r *http.Request) {
	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	capacity, err := h.nodes.NodeCapacity(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		h.respondServiceError(w, err, "failed to get node capacity")
		return
	}

	h.respondJSON(w, http.StatusOK, capacity)
}

// GetFacultyUsage handles GET /api/faculties/{faculty}/usage
func (h *Handler) GetFacultyUsage(w http.ResponseWriter, r *http.Request) {
	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	faculty := chi.URLParam(r, "faculty")
	usage, err := h.nodes.FacultyUsage(r.Context(), identityFrom(r.Context()), faculty, date)
	if err != nil {
		h.respondServiceError(w, err, "failed to get faculty usage")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"faculty": faculty,
		"date":    model.DayKey(date),
		"usage":   usage,
	})
}

// queryDate reads ?date=, defaulting to today
func (h *Handler) queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return model.Day(time.Now()), true
	}

	date, err := model.ParseDay(raw)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
