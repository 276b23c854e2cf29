package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/faculty-scheduler/internal/chain"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/service"
)

// submitJobRequest is the body of POST /api/jobs
type submitJobRequest struct {
	Owner        string `json:"owner"`
	Faculty      string `json:"faculty"`
	CPU          int    `json:"cpu"`
	GPU          int    `json:"gpu"`
	Memory       int    `json:"memory"`
	ScheduleDate string `json:"schedule_date"`
	Directive    string `json:"directive"`
}

// SubmitJob handles POST /api/jobs.
// Rejected and unschedulable jobs are still created and returned with 201.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var body submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Faculty == "" {
		h.respondError(w, http.StatusBadRequest, "faculty is required")
		return
	}

	directive, ok := chain.ParseDirective(body.Directive)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "directive must be evaluate or reject")
		return
	}

	req := service.SubmitRequest{
		Requester: identityFrom(r.Context()),
		Owner:     body.Owner,
		Faculty:   body.Faculty,
		Demand:    model.Resources{CPU: body.CPU, GPU: body.GPU, Memory: body.Memory},
		Directive: directive,
	}
	if body.ScheduleDate != "" {
		day, err := model.ParseDay(body.ScheduleDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "schedule_date must be YYYY-MM-DD")
			return
		}
		req.ScheduleDate = &day
	}

	result, err := h.jobs.SubmitJob(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "failed to submit job")
		return
	}

	h.respondJSON(w, http.StatusCreated, result)
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context(), identityFrom(r.Context()), r.URL.Query().Get("user"))
	if err != nil {
		h.respondServiceError(w, err, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// GetJobStatus handles GET /api/jobs/{id}/status
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.jobs.GetJobStatus(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "failed to get job status")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]model.JobStatus{"status": status})
}

// DeleteJob handles DELETE /api/jobs/{id}
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.DeleteJob(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context())); err != nil {
		h.respondServiceError(w, err, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAllJobs handles GET /api/admin/jobs
func (h *Handler) ListAllJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListAllJobs(r.Context(), identityFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, jobs)
}

// ListScheduledJobs handles GET /api/admin/jobs/scheduled
func (h *Handler) ListScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListScheduledJobs(r.Context(), identityFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, err, "failed to list scheduled jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, jobs)
}
