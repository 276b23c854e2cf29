package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/service"
)

// Identity headers set by the authenticating gateway
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderFaculties = "X-User-Faculties"
)

// Status is reported by GET /api/status
type Status struct {
	Storage    string   `json:"storage"`
	Validators []string `json:"validators"`
	Inventory  bool     `json:"inventory"`
}

// Handler holds the HTTP handlers and dependencies
type Handler struct {
	jobs     service.AdmissionService
	nodes    service.NodeService
	status   Status
	logger   *slog.Logger
	basePath string
}

// NewHandler creates a new HTTP handler
func NewHandler(jobs service.AdmissionService, nodes service.NodeService, status Status, basePath string, logger *slog.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		nodes:    nodes,
		status:   status,
		logger:   logger,
		basePath: basePath,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(identityMiddleware)

	// If base path is configured, mount routes on that path
	if h.basePath != "" {
		r.Mount(h.basePath, h.createRoutes())
	} else {
		r.Mount("/", h.createRoutes())
	}

	return r
}

// createRoutes creates the API routes
func (h *Handler) createRoutes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		// Job routes
		r.Post("/jobs", h.SubmitJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Get("/jobs/{id}/status", h.GetJobStatus)
		r.Delete("/jobs/{id}", h.DeleteJob)

		// Admin routes
		r.Get("/admin/jobs", h.ListAllJobs)
		r.Get("/admin/jobs/scheduled", h.ListScheduledJobs)

		// Node routes
		r.Get("/nodes", h.ListNodes)
		r.Put("/nodes/{id}", h.SaveNode)
		r.Get("/nodes/{id}/capacity", h.GetNodeCapacity)
		r.Get("/faculties/{faculty}/usage", h.GetFacultyUsage)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

// identityMiddleware reads the requester identity from gateway headers
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := model.Identity{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))),
		}
		for _, faculty := range strings.Split(r.Header.Get(HeaderFaculties), ",") {
			if faculty = strings.TrimSpace(faculty); faculty != "" {
				identity.Faculties = append(identity.Faculties, faculty)
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

// identityFrom returns the requester identity stored by identityMiddleware
func identityFrom(ctx context.Context) model.Identity {
	identity, _ := ctx.Value(identityKey{}).(model.Identity)
	return identity
}

// GetStatus handles GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.status)
}

// errorResponse represents an error response
type errorResponse struct {
	Error string     `json:"error"`
	Kind  model.Kind `json:"kind,omitempty"`
	Code  string     `json:"code,omitempty"`
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// respondError writes an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, errorResponse{Error: message})
}

// respondServiceError maps a service error to a status code and writes it
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, message string) {
	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		reason := domainErr.Reason
		h.respondJSON(w, statusFor(reason.Kind), errorResponse{
			Error: reason.Message,
			Kind:  reason.Kind,
			Code:  reason.Code,
		})
		return
	}

	h.logger.Error(message,
		slog.String("error", err.Error()),
	)
	h.respondError(w, http.StatusInternalServerError, message)
}

// statusFor maps an error kind to an HTTP status code
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindIdentityMismatch, model.KindUnauthorized:
		return http.StatusForbidden
	case model.KindInvalidDemand:
		return http.StatusBadRequest
	case model.KindExternalDependencyFailure:
		return http.StatusBadGateway
	case model.KindInsufficientCapacity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
