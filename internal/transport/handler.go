// Package transport serves the published vendor summary and the run log
// over a read-only HTTP surface for notebook, dashboard, and report
// consumers.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "vendorperf/internal/errors"
	"vendorperf/pkg/contracts/domain"
)

// SummaryService is the read surface over the published summary.
type SummaryService interface {
	Summaries(ctx context.Context) ([]domain.VendorSummary, error)
	SummariesByVendor(ctx context.Context, vendorNumber int64) ([]domain.VendorSummary, error)
}

// RunService is the read surface over the run log.
type RunService interface {
	Runs(ctx context.Context, limit int) ([]domain.RunReport, error)
}

// Handler exposes the query endpoints.
type Handler struct {
	summaries SummaryService
	runs      RunService
	logger    *slog.Logger
}

// NewHandler creates the query handler.
func NewHandler(summaries SummaryService, runs RunService, logger *slog.Logger) *Handler {
	return &Handler{
		summaries: summaries,
		runs:      runs,
		logger:    logger.With(slog.String("component", "query_handler")),
	}
}

// Routes returns the query routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summary", h.GetSummary)
	r.Get("/summary/{vendor}", h.GetVendorSummary)
	r.Get("/runs", h.GetRuns)

	return r
}

// GetSummary handles GET /api/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.summaries.Summaries(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"summaries": rows,
		"count":     len(rows),
	})
}

// GetVendorSummary handles GET /api/summary/{vendor}.
func (h *Handler) GetVendorSummary(w http.ResponseWriter, r *http.Request) {
	vendor, err := strconv.ParseInt(chi.URLParam(r, "vendor"), 10, 64)
	if err != nil {
		render.Render(w, r, apierrors.New(http.StatusBadRequest,
			"INVALID_PARAMETER", "vendor number must be an integer"))
		return
	}

	rows, err := h.summaries.SummariesByVendor(r.Context(), vendor)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"vendor_number": vendor,
		"summaries":     rows,
		"count":         len(rows),
	})
}

// GetRuns handles GET /api/runs.
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			render.Render(w, r, apierrors.New(http.StatusBadRequest,
				"INVALID_PARAMETER", "limit must be a non-negative integer"))
			return
		}
		limit = v
	}

	runs, err := h.runs.Runs(r.Context(), limit)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "query request failed",
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	render.Render(w, r, apierrors.ToAPIError(err))
}
