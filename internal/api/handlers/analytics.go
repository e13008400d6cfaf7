package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"qrstudio/internal/core"
	"qrstudio/internal/db"
	"qrstudio/internal/types"
)

// defaultAnalyticsWindowDays bounds overview queries when the caller does
// not pass an explicit range.
const defaultAnalyticsWindowDays = 30

// ScanAnalytics aggregates and streams scan events for a user.
type ScanAnalytics interface {
	GetOverview(ctx context.Context, userID string, since time.Time) (*db.Overview, error)
	ForEachScan(ctx context.Context, userID string, since time.Time, fn func(*types.Scan) error) error
}

// AnalyticsHandler serves the scan analytics dashboard and raw export.
type AnalyticsHandler struct {
	scans  ScanAnalytics
	logger *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler with the provided
// dependencies.
func NewAnalyticsHandler(scans ScanAnalytics, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{scans: scans, logger: logger}
}

// RegisterRoutes mounts analytics routes onto the provided router.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/overview", h.Overview)
	r.Get("/export", h.Export)
}

// parseWindow reads the optional ?days= query parameter.
func parseWindow(r *http.Request) (time.Time, error) {
	days := defaultAnalyticsWindowDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 || parsed > 365 {
			return time.Time{}, types.NewAppError(types.ErrCodeValidation, "days must be a number between 1 and 365", nil)
		}
		days = parsed
	}
	return time.Now().AddDate(0, 0, -days), nil
}

// Overview handles GET /v1/analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	since, err := parseWindow(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	overview, err := h.scans.GetOverview(r.Context(), actor.UserID, since)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, overview)
}

// Export handles GET /v1/analytics/export. Scan rows stream out as
// gzip-compressed NDJSON, one event per line, without buffering the full
// result set in memory.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	since, err := parseWindow(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="scans.ndjson.gz"`)
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)

	err = h.scans.ForEachScan(r.Context(), actor.UserID, since, func(s *types.Scan) error {
		return enc.Encode(s)
	})
	if err != nil {
		// Headers are already out; all we can do is cut the stream short.
		h.logger.Error("scan export aborted",
			"user_id", actor.UserID,
			"error", err,
		)
	}
	if err := gz.Close(); err != nil {
		h.logger.Error("failed to flush export stream", "user_id", actor.UserID, "error", err)
	}
}
