package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qrstudio/internal/billing"
	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// UsageSnapshotter aggregates the current quota decision for every gated
// resource kind.
type UsageSnapshotter interface {
	Snapshot(ctx context.Context, userID string) (types.PlanTier, map[types.ResourceType]billing.LimitDecision, error)
}

// ResourceUsage is one resource entry in the usage status response.
type ResourceUsage struct {
	Current    int                  `json:"current"`
	Limit      int                  `json:"limit"`
	Allowed    bool                 `json:"allowed"`
	Percentage float64              `json:"percentage"`
	Warning    *billing.UsageWarning `json:"warning,omitempty"`
}

// UsageResponse is the envelope for GET /v1/usage.
type UsageResponse struct {
	Plan  types.PlanTier                       `json:"plan"`
	Usage map[types.ResourceType]ResourceUsage `json:"usage"`
}

// UsageHandler serves the usage status aggregator consumed by settings and
// upgrade-prompt UI.
type UsageHandler struct {
	usage  UsageSnapshotter
	logger *slog.Logger
}

// NewUsageHandler creates a UsageHandler with the provided dependencies.
func NewUsageHandler(usage UsageSnapshotter, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{usage: usage, logger: logger}
}

// RegisterRoutes mounts the usage route onto the provided router.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

// Get handles GET /v1/usage. Each resource carries its decision plus a
// threshold warning when usage crosses 80 percent.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	plan, decisions, err := h.usage.Snapshot(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	usage := make(map[types.ResourceType]ResourceUsage, len(decisions))
	for resource, d := range decisions {
		entry := ResourceUsage{
			Current:    d.Current,
			Limit:      d.Limit,
			Allowed:    d.Allowed,
			Percentage: d.Percentage,
		}
		if warning := billing.ClassifyUsage(d.Percentage); warning.Show {
			entry.Warning = &warning
		}
		usage[resource] = entry
	}

	core.JSON(w, r, http.StatusOK, UsageResponse{Plan: plan, Usage: usage})
}
