package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// CampaignStore defines the persistence contract for campaign operations.
type CampaignStore interface {
	Create(ctx context.Context, c *types.Campaign) error
	GetByID(ctx context.Context, id, userID string) (*types.Campaign, error)
	List(ctx context.Context, userID string) ([]*types.Campaign, error)
	Update(ctx context.Context, c *types.Campaign) error
	Delete(ctx context.Context, id, userID string) error
}

// CampaignRequest is the request body for creating and updating campaigns.
type CampaignRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description" validate:"omitempty,max=1000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Tags        []string   `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// CampaignHandler implements the campaign grouping endpoints.
type CampaignHandler struct {
	store     CampaignStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewCampaignHandler creates a CampaignHandler with the provided dependencies.
func NewCampaignHandler(store CampaignStore, validator *core.Validator, logger *slog.Logger) *CampaignHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignHandler{store: store, validator: validator, logger: logger}
}

// RegisterRoutes mounts campaign routes onto the provided router.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /v1/campaigns.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	campaigns, err := h.store.List(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []*types.Campaign{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"campaigns": campaigns})
}

// Create handles POST /v1/campaigns.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req CampaignRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "endDate must not precede startDate", nil))
		return
	}

	campaign := &types.Campaign{
		ID:          "cmp_" + uuid.New().String(),
		UserID:      actor.UserID,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Tags:        req.Tags,
	}
	if err := h.store.Create(r.Context(), campaign); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, campaign)
}

// Get handles GET /v1/campaigns/{id}.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	campaign, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, campaign)
}

// Update handles PATCH /v1/campaigns/{id}.
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req CampaignRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	campaign, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	campaign.Name = req.Name
	campaign.Description = req.Description
	campaign.StartDate = req.StartDate
	campaign.EndDate = req.EndDate
	campaign.Tags = req.Tags

	if err := h.store.Update(r.Context(), campaign); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, campaign)
}

// Delete handles DELETE /v1/campaigns/{id}. QR codes in the campaign are
// detached, not deleted.
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
