package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/billing"
	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// TeamStore defines the persistence contract for team member operations.
type TeamStore interface {
	List(ctx context.Context, ownerID string) ([]*types.TeamMember, error)
	Create(ctx context.Context, m *types.TeamMember) error
	Delete(ctx context.Context, id, ownerID string) error
}

// InviteTeamMemberRequest is the request body for POST /v1/team.
type InviteTeamMemberRequest struct {
	Email string         `json:"email" validate:"required,email"`
	Role  types.TeamRole `json:"role" validate:"required,oneof=editor viewer"`
}

// TeamHandler implements the team seat endpoints. Invites count against the
// plan's teamMembers quota immediately, before the member accepts.
type TeamHandler struct {
	store     TeamStore
	limits    LimitChecker
	validator *core.Validator
	logger    *slog.Logger
}

// NewTeamHandler creates a TeamHandler with the provided dependencies.
func NewTeamHandler(store TeamStore, limits LimitChecker, validator *core.Validator, logger *slog.Logger) *TeamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamHandler{store: store, limits: limits, validator: validator, logger: logger}
}

// RegisterRoutes mounts team routes onto the provided router.
func (h *TeamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Invite)
	r.Delete("/{id}", h.Remove)
}

// List handles GET /v1/team.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	members, err := h.store.List(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if members == nil {
		members = []*types.TeamMember{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"members": members})
}

// Invite handles POST /v1/team.
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req InviteTeamMemberRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceTeamMembers, 1)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Allowed {
		core.Error(w, r, billing.QuotaError(
			types.ErrCodeTeamLimitExceeded,
			"Team member limit reached for your plan.",
			decision,
		))
		return
	}

	member := &types.TeamMember{
		ID:      "tm_" + uuid.New().String(),
		OwnerID: actor.UserID,
		Email:   req.Email,
		Role:    req.Role,
		Status:  types.TeamMemberInvited,
	}
	if err := h.store.Create(r.Context(), member); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, member)
}

// Remove handles DELETE /v1/team/{id}.
func (h *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
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
