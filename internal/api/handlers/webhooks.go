package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// WebhookSubscriptionStore persists webhook subscriptions.
type WebhookSubscriptionStore interface {
	Create(ctx context.Context, sub *types.WebhookSubscription) error
	GetByID(ctx context.Context, id, userID string) (*types.WebhookSubscription, error)
	List(ctx context.Context, userID string) ([]*types.WebhookSubscription, error)
	Update(ctx context.Context, sub *types.WebhookSubscription) error
	Delete(ctx context.Context, id, userID string) error
}

// CreateWebhookRequest is the request body for POST /v1/webhooks.
type CreateWebhookRequest struct {
	URL    string            `json:"url" validate:"required,url"`
	Events []types.EventType `json:"events" validate:"required,min=1,dive,eventtype"`
}

// UpdateWebhookRequest is the request body for PUT /v1/webhooks/{id}. The
// signing secret is immutable; rotate by deleting and recreating.
type UpdateWebhookRequest struct {
	URL    *string           `json:"url,omitempty" validate:"omitempty,url"`
	Events []types.EventType `json:"events,omitempty" validate:"omitempty,min=1,dive,eventtype"`
	Active *bool             `json:"active,omitempty"`
}

// WebhookSecretResponse carries the signing secret alongside the
// subscription. It is only ever returned from Create.
type WebhookSecretResponse struct {
	*types.WebhookSubscription
	Secret string `json:"secret"`
}

// WebhooksHandler manages webhook subscription CRUD.
type WebhooksHandler struct {
	store     WebhookSubscriptionStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewWebhooksHandler creates a WebhooksHandler with the provided dependencies.
func NewWebhooksHandler(store WebhookSubscriptionStore, validator *core.Validator, logger *slog.Logger) *WebhooksHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhooksHandler{store: store, validator: validator, logger: logger}
}

// RegisterRoutes mounts the webhook routes onto the provided router.
func (h *WebhooksHandler) RegisterRoutes(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /v1/webhooks. The signing secret is generated
// server-side and returned exactly once in the response body.
func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req CreateWebhookRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "Failed to generate webhook secret", err))
		return
	}

	sub := &types.WebhookSubscription{
		ID:        "wh_" + uuid.New().String(),
		UserID:    actor.UserID,
		URL:       req.URL,
		Secret:    secret,
		Events:    req.Events,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Create(r.Context(), sub); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("webhook subscription created", "webhook_id", sub.ID, "user_id", actor.UserID)
	core.JSON(w, r, http.StatusCreated, WebhookSecretResponse{WebhookSubscription: sub, Secret: secret})
}

// List handles GET /v1/webhooks. Secrets are never included.
func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	subs, err := h.store.List(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if subs == nil {
		subs = []*types.WebhookSubscription{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"webhooks": subs})
}

// Get handles GET /v1/webhooks/{id}.
func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	sub, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

// Update handles PUT /v1/webhooks/{id}.
func (h *WebhooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req UpdateWebhookRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	sub, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.URL != nil {
		sub.URL = *req.URL
	}
	if req.Events != nil {
		sub.Events = req.Events
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}

	if err := h.store.Update(r.Context(), sub); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

// Delete handles DELETE /v1/webhooks/{id}.
func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("webhook subscription deleted", "webhook_id", chi.URLParam(r, "id"), "user_id", actor.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// generateWebhookSecret returns a new random signing secret.
func generateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
