package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/auth"
	"qrstudio/internal/billing"
	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// APIKeyStore defines the persistence contract for API key management.
type APIKeyStore interface {
	List(ctx context.Context, userID string) ([]*types.APIKey, error)
	Create(ctx context.Context, k *types.APIKey) error
	Revoke(ctx context.Context, id, userID string) error
}

// CreateAPIKeyRequest is the request body for POST /v1/api-keys.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// APIKeySecretResponse is returned once, at creation. The plaintext secret
// is never stored and cannot be retrieved again.
type APIKeySecretResponse struct {
	*types.APIKey
	Secret string `json:"secret"`
}

// APIKeyHandler implements the programmatic credential endpoints. Creating
// a key is double-gated: plans without API access are blocked outright, and
// plans with access are held to a per-tier key count cap.
type APIKeyHandler struct {
	store     APIKeyStore
	limits    LimitChecker
	hasher    auth.PasswordHasher
	validator *core.Validator
	logger    *slog.Logger
}

// NewAPIKeyHandler creates an APIKeyHandler with the provided dependencies.
func NewAPIKeyHandler(
	store APIKeyStore,
	limits LimitChecker,
	hasher auth.PasswordHasher,
	validator *core.Validator,
	logger *slog.Logger,
) *APIKeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyHandler{
		store:     store,
		limits:    limits,
		hasher:    hasher,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts API key routes onto the provided router.
func (h *APIKeyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Revoke)
}

// List handles GET /v1/api-keys. Secrets are never included; clients see
// only the display prefix.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	keys, err := h.store.List(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if keys == nil {
		keys = []*types.APIKey{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"apiKeys": keys})
}

// Create handles POST /v1/api-keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req CreateAPIKeyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceAPIKeys, 1)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Allowed {
		core.Error(w, r, billing.QuotaError(
			types.ErrCodeAPIKeyLimitExceeded,
			"API key limit reached for your plan.",
			decision,
		))
		return
	}

	secret, prefix, secretHash, err := auth.GenerateAPIKey(h.hasher)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	key := &types.APIKey{
		ID:         "key_" + uuid.New().String(),
		UserID:     actor.UserID,
		Name:       req.Name,
		Prefix:     prefix,
		SecretHash: secretHash,
	}
	if err := h.store.Create(r.Context(), key); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("api key created", "key_id", key.ID, "user_id", actor.UserID)
	core.JSON(w, r, http.StatusCreated, APIKeySecretResponse{APIKey: key, Secret: secret})
}

// Revoke handles DELETE /v1/api-keys/{id}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	keyID := chi.URLParam(r, "id")
	if err := h.store.Revoke(r.Context(), keyID, actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.Info("api key revoked", "key_id", keyID, "user_id", actor.UserID)
	w.WriteHeader(http.StatusNoContent)
}
