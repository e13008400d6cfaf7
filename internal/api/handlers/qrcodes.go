// Package handlers contains the HTTP handler implementations for the
// QR Studio API. Each handler declares the narrow service interfaces it
// needs and receives concrete implementations at wire-up time.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/auth"
	"qrstudio/internal/billing"
	"qrstudio/internal/core"
	"qrstudio/internal/shortcode"
	"qrstudio/internal/types"
)

// maxBulkItems caps the request size of the bulk endpoint independently of
// any plan quota.
const maxBulkItems = 10000

// QRCodeStore defines the persistence contract for QR code operations.
type QRCodeStore interface {
	Create(ctx context.Context, q *types.QRCode) error
	CreateBatch(ctx context.Context, codes []*types.QRCode) error
	GetByID(ctx context.Context, id, userID string) (*types.QRCode, error)
	List(ctx context.Context, userID string, filter QRCodeListFilter) ([]*types.QRCode, int, error)
	Update(ctx context.Context, q *types.QRCode) error
	Delete(ctx context.Context, id, userID string) error
	ShortCodeExists(ctx context.Context, code string) (bool, error)
}

// QRCodeListFilter mirrors db.QRCodeFilter so the handler layer does not
// import the db package directly.
type QRCodeListFilter struct {
	Search     string
	Type       types.QRCodeType
	CampaignID string
	Favorite   *bool
	Page       int
	Limit      int
}

// LimitChecker is the plan-quota gate applied before create operations.
type LimitChecker interface {
	CheckResourceLimit(ctx context.Context, userID string, resource types.ResourceType, amount int) (billing.LimitDecision, error)
}

// UserLookup verifies the authenticated user still resolves to a stored
// account before anything is persisted.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// ShortCodeSource produces collision-free short codes for dynamic QR codes.
type ShortCodeSource interface {
	Unique(ctx context.Context, exists shortcode.ExistsFunc) (string, error)
}

// EventSink accepts webhook events without blocking. Implementations drop
// on overflow; the handler never waits on delivery.
type EventSink interface {
	Enqueue(event types.WebhookEvent) bool
}

// CacheInvalidator drops redirect-cache entries after mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// --- Request/Response Models ---

// CreateQRCodeRequest is the request body for POST /v1/qr-codes. Design
// attributes arrive flat alongside an open design map, matching the
// dashboard's payload.
type CreateQRCodeRequest struct {
	Name        string            `json:"name" validate:"omitempty,max=100"`
	Type        types.QRCodeType  `json:"type" validate:"required,oneof=static dynamic"`
	Content     string            `json:"content" validate:"required,max=4096"`
	QRType      types.ContentType `json:"qrType" validate:"required,qrtype"`
	Size        int               `json:"size" validate:"omitempty,min=64,max=4096"`
	Foreground  string            `json:"foreground" validate:"omitempty,hexcolor"`
	Background  string            `json:"background" validate:"omitempty,hexcolor"`
	Logo        string            `json:"logo" validate:"omitempty,max=2048"`
	ErrorLevel  string            `json:"errorLevel" validate:"omitempty,oneof=L M Q H"`
	Pattern     string            `json:"pattern" validate:"omitempty,max=50"`
	Design      map[string]any    `json:"design" validate:"omitempty"`
	Destination string            `json:"destination" validate:"omitempty,url,max=2048"`
	Password    string            `json:"password" validate:"omitempty,min=4,max=128"`
	ExpiresAt   *time.Time        `json:"expiresAt"`
	CampaignID  string            `json:"campaignId" validate:"omitempty"`
	Tags        []string          `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// UpdateQRCodeRequest is the request body for PATCH /v1/qr-codes/{id}.
// Nil pointers leave the field untouched.
type UpdateQRCodeRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=100"`
	Content     *string        `json:"content" validate:"omitempty,max=4096"`
	Destination *string        `json:"destination" validate:"omitempty,url,max=2048"`
	Design      map[string]any `json:"design" validate:"omitempty"`
	Password    *string        `json:"password" validate:"omitempty,min=4,max=128"`
	ExpiresAt   *time.Time     `json:"expiresAt"`
	Favorite    *bool          `json:"favorite"`
	Tags        []string       `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	CampaignID  *string        `json:"campaignId"`
}

// BulkCreateRequest is the request body for POST /v1/qr-codes/bulk.
type BulkCreateRequest struct {
	Items []CreateQRCodeRequest `json:"items" validate:"required,min=1,dive"`
}

// QRCodeListResponse is the envelope for GET /v1/qr-codes.
type QRCodeListResponse struct {
	QRCodes    []*types.QRCode  `json:"qrCodes"`
	Pagination types.Pagination `json:"pagination"`
}

// BulkCreateResponse is the envelope for POST /v1/qr-codes/bulk.
type BulkCreateResponse struct {
	QRCodes []*types.QRCode `json:"qrCodes"`
	Count   int             `json:"count"`
}

// --- Handler ---

// QRCodeHandler implements the QR code lifecycle endpoints.
type QRCodeHandler struct {
	store     QRCodeStore
	limits    LimitChecker
	users     UserLookup
	codes     ShortCodeSource
	hasher    auth.PasswordHasher
	events    EventSink
	cache     CacheInvalidator
	validator *core.Validator
	logger    *slog.Logger
}

// NewQRCodeHandler creates a QRCodeHandler with the provided dependencies.
func NewQRCodeHandler(
	store QRCodeStore,
	limits LimitChecker,
	users UserLookup,
	codes ShortCodeSource,
	hasher auth.PasswordHasher,
	events EventSink,
	cache CacheInvalidator,
	validator *core.Validator,
	logger *slog.Logger,
) *QRCodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QRCodeHandler{
		store:     store,
		limits:    limits,
		users:     users,
		codes:     codes,
		hasher:    hasher,
		events:    events,
		cache:     cache,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts QR code routes onto the provided router.
func (h *QRCodeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.BulkCreate)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /v1/qr-codes.
func (h *QRCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	filter := QRCodeListFilter{Page: 1, Limit: 20}
	q := r.URL.Query()

	if pageStr := q.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "page must be a positive number", nil))
			return
		}
		filter.Page = page
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "limit must be a number between 1 and 100", nil))
			return
		}
		filter.Limit = limit
	}
	filter.Search = q.Get("search")
	if typeStr := q.Get("type"); typeStr != "" {
		t := types.QRCodeType(typeStr)
		if t != types.QRTypeStatic && t != types.QRTypeDynamic {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "type must be static or dynamic", nil))
			return
		}
		filter.Type = t
	}
	filter.CampaignID = q.Get("campaignId")
	if favStr := q.Get("favorite"); favStr != "" {
		fav := favStr == "true"
		filter.Favorite = &fav
	}

	codes, total, err := h.store.List(r.Context(), actor.UserID, filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if codes == nil {
		codes = []*types.QRCode{}
	}

	core.JSON(w, r, http.StatusOK, QRCodeListResponse{
		QRCodes:    codes,
		Pagination: types.NewPagination(filter.Page, filter.Limit, total),
	})
}

// Create handles POST /v1/qr-codes.
//
// Order matters: the overall quota gate runs first, then the dynamic gate
// for dynamic codes, then the user existence check, and only then the
// short-code generation and insert. The webhook event fires after the row
// is durable and never delays the response.
func (h *QRCodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req CreateQRCodeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationExpiry, "expiresAt must be in the future", nil))
		return
	}

	decision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceQRCodes, 1)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Allowed {
		core.Error(w, r, billing.QuotaError(
			types.ErrCodeLimitExceeded,
			"QR code limit reached. Upgrade your plan to create more QR codes.",
			decision,
		))
		return
	}

	if req.Type == types.QRTypeDynamic {
		dynDecision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceDynamicQRCodes, 1)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if !dynDecision.Allowed {
			core.Error(w, r, billing.QuotaError(
				types.ErrCodeDynamicLimitExceeded,
				"Dynamic QR code limit reached. Upgrade your plan to create more dynamic QR codes.",
				dynDecision,
			))
			return
		}
	}

	if _, err := h.users.GetByID(r.Context(), actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	qr, err := h.buildQRCode(r.Context(), actor.UserID, &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Create(r.Context(), qr); err != nil {
		core.Error(w, r, err)
		return
	}

	h.emit(types.EventQRCodeCreated, actor.UserID, qr)
	h.emitLimitWarning(actor.UserID, decision, 1)
	core.JSON(w, r, http.StatusCreated, qr)
}

// BulkCreate handles POST /v1/qr-codes/bulk. The batch size is compared
// directly against the plan's bulk quota; no stored count is read.
func (h *QRCodeHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req BulkCreateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationBatchEmpty, "items must not be empty", nil))
		return
	}
	if len(req.Items) > maxBulkItems {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "too many items in one batch", nil))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceBulkGeneration, len(req.Items))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Allowed {
		core.Error(w, r, billing.QuotaError(
			types.ErrCodeBulkLimitExceeded,
			"Bulk generation limit exceeded for your plan.",
			decision,
		))
		return
	}

	// The whole batch must also fit under the total QR code quota.
	totalDecision, err := h.limits.CheckResourceLimit(r.Context(), actor.UserID, types.ResourceQRCodes, len(req.Items))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !totalDecision.Allowed {
		core.Error(w, r, billing.QuotaError(
			types.ErrCodeLimitExceeded,
			"QR code limit reached. Upgrade your plan to create more QR codes.",
			totalDecision,
		))
		return
	}

	if _, err := h.users.GetByID(r.Context(), actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	codes := make([]*types.QRCode, 0, len(req.Items))
	for i := range req.Items {
		qr, buildErr := h.buildQRCode(r.Context(), actor.UserID, &req.Items[i])
		if buildErr != nil {
			core.Error(w, r, buildErr)
			return
		}
		codes = append(codes, qr)
	}

	if err := h.store.CreateBatch(r.Context(), codes); err != nil {
		core.Error(w, r, err)
		return
	}

	for _, qr := range codes {
		h.emit(types.EventQRCodeCreated, actor.UserID, qr)
	}
	h.emitLimitWarning(actor.UserID, totalDecision, len(codes))
	core.JSON(w, r, http.StatusCreated, BulkCreateResponse{QRCodes: codes, Count: len(codes)})
}

// Get handles GET /v1/qr-codes/{id}.
func (h *QRCodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	qr, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, qr)
}

// Update handles PATCH /v1/qr-codes/{id}. Type and short code are
// immutable; content edits on dynamic codes change the destination instead.
func (h *QRCodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	var req UpdateQRCodeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationExpiry, "expiresAt must be in the future", nil))
		return
	}

	qr, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Destination != nil && qr.Type != types.QRTypeDynamic {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidation, "destination can only be changed on dynamic QR codes", nil))
		return
	}

	if req.Name != nil {
		qr.Name = *req.Name
	}
	if req.Content != nil {
		qr.Content = *req.Content
	}
	if req.Destination != nil {
		qr.Destination = *req.Destination
	}
	if req.Design != nil {
		if qr.Design == nil {
			qr.Design = &types.DesignOptions{}
		}
		qr.Design.Design = req.Design
	}
	if req.Password != nil {
		if *req.Password == "" {
			qr.PasswordHash = ""
			qr.HasPassword = false
		} else {
			hash, hashErr := auth.HashViewerPassword(h.hasher, *req.Password)
			if hashErr != nil {
				core.Error(w, r, hashErr)
				return
			}
			qr.PasswordHash = hash
			qr.HasPassword = true
		}
	}
	if req.ExpiresAt != nil {
		qr.ExpiresAt = req.ExpiresAt
	}
	if req.Favorite != nil {
		qr.Favorite = *req.Favorite
	}
	if req.Tags != nil {
		qr.Tags = req.Tags
	}
	if req.CampaignID != nil {
		if *req.CampaignID == "" {
			qr.CampaignID = nil
		} else {
			qr.CampaignID = req.CampaignID
		}
	}

	if err := h.store.Update(r.Context(), qr); err != nil {
		core.Error(w, r, err)
		return
	}

	if qr.ShortCode != "" && h.cache != nil {
		h.cache.Invalidate(r.Context(), qr.ShortCode)
	}
	h.emit(types.EventQRCodeUpdated, actor.UserID, qr)
	core.JSON(w, r, http.StatusOK, qr)
}

// Delete handles DELETE /v1/qr-codes/{id}.
func (h *QRCodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Unauthorized", nil))
		return
	}

	id := chi.URLParam(r, "id")
	qr, err := h.store.GetByID(r.Context(), id, actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Delete(r.Context(), id, actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	if qr.ShortCode != "" && h.cache != nil {
		h.cache.Invalidate(r.Context(), qr.ShortCode)
	}
	h.emit(types.EventQRCodeDeleted, actor.UserID, qr)
	w.WriteHeader(http.StatusNoContent)
}

// buildQRCode assembles a persistable record from a validated request:
// short code for dynamic codes, hashed viewer password, design block.
func (h *QRCodeHandler) buildQRCode(ctx context.Context, userID string, req *CreateQRCodeRequest) (*types.QRCode, error) {
	qr := &types.QRCode{
		ID:          "qr_" + uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Type:        req.Type,
		Content:     req.Content,
		ContentType: req.QRType,
		Destination: req.Destination,
		ExpiresAt:   req.ExpiresAt,
		Tags:        req.Tags,
	}
	if req.CampaignID != "" {
		qr.CampaignID = &req.CampaignID
	}

	if req.Size != 0 || req.Foreground != "" || req.Background != "" || req.Logo != "" ||
		req.ErrorLevel != "" || req.Pattern != "" || len(req.Design) > 0 {
		qr.Design = &types.DesignOptions{
			Size:       req.Size,
			Foreground: req.Foreground,
			Background: req.Background,
			Logo:       req.Logo,
			ErrorLevel: req.ErrorLevel,
			Pattern:    req.Pattern,
			Design:     req.Design,
		}
	}

	if req.Type == types.QRTypeDynamic {
		code, err := h.codes.Unique(ctx, h.store.ShortCodeExists)
		if err != nil {
			return nil, err
		}
		qr.ShortCode = code
	}

	if req.Password != "" {
		hash, err := auth.HashViewerPassword(h.hasher, req.Password)
		if err != nil {
			return nil, err
		}
		qr.PasswordHash = hash
		qr.HasPassword = true
	}

	return qr, nil
}

// emitLimitWarning fires a limit.warning event when the creates just
// performed push total QR code usage past a warning threshold. decision is
// the pre-create quota read; created is how many rows were added.
func (h *QRCodeHandler) emitLimitWarning(userID string, decision billing.LimitDecision, created int) {
	if h.events == nil || decision.Limit <= 0 {
		return
	}
	current := decision.Current + created
	percentage := float64(current) / float64(decision.Limit) * 100
	warning := billing.ClassifyUsage(percentage)
	if !warning.Show {
		return
	}
	h.events.Enqueue(types.WebhookEvent{
		ID:     "evt_" + uuid.New().String(),
		Type:   types.EventLimitWarning,
		UserID: userID,
		Payload: map[string]any{
			"resource":   types.ResourceQRCodes,
			"current":    current,
			"limit":      decision.Limit,
			"percentage": percentage,
			"severity":   warning.Severity,
			"level":      warning.Level,
		},
		CreatedAt: time.Now().UTC(),
	})
}

// emit queues a webhook event. Drops are already logged by the sink.
func (h *QRCodeHandler) emit(eventType types.EventType, userID string, qr *types.QRCode) {
	if h.events == nil {
		return
	}
	h.events.Enqueue(types.WebhookEvent{
		ID:        "evt_" + uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		Payload:   qr,
		CreatedAt: time.Now().UTC(),
	})
}
