package billing

import (
	"context"
	"errors"
	"log/slog"

	"qrstudio/internal/types"
)

// LimitDecision is the outcome of a single resource-limit check.
// Limit of -1 means the plan imposes no cap on the resource.
type LimitDecision struct {
	Allowed    bool    `json:"allowed"`
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// UsageCounter provides the per-owner resource counts the limit checker
// compares against plan quotas. All methods are read-only.
type UsageCounter interface {
	CountQRCodes(ctx context.Context, userID string) (int, error)
	CountDynamicQRCodes(ctx context.Context, userID string) (int, error)
	CountTeamMembers(ctx context.Context, ownerID string) (int, error)
	CountAPIKeys(ctx context.Context, userID string) (int, error)
}

// PlanLookup resolves a user ID to its plan tier. Implementations return an
// AppError with code not_found_user when the user does not exist.
type PlanLookup interface {
	GetPlan(ctx context.Context, userID string) (types.PlanTier, error)
}

// UsageService is the limit checker: a pure function of stored counts and
// the plan catalog. It performs no writes and holds no state beyond its
// dependencies, so a check is only advisory -- the check-then-create
// sequence in handlers is not transactional, and two concurrent creates at
// the quota boundary can both pass (storage constraints do not backstop
// counts, only short-code uniqueness).
type UsageService struct {
	plans             PlanRegistry
	counts            UsageCounter
	users             PlanLookup
	missingUserPolicy types.MissingUserPolicy
	logger            *slog.Logger
}

// NewUsageService creates the limit checker. missingUserPolicy decides what
// happens when userID does not resolve: fall back to FREE limits (the
// historical behavior) or surface the lookup error.
func NewUsageService(
	plans PlanRegistry,
	counts UsageCounter,
	users PlanLookup,
	missingUserPolicy types.MissingUserPolicy,
	logger *slog.Logger,
) *UsageService {
	if logger == nil {
		logger = slog.Default()
	}
	if missingUserPolicy == "" {
		missingUserPolicy = types.MissingUserFallbackFree
	}
	return &UsageService{
		plans:             plans,
		counts:            counts,
		users:             users,
		missingUserPolicy: missingUserPolicy,
		logger:            logger,
	}
}

// CheckResourceLimit decides whether userID may consume `amount` additional
// units of the given resource kind.
//
// For counted resources (QR codes, dynamic QR codes, team members, API
// keys) the decision is current+amount <= limit against a live storage
// count. For bulk generation the caller-supplied amount is the batch size
// and is compared directly against the quota with no storage read.
//
// API keys carry a second gate: a plan with a zero apiCalls quota has no
// API access at all, and the check short-circuits to blocked with limit 0
// before any key counting.
func (s *UsageService) CheckResourceLimit(
	ctx context.Context,
	userID string,
	resource types.ResourceType,
	amount int,
) (LimitDecision, error) {
	if amount <= 0 {
		amount = 1
	}

	plan, err := s.resolvePlan(ctx, userID)
	if err != nil {
		return LimitDecision{}, err
	}
	limits := s.plans.GetLimits(plan)

	switch resource {
	case types.ResourceBulkGeneration:
		return decideBulk(amount, limits.BulkGeneration), nil

	case types.ResourceAPIKeys:
		// All-or-nothing API access gate, checked before the key cap.
		if limits.APICallsDaily == 0 {
			return LimitDecision{Allowed: false, Current: 0, Limit: 0, Percentage: 0}, nil
		}
		current, err := s.counts.CountAPIKeys(ctx, userID)
		if err != nil {
			return LimitDecision{}, err
		}
		return decideCount(current, amount, limits.APIKeys), nil

	case types.ResourceQRCodes, types.ResourceDynamicQRCodes, types.ResourceTeamMembers:
		current, err := s.count(ctx, userID, resource)
		if err != nil {
			return LimitDecision{}, err
		}
		return decideCount(current, amount, limits.forResource(resource)), nil

	default:
		return LimitDecision{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"unknown resource type for limit check: "+string(resource),
			nil,
		)
	}
}

// Snapshot returns the current decision for every aggregated resource kind,
// plus the resolved plan. Consumed by the usage status endpoint.
func (s *UsageService) Snapshot(ctx context.Context, userID string) (types.PlanTier, map[types.ResourceType]LimitDecision, error) {
	plan, err := s.resolvePlan(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	out := make(map[types.ResourceType]LimitDecision, len(types.GatedResources))
	for _, resource := range types.GatedResources {
		decision, err := s.CheckResourceLimit(ctx, userID, resource, 1)
		if err != nil {
			return "", nil, err
		}
		out[resource] = decision
	}
	return plan, out, nil
}

// resolvePlan looks up the user's plan, applying the missing-user policy.
func (s *UsageService) resolvePlan(ctx context.Context, userID string) (types.PlanTier, error) {
	plan, err := s.users.GetPlan(ctx, userID)
	if err == nil {
		return plan, nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
		if s.missingUserPolicy == types.MissingUserFallbackFree {
			s.logger.WarnContext(ctx, "limit check for unknown user, falling back to FREE limits",
				"user_id", userID,
			)
			return types.PlanFree, nil
		}
	}
	return "", err
}

func (s *UsageService) count(ctx context.Context, userID string, resource types.ResourceType) (int, error) {
	switch resource {
	case types.ResourceQRCodes:
		return s.counts.CountQRCodes(ctx, userID)
	case types.ResourceDynamicQRCodes:
		return s.counts.CountDynamicQRCodes(ctx, userID)
	case types.ResourceTeamMembers:
		return s.counts.CountTeamMembers(ctx, userID)
	}
	return 0, types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"no counter for resource: "+string(resource),
		nil,
	)
}

// decideCount evaluates a stored count against a quota.
// Zero-limit plans block before any percentage division matters.
func decideCount(current, amount, limit int) LimitDecision {
	if limit == Unlimited {
		return LimitDecision{Allowed: true, Current: current, Limit: Unlimited, Percentage: 0}
	}
	if limit == 0 {
		return LimitDecision{Allowed: false, Current: current, Limit: 0, Percentage: 0}
	}
	return LimitDecision{
		Allowed:    current+amount <= limit,
		Current:    current,
		Limit:      limit,
		Percentage: float64(current) / float64(limit) * 100,
	}
}

// decideBulk evaluates a requested batch size against the bulk quota.
// Current reports the requested size; allowed iff batchSize <= limit.
func decideBulk(batchSize, limit int) LimitDecision {
	if limit == Unlimited {
		return LimitDecision{Allowed: true, Current: batchSize, Limit: Unlimited, Percentage: 0}
	}
	if limit == 0 {
		return LimitDecision{Allowed: false, Current: batchSize, Limit: 0, Percentage: 0}
	}
	return LimitDecision{
		Allowed:    batchSize <= limit,
		Current:    batchSize,
		Limit:      limit,
		Percentage: float64(batchSize) / float64(limit) * 100,
	}
}

// QuotaError converts a blocked decision into the wire-contract AppError for
// the given code, carrying current/limit/percentage so clients can render a
// precise upgrade prompt.
func QuotaError(code types.ErrorCode, message string, d LimitDecision) *types.AppError {
	return types.NewAppErrorWithDetails(code, message, nil, map[string]any{
		"current":    d.Current,
		"limit":      d.Limit,
		"percentage": d.Percentage,
	})
}
