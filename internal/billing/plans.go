// Package billing provides the plan catalog and usage enforcement logic.
package billing

import "qrstudio/internal/types"

// Unlimited marks a quota field with no cap. Zero is a real quota value
// (FREE has 0 dynamic codes and 0 API calls), so unlimited cannot be
// encoded as 0; enforcement code must treat negative limits as no limit.
const Unlimited = -1

// PlanLimits is the unified quota table for a plan tier. The API key cap
// lives here alongside the API call quota; historically these were two
// separate constant tables that could drift apart.
type PlanLimits struct {
	QRCodes        int `json:"qrCodes"`
	DynamicQRCodes int `json:"dynamicQrCodes"`
	BulkGeneration int `json:"bulkGeneration"`
	TeamMembers    int `json:"teamMembers"`
	APICallsDaily  int `json:"apiCalls"`
	APIKeys        int `json:"apiKeys"`
}

// PlanRegistry defines the authoritative limits for each tier.
// This is the single source of truth for what each plan allows.
type PlanRegistry interface {
	// GetLimits returns the resource limits for the given plan tier.
	// For unknown tiers, returns the most restrictive (FREE) limits
	// to fail safely.
	GetLimits(tier types.PlanTier) PlanLimits
}

// planDefaults defines the hardcoded plan quotas:
//
//	| Plan       | qrCodes | dynamic | bulk  | team | apiCalls | apiKeys |
//	|------------|---------|---------|-------|------|----------|---------|
//	| FREE       | 50      | 0       | 0     | 1    | 0        | 0       |
//	| PRO        | 100     | 100     | 1000  | 1    | 0        | 3       |
//	| BUSINESS   | 1000    | 1000    | 10000 | 10   | 10000    | 5       |
//	| ENTERPRISE | unlimited across the board                            |
//
// PRO's apiKeys cap of 3 is moot while its apiCalls quota is 0: API access
// is an all-or-nothing gate checked before the key-count cap.
var planDefaults = map[types.PlanTier]PlanLimits{
	types.PlanFree: {
		QRCodes:        50,
		DynamicQRCodes: 0,
		BulkGeneration: 0,
		TeamMembers:    1,
		APICallsDaily:  0,
		APIKeys:        0,
	},
	types.PlanPro: {
		QRCodes:        100,
		DynamicQRCodes: 100,
		BulkGeneration: 1000,
		TeamMembers:    1,
		APICallsDaily:  0,
		APIKeys:        3,
	},
	types.PlanBusiness: {
		QRCodes:        1000,
		DynamicQRCodes: 1000,
		BulkGeneration: 10000,
		TeamMembers:    10,
		APICallsDaily:  10000,
		APIKeys:        5,
	},
	types.PlanEnterprise: {
		QRCodes:        Unlimited,
		DynamicQRCodes: Unlimited,
		BulkGeneration: Unlimited,
		TeamMembers:    Unlimited,
		APICallsDaily:  Unlimited,
		APIKeys:        Unlimited,
	},
}

// freeLimits is cached to avoid map lookups on the fallback path.
var freeLimits = planDefaults[types.PlanFree]

// staticPlanRegistry is a compile-time plan registry backed by an in-memory
// map. It is the standard implementation for production use.
type staticPlanRegistry struct {
	limits map[types.PlanTier]PlanLimits
}

// NewStaticPlanRegistry returns a PlanRegistry backed by the hardcoded plan
// quotas. No database or external service is required.
func NewStaticPlanRegistry() PlanRegistry {
	// Copy the defaults into a new map so callers cannot mutate the
	// package-level variable.
	m := make(map[types.PlanTier]PlanLimits, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanRegistry{limits: m}
}

// GetLimits returns the resource limits for the given plan tier.
// If the tier is unknown, it returns the FREE tier limits as a safe default.
func (r *staticPlanRegistry) GetLimits(tier types.PlanTier) PlanLimits {
	if limits, ok := r.limits[tier]; ok {
		return limits
	}
	return freeLimits
}

// forResource selects the quota field for a resource kind. The API key cap
// is handled separately by the usage service because of the all-or-nothing
// API access gate.
func (l PlanLimits) forResource(resource types.ResourceType) int {
	switch resource {
	case types.ResourceQRCodes:
		return l.QRCodes
	case types.ResourceDynamicQRCodes:
		return l.DynamicQRCodes
	case types.ResourceBulkGeneration:
		return l.BulkGeneration
	case types.ResourceTeamMembers:
		return l.TeamMembers
	case types.ResourceAPIKeys:
		return l.APIKeys
	}
	return 0
}
