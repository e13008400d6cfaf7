package types

// PlanTier identifies the subscription plan for a user account.
// The values match the plan enum stored in the users table.
type PlanTier string

const (
	PlanFree       PlanTier = "FREE"
	PlanPro        PlanTier = "PRO"
	PlanBusiness   PlanTier = "BUSINESS"
	PlanEnterprise PlanTier = "ENTERPRISE"
)

// QRCodeType distinguishes static codes (payload fixed at creation) from
// dynamic codes (payload is a short URL that redirects server-side).
type QRCodeType string

const (
	QRTypeStatic  QRCodeType = "static"
	QRTypeDynamic QRCodeType = "dynamic"
)

// ContentType is the semantic subtype of a QR code's encoded payload.
type ContentType string

const (
	ContentURL   ContentType = "URL"
	ContentText  ContentType = "TEXT"
	ContentWiFi  ContentType = "WIFI"
	ContentVCard ContentType = "VCARD"
	ContentEmail ContentType = "EMAIL"
	ContentSMS   ContentType = "SMS"
	ContentPhone ContentType = "PHONE"
)

// AllContentTypes is the complete set of valid qrType values, used by
// request validation.
var AllContentTypes = []ContentType{
	ContentURL,
	ContentText,
	ContentWiFi,
	ContentVCard,
	ContentEmail,
	ContentSMS,
	ContentPhone,
}

// ResourceType identifies a plan-gated resource kind.
type ResourceType string

const (
	ResourceQRCodes        ResourceType = "qr_codes"
	ResourceDynamicQRCodes ResourceType = "dynamic_qr_codes"
	ResourceBulkGeneration ResourceType = "bulk_generation"
	ResourceTeamMembers    ResourceType = "team_members"
	ResourceAPIKeys        ResourceType = "api_keys"
)

// GatedResources lists the resource kinds reported by the usage status
// aggregator (bulk generation is checked per-request, not aggregated).
var GatedResources = []ResourceType{
	ResourceQRCodes,
	ResourceDynamicQRCodes,
	ResourceTeamMembers,
	ResourceAPIKeys,
}

// TeamMemberStatus represents the lifecycle state of a team membership.
type TeamMemberStatus string

const (
	TeamMemberInvited TeamMemberStatus = "invited"
	TeamMemberActive  TeamMemberStatus = "active"
)

// TeamRole defines the authorization level of a team member.
type TeamRole string

const (
	TeamRoleOwner  TeamRole = "owner"
	TeamRoleEditor TeamRole = "editor"
	TeamRoleViewer TeamRole = "viewer"
)

// EventType identifies the kind of webhook notification event.
type EventType string

const (
	EventQRCodeCreated EventType = "qr_code.created"
	EventQRCodeUpdated EventType = "qr_code.updated"
	EventQRCodeDeleted EventType = "qr_code.deleted"
	EventLimitWarning  EventType = "limit.warning"
)

// AllEventTypes is the set of event types a webhook subscription may select.
var AllEventTypes = []EventType{
	EventQRCodeCreated,
	EventQRCodeUpdated,
	EventQRCodeDeleted,
	EventLimitWarning,
}

// MissingUserPolicy controls what the limit checker does when a user ID
// passed to it does not resolve to a stored user.
//
// The historical behavior is to silently fall back to the FREE plan's
// limits instead of failing. PolicyError makes a stale or mistyped user
// ID an explicit error instead.
type MissingUserPolicy string

const (
	MissingUserFallbackFree MissingUserPolicy = "fallback_free"
	MissingUserError        MissingUserPolicy = "error"
)
