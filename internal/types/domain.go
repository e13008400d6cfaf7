package types

import "time"

// User is the account identity that owns QR codes, campaigns, team members,
// and API keys. Plan is mutated by billing flows (out of scope here) and is
// read-only to the limit checker.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Plan      PlanTier  `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DesignOptions holds the visual attributes of a QR code. They are stored
// as a JSONB blob and passed through untouched to the rendering layer.
type DesignOptions struct {
	Size       int            `json:"size,omitempty"`
	Foreground string         `json:"foreground,omitempty"`
	Background string         `json:"background,omitempty"`
	Logo       string         `json:"logo,omitempty"`
	ErrorLevel string         `json:"errorLevel,omitempty"`
	Pattern    string         `json:"pattern,omitempty"`
	Design     map[string]any `json:"design,omitempty"`
}

// QRCode is the central aggregate of the platform.
//
// Invariant: ShortCode is globally unique and only set when Type is dynamic.
// PasswordHash is never serialized; HasPassword signals its presence.
type QRCode struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Name         string         `json:"name,omitempty"`
	Type         QRCodeType     `json:"type"`
	Content      string         `json:"content"`
	ContentType  ContentType    `json:"qrType"`
	Destination  string         `json:"destination,omitempty"`
	ShortCode    string         `json:"shortUrl,omitempty"`
	Design       *DesignOptions `json:"design,omitempty"`
	PasswordHash string         `json:"-"`
	HasPassword  bool           `json:"hasPassword"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
	Favorite     bool           `json:"favorite"`
	Tags         []string       `json:"tags,omitempty"`
	CampaignID   *string        `json:"campaignId,omitempty"`
	ScanCount    int            `json:"scanCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IsExpired reports whether the code's expiry has passed at the given time.
// Codes without an expiry never expire.
func (q *QRCode) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && now.After(*q.ExpiresAt)
}

// Campaign groups QR codes for reporting. QR codes reference it optionally;
// deleting a campaign detaches its codes rather than deleting them.
type Campaign struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	QRCount     int        `json:"qrCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Scan is one row per QR scan event, appended by the redirect handler and
// never mutated. Aggregations over this table back the analytics endpoints.
type Scan struct {
	ID        string    `json:"id"`
	QRCodeID  string    `json:"qrCodeId"`
	Device    string    `json:"device,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	Country   string    `json:"country,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	ScannedAt time.Time `json:"scannedAt"`
}

// TeamMember is a seat on a user's team, counted against the plan's
// teamMembers cap.
type TeamMember struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"ownerId"`
	Email     string           `json:"email"`
	Role      TeamRole         `json:"role"`
	Status    TeamMemberStatus `json:"status"`
	InvitedAt time.Time        `json:"invitedAt"`
	JoinedAt  *time.Time       `json:"joinedAt,omitempty"`
}

// APIKey is a programmatic credential. The secret is bcrypt-hashed at rest;
// only the display prefix is stored in the clear.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	SecretHash string     `json:"-"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// WebhookSubscription is a per-user registration of an endpoint interested
// in a set of event types. Deliveries are signed with the stored secret.
type WebhookSubscription struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	URL       string      `json:"url"`
	Secret    string      `json:"-"`
	Events    []EventType `json:"events"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"createdAt"`
}

// WebhookEvent is the unit handed to the webhook dispatcher. Delivery is
// best-effort and at-most-once: the producing request never waits on it.
type WebhookEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}
