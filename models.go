package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderKey identifies a supported third-party identity provider
type ProviderKey string

const (
	ProviderGoogle   ProviderKey = "google"
	ProviderFacebook ProviderKey = "facebook"
	ProviderTwitter  ProviderKey = "twitter"
)

// IsValid reports whether the key names a provider the User model can link.
func (k ProviderKey) IsValid() bool {
	switch k {
	case ProviderGoogle, ProviderFacebook, ProviderTwitter:
		return true
	default:
		return false
	}
}

// Column returns the users column holding the provider subject id.
func (k ProviderKey) Column() string {
	switch k {
	case ProviderGoogle:
		return "google_id"
	case ProviderFacebook:
		return "facebook_id"
	case ProviderTwitter:
		return "twitter_id"
	default:
		return ""
	}
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	Name          string     `bun:"name,notnull" json:"name"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	Avatar        string     `bun:"avatar,nullzero" json:"avatar,omitempty"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	GoogleID      string     `bun:"google_id,nullzero,unique" json:"-"`
	FacebookID    string     `bun:"facebook_id,nullzero,unique" json:"-"`
	TwitterID     string     `bun:"twitter_id,nullzero,unique" json:"-"`
	PasswordHash  string     `bun:"password_hash,nullzero" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ProviderSubject returns the linked subject id for the provider, or ""
func (u *User) ProviderSubject(key ProviderKey) string {
	if u == nil {
		return ""
	}
	switch key {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	case ProviderTwitter:
		return u.TwitterID
	default:
		return ""
	}
}

// SetProviderSubject stores the subject id for the provider. It returns false
// for unknown keys.
func (u *User) SetProviderSubject(key ProviderKey, subject string) bool {
	switch key {
	case ProviderGoogle:
		u.GoogleID = subject
	case ProviderFacebook:
		u.FacebookID = subject
	case ProviderTwitter:
		u.TwitterID = subject
	default:
		return false
	}
	return true
}

// HasPassword is false for provider-only accounts.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PublicUser is the user projection returned to clients
type PublicUser struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Role   UserRole `json:"role"`
	Avatar *string  `json:"avatar"`
}

// Public strips credentials and provider links.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.Avatar != "" {
		avatar := u.Avatar
		p.Avatar = &avatar
	}
	return p
}

// Password reset lifecycle. Only the newest requested reset of a user is
// usable; asking again supersedes the older links.
const (
	ResetRequestedStatus  = "requested"
	ResetChangedStatus    = "changed"
	ResetSupersededStatus = "superseded"
)

// PasswordReset is a single-use reset request; its ID is the opaque token
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// VendorStatus is the review state of a vendor application
type VendorStatus string

const (
	VendorPending  VendorStatus = "PENDING"
	VendorApproved VendorStatus = "APPROVED"
	VendorRejected VendorStatus = "REJECTED"
)

// IsValid reports whether s is a known review status
func (s VendorStatus) IsValid() bool {
	switch s {
	case VendorPending, VendorApproved, VendorRejected:
		return true
	}
	return false
}

// VendorApplication is produced by ApplyForVendor; one per user
type VendorApplication struct {
	bun.BaseModel   `bun:"table:vendor_applications,alias:va"`
	ID              uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	UserID          uuid.UUID    `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	StoreName       string       `bun:"store_name,notnull" json:"store_name"`
	Description     string       `bun:"description" json:"description,omitempty"`
	Contact         string       `bun:"contact" json:"contact,omitempty"`
	TaxID           string       `bun:"tax_id" json:"tax_id,omitempty"`
	BusinessLicense string       `bun:"business_license" json:"business_license,omitempty"`
	Documents       []string     `bun:"documents,type:jsonb" json:"documents"`
	Logos           []string     `bun:"logos,type:jsonb" json:"logos"`
	Status          VendorStatus `bun:"status,notnull" json:"status"`
	CreatedAt       *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
