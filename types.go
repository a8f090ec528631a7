package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// RevocationStore is the credential denylist. Entries expire on their own
// once the token would have expired anyway.
type RevocationStore interface {
	// Blacklist records token for ttl. ttl <= 0 is a no-op.
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	// Claim blacklists token only if absent, reporting whether this call
	// won. Used for single-use refresh tokens.
	Claim(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// CartReconciler merges the anonymous session cart into the user's cart
type CartReconciler interface {
	MergeCartsOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) error
}

// ProfileNormalizer maps one provider's user-info payload to a
// CanonicalIdentity.
type ProfileNormalizer interface {
	Provider() ProviderKey
	Normalize(raw []byte) (*CanonicalIdentity, error)
}

// IdentityResolver finds, links or creates the user behind a provider identity
type IdentityResolver interface {
	Resolve(ctx context.Context, identity *CanonicalIdentity) (*User, error)
}

// Upload is a file handed to an AssetUploader
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadedAsset is where an upload ended up
type UploadedAsset struct {
	Key string
	URL string
}

// AssetUploader stores vendor documents and logos
type AssetUploader interface {
	Upload(ctx context.Context, folder string, file Upload) (UploadedAsset, error)
}

// Mailer delivers the password reset and verification links
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
	SendVerification(ctx context.Context, to, link string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

// DefaultLogger prints to stdout with a level tag
func DefaultLogger() Logger {
	return defLogger{}
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// ConsoleMailer prints links instead of sending them, for development
type ConsoleMailer struct {
	Logger Logger
}

func (m ConsoleMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.logger().Info("====== PASSWORD RESET ======= to: %s link: %s", to, link)
	return nil
}

func (m ConsoleMailer) SendVerification(_ context.Context, to, link string) error {
	m.logger().Info("====== VERIFY EMAIL ======= to: %s link: %s", to, link)
	return nil
}

func (m ConsoleMailer) logger() Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return defLogger{}
}
