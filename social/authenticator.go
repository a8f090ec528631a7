// Package social runs the OAuth2 authorization-code handshake with the
// supported identity providers and hands the raw user-info payload to the
// auth service, which normalizes and resolves it.
package social

import (
	"context"
	"sort"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-storefront-auth"
)

// SocialAuthenticator drives the provider round trip
type SocialAuthenticator struct {
	providers    map[string]SocialProvider
	stateManager StateManager
	config       SocialAuthConfig
	logger       auth.Logger
	now          func() time.Time
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	DefaultRedirectURL string
	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// Callback is the outcome of a completed handshake
type Callback struct {
	Provider    auth.ProviderKey
	Profile     []byte
	RedirectURL string
	// SessionID is the guest cart session that started the handshake
	SessionID string
}

// AuthRedirect is where the browser goes to start the handshake
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(config SocialAuthConfig, opts ...SocialAuthOption) *SocialAuthenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.DefaultRedirectURL == "" {
		cfg.DefaultRedirectURL = "/"
	}

	sa := &SocialAuthenticator{
		providers: make(map[string]SocialProvider),
		config:    cfg,
		logger:    auth.NopLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil {
		sa.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
		).WithClock(sa.now)
	}

	return sa
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[string(provider.Provider())] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if now != nil {
			sa.now = now
		}
	}
}

// ListProviders returns the registered provider names, sorted
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasProvider reports whether name is registered
func (sa *SocialAuthenticator) HasProvider(name string) bool {
	_, ok := sa.providers[name]
	return ok
}

// Normalizers exposes the registered providers as profile normalizers so
// the auth service can map their payloads.
func (sa *SocialAuthenticator) Normalizers() []auth.ProfileNormalizer {
	out := make([]auth.ProfileNormalizer, 0, len(sa.providers))
	for _, name := range sa.ListProviders() {
		out = append(out, sa.providers[name])
	}
	return out
}

// BeginAuth starts the OAuth flow for a provider. sessionID is the guest
// cart session, sealed into the state so the callback can still merge that
// cart when the browser comes back without the session cookie.
func (sa *SocialAuthenticator) BeginAuth(ctx context.Context, providerName, redirectURL, sessionID string) (*AuthRedirect, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, providerNotFound(providerName)
	}

	if redirectURL == "" {
		redirectURL = sa.config.DefaultRedirectURL
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate code verifier")
	}

	now := sa.now()
	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
		SessionID:    sessionID,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(sa.config.StateTTL).Unix(),
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, err
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(computeCodeChallenge(codeVerifier), "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth verifies the state, exchanges the code and fetches the raw
// user-info payload.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*Callback, error) {
	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != providerName {
		return nil, ErrInvalidState.Clone().WithMetadata(map[string]any{
			"reason":   "provider mismatch",
			"provider": providerName,
		})
	}

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, providerNotFound(providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		sa.logger.Warn("%s token exchange failed: %v", providerName, err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	raw, err := provider.UserInfo(ctx, token)
	if err != nil {
		sa.logger.Warn("%s user info failed: %v", providerName, err)
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	return &Callback{
		Provider:    provider.Provider(),
		Profile:     raw,
		RedirectURL: state.RedirectURL,
		SessionID:   state.SessionID,
	}, nil
}

func providerNotFound(name string) error {
	return ErrProviderNotFound.Clone().WithMetadata(map[string]any{"provider": name})
}
