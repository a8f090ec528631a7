package social

import (
	"context"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
)

// SocialProvider is one OAuth2 authorization-code provider. UserInfo
// returns the provider payload untouched; the embedded normalizer turns it
// into a canonical identity.
type SocialProvider interface {
	auth.ProfileNormalizer

	AuthCodeURL(state string, opts ...AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error)
	UserInfo(ctx context.Context, token *Token) ([]byte, error)
}

// AuthRequest holds the per-login parameters of the consent redirect.
type AuthRequest struct {
	Scopes          []string
	CodeChallenge   string
	ChallengeMethod string
	Prompt          string
}

// AuthCodeOption adjusts an AuthRequest.
type AuthCodeOption func(*AuthRequest)

// WithScopes asks for scopes on top of the provider defaults.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(r *AuthRequest) {
		r.Scopes = append(r.Scopes, scopes...)
	}
}

// WithPKCE attaches a code challenge. An empty method means S256.
func WithPKCE(challenge, method string) AuthCodeOption {
	return func(r *AuthRequest) {
		r.CodeChallenge = challenge
		r.ChallengeMethod = method
	}
}

func WithPrompt(prompt string) AuthCodeOption {
	return func(r *AuthRequest) {
		r.Prompt = prompt
	}
}

// NewAuthRequest starts from a copy of defaults so options never mutate the
// provider config.
func NewAuthRequest(defaults []string, opts ...AuthCodeOption) AuthRequest {
	req := AuthRequest{Scopes: append([]string(nil), defaults...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	if req.CodeChallenge != "" && req.ChallengeMethod == "" {
		req.ChallengeMethod = "S256"
	}
	return req
}

// ExchangeRequest holds the per-login parameters of the code exchange.
type ExchangeRequest struct {
	CodeVerifier string
}

type ExchangeOption func(*ExchangeRequest)

// WithCodeVerifier sends the PKCE verifier that matches the challenge stored
// in the OAuth state.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(r *ExchangeRequest) {
		r.CodeVerifier = verifier
	}
}

func NewExchangeRequest(opts ...ExchangeOption) ExchangeRequest {
	var req ExchangeRequest
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	return req
}

// Token is the provider credential. It is only used to fetch the profile and
// is never stored.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// Usable reports whether the token can still call the user-info endpoint.
func (t *Token) Usable(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}
