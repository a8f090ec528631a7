// Package google configures the Google OpenID Connect code flow.
package google

import (
	"net/http"
	"net/url"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/social"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements social.SocialProvider for Google.
type Provider struct {
	*social.CodeFlow
}

var _ social.SocialProvider = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	return &Provider{
		CodeFlow: social.NewCodeFlow(social.CodeFlowConfig{
			Provider:     string(auth.ProviderGoogle),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			CallbackURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			AuthURL:      cfg.AuthURL,
			TokenURL:     cfg.TokenURL,
			UserInfoURL:  cfg.UserInfoURL,
			AuthParams:   url.Values{"access_type": {"offline"}},
			HTTPClient:   cfg.HTTPClient,
		}),
	}
}

// Provider implements auth.ProfileNormalizer.
func (p *Provider) Provider() auth.ProviderKey {
	return auth.ProviderGoogle
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Normalize maps the OpenID userinfo document
func (p *Provider) Normalize(raw []byte) (*auth.CanonicalIdentity, error) {
	var info googleUserInfo
	if err := social.DecodeProfile(auth.ProviderGoogle, raw, &info); err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = info.GivenName + " " + info.FamilyName
	}

	return social.BuildIdentity(auth.ProviderGoogle, info.Sub, info.Email, name, info.Picture)
}
