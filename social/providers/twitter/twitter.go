// Package twitter configures the X (Twitter) OAuth 2.0 code flow with PKCE.
package twitter

import (
	"net/http"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/social"
)

const (
	defaultAuthURL     = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL    = "https://api.twitter.com/2/oauth2/token"
	defaultUserInfoURL = "https://api.twitter.com/2/users/me?user.fields=profile_image_url,confirmed_email"
)

// Config holds Twitter OAuth configuration.
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

// DefaultScopes returns the default Twitter scopes.
func DefaultScopes() []string {
	return []string{"users.read", "tweet.read", "users.email"}
}

// Provider implements social.SocialProvider for Twitter.
type Provider struct {
	*social.CodeFlow
}

var _ social.SocialProvider = (*Provider)(nil)

// New creates a new Twitter provider. Confidential clients authenticate
// the token request with HTTP basic auth.
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
			Provider:     string(auth.ProviderTwitter),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			CallbackURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			AuthURL:      cfg.AuthURL,
			TokenURL:     cfg.TokenURL,
			UserInfoURL:  cfg.UserInfoURL,
			BasicAuth:    cfg.ClientSecret != "",
			HTTPClient:   cfg.HTTPClient,
		}),
	}
}

// Provider implements auth.ProfileNormalizer.
func (p *Provider) Provider() auth.ProviderKey {
	return auth.ProviderTwitter
}

type twitterUser struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
		ConfirmedEmail  string `json:"confirmed_email"`
	} `json:"data"`
}

// Normalize maps the v2 /users/me document. Most accounts come without an
// email, in which case the user is keyed on the twitter id alone.
func (p *Provider) Normalize(raw []byte) (*auth.CanonicalIdentity, error) {
	var user twitterUser
	if err := social.DecodeProfile(auth.ProviderTwitter, raw, &user); err != nil {
		return nil, err
	}

	name := user.Data.Name
	if name == "" {
		name = user.Data.Username
	}

	return social.BuildIdentity(auth.ProviderTwitter, user.Data.ID, user.Data.ConfirmedEmail, name, user.Data.ProfileImageURL)
}
