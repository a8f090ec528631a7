// Package facebook configures the Facebook Login code flow.
package facebook

import (
	"net/http"
	"strings"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/social"
)

const (
	graphVersion       = "v19.0"
	defaultAuthURL     = "https://www.facebook.com/" + graphVersion + "/dialog/oauth"
	defaultTokenURL    = "https://graph.facebook.com/" + graphVersion + "/oauth/access_token"
	defaultUserInfoURL = "https://graph.facebook.com/me?fields=id,email,first_name,last_name,name,picture.type(large)"
)

// Config holds Facebook OAuth configuration.
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

// DefaultScopes returns the default Facebook permissions.
func DefaultScopes() []string {
	return []string{"email", "public_profile"}
}

// Provider implements social.SocialProvider for Facebook.
type Provider struct {
	*social.CodeFlow
}

var _ social.SocialProvider = (*Provider)(nil)

// New creates a new Facebook provider.
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
			Provider:       string(auth.ProviderFacebook),
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			CallbackURL:    cfg.CallbackURL,
			Scopes:         cfg.Scopes,
			AuthURL:        cfg.AuthURL,
			TokenURL:       cfg.TokenURL,
			UserInfoURL:    cfg.UserInfoURL,
			ScopeSeparator: ",",
			HTTPClient:     cfg.HTTPClient,
		}),
	}
}

// Provider implements auth.ProfileNormalizer.
func (p *Provider) Provider() auth.ProviderKey {
	return auth.ProviderFacebook
}

type facebookUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Normalize maps the Graph API /me document. Email is absent when the user
// declined the permission.
func (p *Provider) Normalize(raw []byte) (*auth.CanonicalIdentity, error) {
	var user facebookUser
	if err := social.DecodeProfile(auth.ProviderFacebook, raw, &user); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Name
	}

	return social.BuildIdentity(auth.ProviderFacebook, user.ID, user.Email, name, user.Picture.Data.URL)
}
