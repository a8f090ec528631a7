package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-storefront-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	key         auth.ProviderKey
	authBase    string
	profile     []byte
	exchangeErr error
	lastOpts    []AuthCodeOption
}

func (p *stubProvider) Provider() auth.ProviderKey { return p.key }

func (p *stubProvider) Normalize(raw []byte) (*auth.CanonicalIdentity, error) {
	return BuildIdentity(p.key, "subject", "", "", "")
}

func (p *stubProvider) AuthCodeURL(state string, opts ...AuthCodeOption) string {
	p.lastOpts = opts
	return p.authBase + "?state=" + url.QueryEscape(state)
}

func (p *stubProvider) Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &Token{AccessToken: "provider-access-" + code}, nil
}

func (p *stubProvider) UserInfo(ctx context.Context, token *Token) ([]byte, error) {
	return p.profile, nil
}

type mockLoginService struct {
	mock.Mock
}

func (m *mockLoginService) ProviderLogin(ctx context.Context, scope auth.RequestScope, provider auth.ProviderKey, raw []byte) (*auth.AuthResult, error) {
	args := m.Called(scope, provider, raw)
	result, _ := args.Get(0).(*auth.AuthResult)
	return result, args.Error(1)
}

type controllerFixture struct {
	app      *fiber.App
	provider *stubProvider
	service  *mockLoginService
	auth     *SocialAuthenticator
	logins   []*auth.AuthResult
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		provider: &stubProvider{
			key:      auth.ProviderGoogle,
			authBase: "https://accounts.example/authorize",
			profile:  []byte(`{"sub":"g-1","email":"person@example.com"}`),
		},
		service: &mockLoginService{},
	}

	f.auth = NewSocialAuthenticator(SocialAuthConfig{
		StateEncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		StateHMACKey:       []byte("hmac-secret"),
	}, WithProvider(f.provider))

	controller := NewHTTPController(f.auth, f.service, HTTPConfig{
		SuccessRedirect: "/account",
		ErrorRedirect:   "/login",
		OnLogin: func(c *fiber.Ctx, res *auth.AuthResult) error {
			f.logins = append(f.logins, res)
			c.Cookie(&fiber.Cookie{Name: auth.RefreshCookieName, Value: res.RefreshToken, HTTPOnly: true})
			return nil
		},
	})

	f.app = fiber.New()
	api := f.app.Group("/api/v1/auth")
	api.Get("/sign-out", func(c *fiber.Ctx) error { return c.SendString("signed out") })
	controller.RegisterRoutes(api)
	return f
}

func (f *controllerFixture) get(t *testing.T, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func location(t *testing.T, resp *http.Response) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	parsed, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return parsed
}

func (f *controllerFixture) begin(t *testing.T, redirect string) string {
	t.Helper()
	target := "/api/v1/auth/google"
	if redirect != "" {
		target += "?redirect_url=" + url.QueryEscape(redirect)
	}
	loc := location(t, f.get(t, target))
	return loc.Query().Get("state")
}

func TestHTTPControllerBeginAuthRedirects(t *testing.T) {
	f := newControllerFixture(t)

	resp := f.get(t, "/api/v1/auth/google?redirect_url=/orders")
	loc := location(t, resp)
	assert.Equal(t, "accounts.example", loc.Host)

	state, err := f.auth.stateManager.Decode(loc.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "google", state.Provider)
	assert.Equal(t, "/orders", state.RedirectURL)
	assert.NotEmpty(t, state.CodeVerifier)
	assert.NotEmpty(t, f.provider.lastOpts)
}

func TestHTTPControllerRejectsOffsiteRedirects(t *testing.T) {
	f := newControllerFixture(t)

	for _, target := range []string{"https://evil.example/", "//evil.example", "javascript:alert(1)"} {
		token := f.begin(t, target)
		state, err := f.auth.stateManager.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, "/account", state.RedirectURL, target)
	}
}

func TestHTTPControllerUnknownProviderFallsThrough(t *testing.T) {
	f := newControllerFixture(t)

	resp := f.get(t, "/api/v1/auth/sign-out")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.get(t, "/api/v1/auth/myspace")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPControllerListProviders(t *testing.T) {
	f := newControllerFixture(t)

	resp := f.get(t, "/api/v1/auth/providers")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"google"}, body.Data)
}

func TestHTTPControllerCallbackLogsInAndRedirects(t *testing.T) {
	f := newControllerFixture(t)
	state := f.begin(t, "/dashboard?tab=orders")

	result := &auth.AuthResult{
		User:         &auth.User{ID: uuid.New()},
		AccessToken:  "access",
		RefreshToken: "refresh",
	}
	f.service.On("ProviderLogin",
		auth.RequestScope{SessionID: "sess-7"},
		auth.ProviderGoogle,
		f.provider.profile,
	).Return(result, nil).Once()

	resp := f.get(t, "/api/v1/auth/google/callback?code=abc&state="+url.QueryEscape(state),
		&http.Cookie{Name: auth.SessionCookieName, Value: "sess-7"})

	loc := location(t, resp)
	assert.Equal(t, "/dashboard", loc.Path)
	assert.Equal(t, "orders", loc.Query().Get("tab"))
	require.Len(t, f.logins, 1)
	assert.Same(t, result, f.logins[0])

	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.RefreshCookieName {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh", refresh.Value)
	f.service.AssertExpectations(t)
}

func TestHTTPControllerCallbackKeepsGuestSession(t *testing.T) {
	f := newControllerFixture(t)

	loc := location(t, f.get(t, "/api/v1/auth/google", &http.Cookie{Name: auth.SessionCookieName, Value: "guest-1"}))
	state := loc.Query().Get("state")

	decoded, err := f.auth.stateManager.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, "guest-1", decoded.SessionID)

	result := &auth.AuthResult{User: &auth.User{ID: uuid.New()}, RefreshToken: "refresh"}
	f.service.On("ProviderLogin",
		auth.RequestScope{SessionID: "guest-1"},
		auth.ProviderGoogle,
		f.provider.profile,
	).Return(result, nil).Once()

	location(t, f.get(t, "/api/v1/auth/google/callback?code=abc&state="+url.QueryEscape(state)))
	f.service.AssertExpectations(t)
}

func TestHTTPControllerCallbackErrors(t *testing.T) {
	t.Run("provider denied", func(t *testing.T) {
		f := newControllerFixture(t)
		loc := location(t, f.get(t, "/api/v1/auth/google/callback?error=access_denied&error_description=nope"))
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "access_denied", loc.Query().Get("oauth_error"))
		assert.Equal(t, "nope", loc.Query().Get("desc"))
	})

	t.Run("missing params", func(t *testing.T) {
		f := newControllerFixture(t)
		loc := location(t, f.get(t, "/api/v1/auth/google/callback?code=abc"))
		assert.Equal(t, "missing_params", loc.Query().Get("error"))
	})

	t.Run("tampered state", func(t *testing.T) {
		f := newControllerFixture(t)
		loc := location(t, f.get(t, "/api/v1/auth/google/callback?code=abc&state=forged"))
		assert.Equal(t, strings.ToLower(TextCodeInvalidState), loc.Query().Get("error"))
		f.service.AssertNotCalled(t, "ProviderLogin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exchange failure", func(t *testing.T) {
		f := newControllerFixture(t)
		f.provider.exchangeErr = errors.New("upstream down")
		state := f.begin(t, "")
		loc := location(t, f.get(t, "/api/v1/auth/google/callback?code=abc&state="+url.QueryEscape(state)))
		assert.Equal(t, strings.ToLower(TextCodeTokenExchangeFail), loc.Query().Get("error"))
	})

	t.Run("login failure", func(t *testing.T) {
		f := newControllerFixture(t)
		state := f.begin(t, "")
		f.service.On("ProviderLogin", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, auth.ErrUnsupportedProvider).Once()
		loc := location(t, f.get(t, "/api/v1/auth/google/callback?code=abc&state="+url.QueryEscape(state)))
		assert.Equal(t, "/login", loc.Path)
		assert.NotEmpty(t, loc.Query().Get("error"))
		assert.Empty(t, f.logins)
	})
}
