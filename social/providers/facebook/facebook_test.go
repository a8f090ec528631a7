package facebook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCodeURLJoinsScopesWithComma(t *testing.T) {
	p := New(Config{ClientID: "fb-app", CallbackURL: "https://shop.test/cb"})

	parsed, err := url.Parse(p.AuthCodeURL("s"))
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", parsed.Host)
	assert.Equal(t, "email,public_profile", parsed.Query().Get("scope"))
	assert.Equal(t, "fb-app", parsed.Query().Get("client_id"))
}

func TestNormalize(t *testing.T) {
	p := New(Config{})

	raw := []byte(`{
		"id": "10222",
		"email": "jane@example.com",
		"first_name": "Jane",
		"last_name": "Doe",
		"picture": {"data": {"url": "https://fb.test/p.jpg"}}
	}`)

	identity, err := p.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderFacebook, identity.Provider)
	assert.Equal(t, "10222", identity.SubjectID)
	assert.Equal(t, "jane@example.com", identity.Email)
	assert.Equal(t, "Jane Doe", identity.Name)
	assert.Equal(t, "https://fb.test/p.jpg", identity.Avatar)
}

func TestNormalizeWithoutEmail(t *testing.T) {
	p := New(Config{})

	identity, err := p.Normalize([]byte(`{"id":"7","name":"Only Name"}`))
	require.NoError(t, err)
	assert.Empty(t, identity.Email)
	assert.Equal(t, "Only Name", identity.Name)
	assert.Empty(t, identity.Avatar)
}

func TestExchangeErrorFromGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		assert.Equal(t, "fb-secret", values.Get("client_secret"))

		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Invalid verification code format.",
				"type":    "OAuthException",
				"code":    100,
			},
		})
	}))
	defer server.Close()

	p := New(Config{ClientID: "fb-app", ClientSecret: "fb-secret", TokenURL: server.URL})

	_, err := p.Exchange(context.Background(), "bad")
	require.Error(t, err)

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "facebook", perr.Provider)
	assert.Equal(t, "OAuthException", perr.Code)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
}
