package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAuthRequest(t *testing.T) {
	defaults := []string{"openid", "email"}

	req := NewAuthRequest(defaults, WithScopes("profile"), WithPKCE("challenge", ""), WithPrompt("consent"), nil)
	assert.Equal(t, []string{"openid", "email", "profile"}, req.Scopes)
	assert.Equal(t, "S256", req.ChallengeMethod)
	assert.Equal(t, "consent", req.Prompt)
	assert.Equal(t, []string{"openid", "email"}, defaults)

	req = NewAuthRequest(nil)
	assert.Empty(t, req.ChallengeMethod)
}

func TestNewExchangeRequest(t *testing.T) {
	assert.Equal(t, "v", NewExchangeRequest(WithCodeVerifier("v")).CodeVerifier)
	assert.Empty(t, NewExchangeRequest().CodeVerifier)
}

func TestTokenUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var missing *Token
	assert.False(t, missing.Usable(now))
	assert.False(t, (&Token{}).Usable(now))
	assert.True(t, (&Token{AccessToken: "a"}).Usable(now))
	assert.True(t, (&Token{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}).Usable(now))
	assert.False(t, (&Token{AccessToken: "a", ExpiresAt: now}).Usable(now))
}
