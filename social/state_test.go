package social

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEncKey  = []byte("0123456789abcdef0123456789abcdef")
	testHMACKey = []byte("fedcba9876543210fedcba9876543210")
)

func TestStateManager_EncryptDecrypt(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 10*time.Minute)

	state := &OAuthState{
		Provider:     "google",
		RedirectURL:  "/checkout",
		CodeVerifier: "test-verifier",
	}

	encoded, err := sm.Encode(state)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "test-verifier")

	decoded, err := sm.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, state.Provider, decoded.Provider)
	assert.Equal(t, state.RedirectURL, decoded.RedirectURL)
	assert.Equal(t, state.CodeVerifier, decoded.CodeVerifier)
	assert.NotEmpty(t, decoded.Nonce)
}

func TestStateManager_ExpiredState(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, time.Minute).
		WithClock(func() time.Time { return now })

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = sm.Decode(encoded)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateManager_RejectsTampering(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 0)

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	flipped := "A"
	if encoded[10] == 'A' {
		flipped = "B"
	}
	_, err = sm.Decode(encoded[:10] + flipped + encoded[11:])
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = sm.Decode("not base64 !!")
	assert.ErrorIs(t, err, ErrInvalidState)

	other := NewEncryptedStateManager(testEncKey, []byte(strings.Repeat("x", 32)), 0)
	_, err = other.Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCodeChallenge(t *testing.T) {
	verifier, err := generateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, verifier, 43)

	// RFC 7636 appendix B
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		computeCodeChallenge("dBjBKusWOagN2Lt-IPVzpSTLatwnGFBTkxnjfz0u6sw"),
	)
}

func TestStateManager_CarriesGuestSession(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 0)

	encoded, err := sm.Encode(&OAuthState{Provider: "facebook", SessionID: "guest-42"})
	require.NoError(t, err)

	decoded, err := sm.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "guest-42", decoded.SessionID)
	assert.False(t, decoded.Expired(time.Unix(decoded.IssuedAt, 0)))
}

func TestStateManager_RejectsUnknownVersion(t *testing.T) {
	sm := NewEncryptedStateManager(testEncKey, testHMACKey, 0)

	encoded, err := sm.Encode(&OAuthState{Provider: "google"})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[0] = stateVersion + 1

	_, err = sm.Decode(base64.RawURLEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidState)
}
