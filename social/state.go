package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultStateTTL bounds how long a user may sit on the provider consent page
const DefaultStateTTL = 10 * time.Minute

// stateVersion prefixes every sealed state so the envelope can change
// without misreading handshakes already in flight.
const stateVersion byte = 1

type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState is carried through the provider round trip inside the state
// parameter, so the callback needs no server-side storage.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	SessionID    string `json:"s,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

func (s *OAuthState) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}

// EncryptedStateManager seals the state with AES-GCM and signs the sealed
// bytes with HMAC-SHA256. Token layout: version | mac | nonce | ciphertext.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
	now           func() time.Time
}

// NewEncryptedStateManager expects a 16, 24 or 32 byte encryptionKey.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (sm *EncryptedStateManager) WithClock(now func() time.Time) *EncryptedStateManager {
	if now != nil {
		sm.now = now
	}
	return sm
}

// Encode fills in the nonce and the issue and expiry times when missing.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		state.Nonce = generateNonce()
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to marshal state")
	}

	sealed, err := sm.seal(plaintext)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, 1+sha256.Size+len(sealed))
	out = append(out, stateVersion)
	out = append(out, sm.mac(stateVersion, sealed)...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode rejects anything not produced by this manager's keys with
// ErrInvalidState, and stale handshakes with ErrStateExpired.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(data) < 1+sha256.Size || data[0] != stateVersion {
		return nil, ErrInvalidState
	}

	signature, sealed := data[1:1+sha256.Size], data[1+sha256.Size:]
	if !hmac.Equal(signature, sm.mac(data[0], sealed)) {
		return nil, ErrInvalidState
	}

	plaintext, err := sm.open(sealed)
	if err != nil {
		return nil, err
	}

	var state OAuthState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidState
	}

	if state.Expired(sm.now()) {
		return nil, ErrStateExpired
	}
	return &state, nil
}

func (sm *EncryptedStateManager) seal(plaintext []byte) ([]byte, error) {
	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (sm *EncryptedStateManager) open(sealed []byte) ([]byte, error) {
	gcm, err := sm.aead()
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, ErrInvalidState
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidState
	}
	return plaintext, nil
}

func (sm *EncryptedStateManager) mac(version byte, sealed []byte) []byte {
	h := hmac.New(sha256.New, sm.hmacKey)
	h.Write([]byte{version})
	h.Write(sealed)
	return h.Sum(nil)
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "invalid state encryption key")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create GCM")
	}
	return gcm, nil
}

func generateNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// computeCodeChallenge is the PKCE S256 transform
func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
