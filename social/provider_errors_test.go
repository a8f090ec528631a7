package social

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderError_Unavailable(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProviderError
		expected bool
	}{
		{"transport failure", &ProviderError{Err: errors.New("dial tcp: timeout")}, true},
		{"throttled", &ProviderError{Status: http.StatusTooManyRequests}, true},
		{"provider down", &ProviderError{Status: http.StatusServiceUnavailable}, true},
		{"bad grant", &ProviderError{Status: http.StatusBadRequest, Code: "invalid_grant"}, false},
		{"missing token", &ProviderError{Code: "missing_access_token"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Unavailable())
		})
	}
}

func TestProviderError_Error(t *testing.T) {
	err := &ProviderError{Provider: "google", Operation: "exchange", Status: 400, Code: "invalid_grant", Description: "Bad Request"}
	assert.Equal(t, "google exchange failed: 400 Bad Request", err.Error())

	err = &ProviderError{Operation: "user_info", Err: errors.New("eof")}
	assert.Equal(t, "user_info failed: eof", err.Error())
}

func TestWrapProviderError(t *testing.T) {
	rejected := wrapProviderError(ErrTokenExchangeFailed, "github", "exchange",
		&ProviderError{Provider: "github", Operation: "exchange", Status: 401, Code: "bad_verification_code"})

	var out *goerrors.Error
	require.True(t, errors.As(rejected, &out))
	assert.Equal(t, ErrTokenExchangeFailed.Code, out.Code)
	assert.Equal(t, ErrTokenExchangeFailed.TextCode, out.TextCode)
	assert.Equal(t, "bad_verification_code", out.Metadata["code"])
	assert.Equal(t, 401, out.Metadata["status"])

	outage := wrapProviderError(ErrUserInfoFailed, "google", "user_info",
		&ProviderError{Provider: "google", Operation: "user_info", Status: http.StatusBadGateway})
	require.True(t, errors.As(outage, &out))
	assert.Equal(t, http.StatusBadGateway, out.Code)
	assert.Equal(t, ErrUserInfoFailed.TextCode, out.TextCode)
	assert.NotEqual(t, http.StatusBadGateway, ErrUserInfoFailed.Code)

	plain := wrapProviderError(ErrInvalidProfile, "apple", "normalize", errors.New("missing sub"))
	require.True(t, errors.As(plain, &out))
	assert.Equal(t, "missing sub", out.Metadata["error"])
	assert.Equal(t, "apple", out.Metadata["provider"])
}
