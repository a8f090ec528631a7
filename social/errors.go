package social

import "github.com/goliatone/go-errors"

// Text codes reach the storefront lower cased in the ?error= parameter of the
// login redirect.
const (
	TextCodeProviderNotFound  = "SOCIAL_PROVIDER_NOT_FOUND"
	TextCodeInvalidState      = "SOCIAL_INVALID_STATE"
	TextCodeStateExpired      = "SOCIAL_STATE_EXPIRED"
	TextCodeTokenExchangeFail = "SOCIAL_TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail      = "SOCIAL_USER_INFO_FAILED"
	TextCodeInvalidProfile    = "SOCIAL_INVALID_PROFILE"
)

var ErrProviderNotFound = errors.New("sign-in provider is not enabled for this store", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState covers forged, truncated and foreign state parameters
var ErrInvalidState = errors.New("sign-in handshake could not be verified", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

var ErrStateExpired = errors.New("sign-in handshake expired, please try again", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed and ErrUserInfoFailed are 401 when the provider
// rejects the grant. wrapProviderError raises them to 502 on outages.
var ErrTokenExchangeFailed = errors.New("provider rejected the authorization code", errors.CategoryExternal).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

var ErrUserInfoFailed = errors.New("provider profile could not be fetched", errors.CategoryExternal).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidProfile is a profile without a subject or with an unusable email
var ErrInvalidProfile = errors.New("provider profile is incomplete", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidProfile).
	WithCode(errors.CodeBadRequest)

// InvalidProfile wraps a normalization failure for provider
func InvalidProfile(provider string, err error) error {
	return wrapProviderError(ErrInvalidProfile, provider, "normalize", err)
}
