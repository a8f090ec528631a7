package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds         = "INVALID_CREDENTIALS"
	TextCodeDuplicateEmail       = "DUPLICATE_EMAIL"
	TextCodeUnauthenticated      = "UNAUTHENTICATED"
	TextCodeMissingToken         = "MISSING_TOKEN"
	TextCodeInvalidToken         = "INVALID_TOKEN"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeBlacklisted          = "TOKEN_REVOKED"
	TextCodeUnsupportedProvider  = "UNSUPPORTED_PROVIDER"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
	TextCodeInvalidRole          = "INVALID_ROLE"
	TextCodeResetTokenInvalid    = "RESET_TOKEN_INVALID"
	TextCodeResetTokenUsed       = "RESET_TOKEN_USED"
	TextCodeEmailAlreadyVerified = "EMAIL_ALREADY_VERIFIED"
	TextCodeDuplicateApplication = "DUPLICATE_VENDOR_APPLICATION"
	TextCodeTooManyFiles         = "TOO_MANY_FILES"
	TextCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
)

// ErrInvalidCredentials is returned for unknown emails and password
// mismatches alike.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateEmail is returned when registering an email that is taken.
var ErrDuplicateEmail = errors.New("a user with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrUnauthenticated is returned when a call requires a subject and has none.
var ErrUnauthenticated = errors.New("user not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrMissingToken is returned when no refresh token was presented.
var ErrMissingToken = errors.New("refresh token not found", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken is returned on bad signatures, malformed payloads and
// token type mismatches.
var ErrInvalidToken = errors.New("token is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when exp or absExp elapsed.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrBlacklisted is returned for tokens found in the revocation store.
var ErrBlacklisted = errors.New("token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeBlacklisted).
	WithCode(errors.CodeUnauthorized)

// ErrUnsupportedProvider is returned for provider keys with no registered
// normalizer.
var ErrUnsupportedProvider = errors.New("unsupported identity provider", errors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedProvider).
	WithCode(errors.CodeBadRequest)

// ErrForbidden is surfaced by collaborators on authorization mismatches.
var ErrForbidden = errors.New("forbidden", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrInvalidRole is returned when a registration asks for an unknown role.
var ErrInvalidRole = errors.New("invalid role", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(errors.CodeBadRequest)

// ErrResetTokenInvalid covers unknown and expired password reset tokens.
var ErrResetTokenInvalid = errors.New("invalid or expired password reset token", errors.CategoryValidation).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(errors.CodeBadRequest)

// ErrResetTokenUsed is returned when a reset token is presented twice.
var ErrResetTokenUsed = errors.New("password reset token has already been used", errors.CategoryConflict).
	WithTextCode(TextCodeResetTokenUsed).
	WithCode(errors.CodeConflict)

// ErrEmailAlreadyVerified is returned by the verification flow.
var ErrEmailAlreadyVerified = errors.New("email is already verified", errors.CategoryConflict).
	WithTextCode(TextCodeEmailAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrDuplicateApplication is returned when a user applies twice.
var ErrDuplicateApplication = errors.New("a vendor application already exists for this user", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateApplication).
	WithCode(errors.CodeConflict)

// ErrTooManyFiles is returned when more logo files than allowed are uploaded.
var ErrTooManyFiles = errors.New("too many files uploaded", errors.CategoryBadInput).
	WithTextCode(TextCodeTooManyFiles).
	WithCode(errors.CodeBadRequest)

// ErrIdentityNotFound is returned when a token subject no longer resolves.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// MatchError reports whether err is target, or a clone or wrap of it.
// errors.Wrap clones *errors.Error sources so identity alone is not enough.
func MatchError(err error, target *errors.Error) bool {
	if err == nil || target == nil {
		return false
	}
	if errors.Is(err, target) {
		return true
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return target.TextCode != "" && e.TextCode == target.TextCode
	}
	return false
}

// IsRefreshError reports whether err belongs to the refresh failure class
// that the HTTP boundary collapses into a single sign-in-again message.
func IsRefreshError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []*errors.Error{ErrMissingToken, ErrInvalidToken, ErrTokenExpired, ErrBlacklisted} {
		if MatchError(err, target) {
			return true
		}
	}
	return false
}
