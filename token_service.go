package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL   = 15 * time.Minute
	DefaultRefreshTTL  = 7 * 24 * time.Hour
	DefaultAbsoluteTTL = 30 * 24 * time.Hour
	DefaultVerifyTTL   = 24 * time.Hour
)

// TokenService mints and decodes the signed credentials used by the
// orchestrator. It performs no I/O.
type TokenService interface {
	IssueAccessToken(subject string, role UserRole) (string, time.Time, error)
	IssueRefreshToken(subject string, ceiling time.Time) (RefreshToken, error)
	IssueVerificationToken(subject, email string) (string, error)
	Decode(token string, expected TokenType) (*JWTClaims, error)
	DecodeForRevocation(token string) (*JWTClaims, error)
	RemainingValidity(claims *JWTClaims) time.Duration
}

// RefreshToken is a freshly minted refresh credential
type RefreshToken struct {
	Token     string
	ExpiresAt time.Time
	Ceiling   time.Time
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey  []byte
	issuer      string
	audience    jwt.ClaimStrings
	accessTTL   time.Duration
	refreshTTL  time.Duration
	absoluteTTL time.Duration
	verifyTTL   time.Duration
	now         func() time.Time
	logger      Logger
}

// TokenServiceOption configures the codec
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenTTLs overrides the access, refresh and absolute lifetimes.
// Zero values keep the defaults.
func WithTokenTTLs(access, refresh, absolute time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if access > 0 {
			ts.accessTTL = access
		}
		if refresh > 0 {
			ts.refreshTTL = refresh
		}
		if absolute > 0 {
			ts.absoluteTTL = absolute
		}
	}
}

// WithVerifyTTL sets the lifetime of email verification tokens
func WithVerifyTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if ttl > 0 {
			ts.verifyTTL = ttl
		}
	}
}

// WithIssuer sets iss and validates it on decode
func WithIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.issuer = issuer
	}
}

// WithAudience sets aud; decode requires the first entry to be present
func WithAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.audience = jwt.ClaimStrings(audience)
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the codec logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		signingKey:  signingKey,
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		absoluteTTL: DefaultAbsoluteTTL,
		verifyTTL:   DefaultVerifyTTL,
		now:         time.Now,
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

var _ TokenService = (*TokenServiceImpl)(nil)

// IssueAccessToken creates a short lived access token carrying the role
func (ts *TokenServiceImpl) IssueAccessToken(subject string, role UserRole) (string, time.Time, error) {
	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: ts.registered(subject, now, now.Add(ts.accessTTL)),
		UID:              subject,
		UserRole:         string(role),
		Type:             TokenTypeAccess,
	}

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.Expires(), nil
}

// IssueRefreshToken creates a refresh token. A zero ceiling starts a new
// chain at now + absolute TTL, otherwise the ceiling is carried forward
// unchanged. exp never exceeds the ceiling.
func (ts *TokenServiceImpl) IssueRefreshToken(subject string, ceiling time.Time) (RefreshToken, error) {
	now := ts.now()
	if ceiling.IsZero() {
		ceiling = now.Add(ts.absoluteTTL)
	}

	exp := now.Add(ts.refreshTTL)
	if exp.After(ceiling) {
		exp = ceiling
	}

	claims := &JWTClaims{
		RegisteredClaims: ts.registered(subject, now, exp),
		Type:             TokenTypeRefresh,
		AbsExp:           jwt.NewNumericDate(ceiling),
	}

	token, err := ts.SignClaims(claims)
	if err != nil {
		return RefreshToken{}, err
	}

	return RefreshToken{
		Token:     token,
		ExpiresAt: claims.Expires(),
		Ceiling:   claims.Ceiling(),
	}, nil
}

// IssueVerificationToken creates an email verification token
func (ts *TokenServiceImpl) IssueVerificationToken(subject, email string) (string, error) {
	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: ts.registered(subject, now, now.Add(ts.verifyTTL)),
		Type:             TokenTypeVerifyEmail,
		Email:            email,
	}
	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Decode verifies signature, time claims and token type.
func (ts *TokenServiceImpl) Decode(tokenString string, expected TokenType) (*JWTClaims, error) {
	opts := ts.parserOptions()
	opts = append(opts, jwt.WithTimeFunc(ts.now), jwt.WithExpirationRequired())

	claims, err := ts.parse(tokenString, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, asInvalidToken(err)
	}

	if claims.Type != expected {
		ts.logger.Debug("token type mismatch: got %q want %q", claims.Type, expected)
		return nil, ErrInvalidToken
	}

	if claims.PastCeiling(ts.now()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// DecodeForRevocation verifies the signature only. Expired tokens decode
// so callers can compute their remaining validity.
func (ts *TokenServiceImpl) DecodeForRevocation(tokenString string) (*JWTClaims, error) {
	opts := ts.parserOptions()
	opts = append(opts, jwt.WithoutClaimsValidation())

	claims, err := ts.parse(tokenString, opts...)
	if err != nil {
		return nil, asInvalidToken(err)
	}
	return claims, nil
}

// RemainingValidity is exp - now, negative once the token has expired
func (ts *TokenServiceImpl) RemainingValidity(claims *JWTClaims) time.Duration {
	return claims.Remaining(ts.now())
}

func (ts *TokenServiceImpl) parse(tokenString string, opts ...jwt.ParserOption) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, jwt.ErrTokenMalformed
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (ts *TokenServiceImpl) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience[0]))
	}
	return opts
}

func (ts *TokenServiceImpl) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    ts.issuer,
		Subject:   subject,
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func asInvalidToken(err error) error {
	return errors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
		WithTextCode(ErrInvalidToken.TextCode).
		WithCode(ErrInvalidToken.Code)
}
