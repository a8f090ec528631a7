package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultReconcileTimeout bounds the background cart merge
	DefaultReconcileTimeout = 5 * time.Second
	// DefaultResetTTL is how long a password reset link stays valid
	DefaultResetTTL = 24 * time.Hour
	// MaxVendorLogos is the upload limit of ApplyForVendor
	MaxVendorLogos = 2

	tracerName = "github.com/goliatone/go-storefront-auth"
)

// RequestScope carries what the transport layer extracted from a request.
// Nothing in it is trusted before the service verifies it.
type RequestScope struct {
	SubjectID    string
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by every login-style operation
type AuthResult struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterInput is the password signup payload
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// VendorApplicationInput is the vendor onboarding payload
type VendorApplicationInput struct {
	StoreName       string
	Description     string
	Contact         string
	TaxID           string
	BusinessLicense string
	Documents       []string
}

// Service orchestrates signup, login, rotation, revocation and the
// account maintenance flows. It holds no per-request state.
type Service struct {
	repo        RepositoryManager
	tokens      TokenService
	revocations RevocationStore

	resolver    IdentityResolver
	reconciler  CartReconciler
	hasher      PasswordAuthenticator
	mailer      Mailer
	uploader    AssetUploader
	normalizers map[ProviderKey]ProfileNormalizer
	review      VendorReview

	activity ActivitySink
	logger   Logger
	tracer   trace.Tracer
	now      func() time.Time

	revokeOnRotate   bool
	useHashIDs       bool
	reconcileTimeout time.Duration
	resetTTL         time.Duration
	frontendURL      string

	inflight sync.WaitGroup
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the logger
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceActivitySink sets the audit sink
func WithServiceActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithRevokeOnRotate makes refresh tokens single use
func WithRevokeOnRotate(enabled bool) ServiceOption {
	return func(s *Service) {
		s.revokeOnRotate = enabled
	}
}

// WithHashIDs derives password-signup user ids from the email
func WithHashIDs(enabled bool) ServiceOption {
	return func(s *Service) {
		s.useHashIDs = enabled
	}
}

// WithTracer sets the tracer, defaults to the global provider
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithPasswordHasher replaces the bcrypt hasher
func WithPasswordHasher(hasher PasswordAuthenticator) ServiceOption {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithMailer sets the mail transport
func WithMailer(mailer Mailer) ServiceOption {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

// WithAssetUploader sets where vendor logos go
func WithAssetUploader(uploader AssetUploader) ServiceOption {
	return func(s *Service) {
		s.uploader = uploader
	}
}

// WithCartReconciler enables the login cart merge
func WithCartReconciler(reconciler CartReconciler) ServiceOption {
	return func(s *Service) {
		s.reconciler = reconciler
	}
}

// WithIdentityResolver replaces the default resolver
func WithIdentityResolver(resolver IdentityResolver) ServiceOption {
	return func(s *Service) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// WithNormalizers registers provider profile normalizers
func WithNormalizers(normalizers ...ProfileNormalizer) ServiceOption {
	return func(s *Service) {
		for _, n := range normalizers {
			if n != nil {
				s.normalizers[n.Provider()] = n
			}
		}
	}
}

// WithVendorReview replaces the vendor application state machine
func WithVendorReview(review VendorReview) ServiceOption {
	return func(s *Service) {
		if review != nil {
			s.review = review
		}
	}
}

// WithFrontendURL sets the base of the links sent by email
func WithFrontendURL(url string) ServiceOption {
	return func(s *Service) {
		s.frontendURL = strings.TrimRight(url, "/")
	}
}

// WithReconcileTimeout bounds the background cart merge
func WithReconcileTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.reconcileTimeout = d
		}
	}
}

// WithResetTTL sets how long password reset links stay valid
func WithResetTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

// WithServiceClock replaces the time source
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the orchestrator
func NewService(repo RepositoryManager, tokens TokenService, revocations RevocationStore, opts ...ServiceOption) *Service {
	s := &Service{
		repo:             repo,
		tokens:           tokens,
		revocations:      revocations,
		normalizers:      map[ProviderKey]ProfileNormalizer{},
		activity:         noopActivitySink{},
		logger:           defLogger{},
		tracer:           otel.Tracer(tracerName),
		now:              time.Now,
		reconcileTimeout: DefaultReconcileTimeout,
		resetTTL:         DefaultResetTTL,
		hasher:           NewBcryptHasher(bcrypt.DefaultCost),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.mailer == nil {
		s.mailer = ConsoleMailer{Logger: s.logger}
	}
	if s.resolver == nil {
		s.resolver = NewIdentityResolver(repo, s.logger)
	}
	if s.review == nil {
		s.review = NewVendorReview(repo,
			WithReviewActivitySink(s.activity),
			WithReviewLogger(s.logger),
			WithReviewClock(s.now),
		)
	}

	return s
}

// Register creates a password account, logs it in and sends the
// verification email.
func (s *Service) Register(ctx context.Context, scope RequestScope, in RegisterInput) (result *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.Register", attribute.String("auth.role", in.Role))
	defer func() { endSpan(span, err) }()

	var user *User
	handler := &RegisterUserHandler{repo: s.repo, hasher: s.hasher, useHashIDs: s.useHashIDs}
	err = handler.Execute(ctx, RegisterUserMessage{
		Name:       in.Name,
		Email:      in.Email,
		Password:   in.Password,
		Role:       in.Role,
		OnResponse: func(u *User) { user = u },
	})
	if err != nil {
		return nil, err
	}

	result, err = s.login(ctx, scope, user, time.Time{})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRegister,
		Actor:     userActor(user.ID.String()),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"role": string(user.Role)},
	})

	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn("verification email for %s not sent: %v", user.ID, err)
	}

	return result, nil
}

// Signin authenticates with email and password. Unknown emails, provider
// only accounts and wrong passwords are indistinguishable.
func (s *Service) Signin(ctx context.Context, scope RequestScope, email, password string) (result *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.Signin")
	defer func() { endSpan(span, err) }()

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.loginFailed(ctx, "", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}

	if !user.HasPassword() {
		s.loginFailed(ctx, user.ID.String(), "no_password")
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !MatchError(err, ErrInvalidCredentials) {
			s.logger.Error("password comparison failed for user %s: %v", user.ID, err)
		}
		s.loginFailed(ctx, user.ID.String(), "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	result, err = s.login(ctx, scope, user, time.Time{})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     userActor(user.ID.String()),
		UserID:    user.ID.String(),
	})

	return result, nil
}

// ProviderLogin normalizes a provider user-info payload, resolves it to a
// user and logs that user in.
func (s *Service) ProviderLogin(ctx context.Context, scope RequestScope, provider ProviderKey, rawProfile []byte) (result *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.ProviderLogin", attribute.String("auth.provider", string(provider)))
	defer func() { endSpan(span, err) }()

	if !provider.IsValid() {
		return nil, ErrUnsupportedProvider
	}
	normalizer, ok := s.normalizers[provider]
	if !ok {
		return nil, ErrUnsupportedProvider.Clone().
			WithMetadata(map[string]any{"provider": string(provider), "reason": "not configured"})
	}

	identity, err := normalizer.Normalize(rawProfile)
	if err != nil {
		return nil, err
	}

	user, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	result, err = s.login(ctx, scope, user, time.Time{})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventSocialLogin,
		Actor:     ActorRef{ID: string(provider), Type: "social"},
		UserID:    user.ID.String(),
		Provider:  provider,
		Metadata:  map[string]any{"provider_user_id": identity.SubjectID},
	})

	return result, nil
}

// Refresh rotates the refresh token in scope. The new refresh token keeps
// the absolute ceiling of the chain it continues.
func (s *Service) Refresh(ctx context.Context, scope RequestScope) (result *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "auth.Refresh", attribute.Bool("auth.revoke_on_rotate", s.revokeOnRotate))
	defer func() { endSpan(span, err) }()

	if scope.RefreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.Decode(scope.RefreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	if s.revokeOnRotate {
		won, err := s.revocations.Claim(ctx, scope.RefreshToken, s.tokens.RemainingValidity(claims))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to claim refresh token")
		}
		if !won {
			s.record(ctx, ActivityEvent{
				EventType: ActivityEventRefreshReuse,
				Actor:     userActor(claims.UserID()),
				UserID:    claims.UserID(),
				Metadata:  map[string]any{"jti": claims.ID},
			})
			return nil, ErrBlacklisted
		}
	} else {
		revoked, err := s.revocations.IsBlacklisted(ctx, scope.RefreshToken)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check refresh token")
		}
		if revoked {
			return nil, ErrBlacklisted
		}
	}

	user, err := s.repo.Users().GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken.Clone().
				WithMetadata(map[string]any{"reason": "user not found"})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for refresh")
	}

	result, err = s.issuePair(user, claims.Ceiling())
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRefresh,
		Actor:     userActor(user.ID.String()),
		UserID:    user.ID.String(),
	})

	return result, nil
}

// Signout blacklists whichever tokens the scope carries for the rest of
// their validity. Tokens that fail signature checks are ignored so forged
// values never reach the denylist. Calling it twice is harmless.
func (s *Service) Signout(ctx context.Context, scope RequestScope) (err error) {
	ctx, span := s.startSpan(ctx, "auth.Signout")
	defer func() { endSpan(span, err) }()

	var userID string
	for _, token := range []string{scope.RefreshToken, scope.AccessToken} {
		if token == "" {
			continue
		}
		claims, err := s.tokens.DecodeForRevocation(token)
		if err != nil {
			s.logger.Debug("signout ignoring undecodable token: %v", err)
			continue
		}
		userID = claims.UserID()

		ttl := s.tokens.RemainingValidity(claims)
		if ttl <= 0 {
			continue
		}
		if err := s.revocations.Blacklist(ctx, token, ttl); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke token")
		}
	}

	if userID == "" {
		userID = scope.SubjectID
	}
	if userID != "" {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     userActor(userID),
			UserID:    userID,
		})
	}

	return nil
}

// Authenticate validates an access token for the protect middleware
func (s *Service) Authenticate(ctx context.Context, accessToken string) (claims *JWTClaims, err error) {
	ctx, span := s.startSpan(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	if accessToken == "" {
		return nil, ErrUnauthenticated
	}

	claims, err = s.tokens.Decode(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsBlacklisted(ctx, accessToken)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check access token")
	}
	if revoked {
		return nil, ErrBlacklisted
	}

	return claims, nil
}

// Drain blocks until background cart merges started by logins finish
func (s *Service) Drain() {
	s.inflight.Wait()
}

func (s *Service) login(ctx context.Context, scope RequestScope, user *User, ceiling time.Time) (*AuthResult, error) {
	result, err := s.issuePair(user, ceiling)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, scope.SessionID, user.ID)
	return result, nil
}

func (s *Service) issuePair(user *User, ceiling time.Time) (*AuthResult, error) {
	subject := user.ID.String()

	access, accessExp, err := s.tokens.IssueAccessToken(subject, user.Role)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue access token")
	}

	refresh, err := s.tokens.IssueRefreshToken(subject, ceiling)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue refresh token")
	}

	return &AuthResult{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// reconcile merges the session cart in the background. The login already
// succeeded, so failures are only logged.
func (s *Service) reconcile(ctx context.Context, sessionID string, userID uuid.UUID) {
	if s.reconciler == nil || sessionID == "" {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("cart reconciliation panicked for user %s: %v", userID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, s.reconcileTimeout)
		defer cancel()

		if err := s.reconciler.MergeCartsOnLogin(ctx, sessionID, userID); err != nil {
			s.logger.Error("cart reconciliation failed for user %s session %s: %v", userID, sessionID, err)
		}
	}()
}

func (s *Service) loginFailed(ctx context.Context, userID, reason string) {
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     userActor(userID),
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
}

func (s *Service) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink rejected %s: %v", event.EventType, err)
	}
}

func (s *Service) link(path string) string {
	return s.frontendURL + path
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
