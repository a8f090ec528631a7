package auth

import (
	"context"
	"net/url"
	"path"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ForgotPassword mails a single use reset link. Unknown emails succeed
// silently so the endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.ForgotPassword")
	defer func() { endSpan(span, err) }()

	var resp *InitializePasswordResetResponse
	handler := NewInitializePasswordResetHandler(s.repo).WithClock(s.now)
	err = handler.Execute(ctx, InitializePasswordResetMessage{
		Email:      email,
		OnResponse: func(r *InitializePasswordResetResponse) { resp = r },
	})
	if err != nil {
		return err
	}
	if resp == nil || resp.Reset == nil {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}

	link := s.link("/password-reset/" + resp.Reset.ID.String())
	if err := s.mailer.SendPasswordReset(ctx, resp.Reset.Email, link); err != nil {
		s.logger.Error("failed to send password reset email to user %s: %v", resp.Reset.UserID, err)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     userActor(resp.Reset.UserID.String()),
		UserID:    resp.Reset.UserID.String(),
		Metadata: map[string]any{
			"reset_id":   resp.Reset.ID.String(),
			"superseded": resp.Superseded,
		},
	})

	return nil
}

// ResetPassword consumes a reset token and stores the new password
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.ResetPassword")
	defer func() { endSpan(span, err) }()

	handler := NewFinalizePasswordResetHandler(s.repo).
		WithActivitySink(s.activity).
		WithLogger(s.logger).
		WithHasher(s.hasher).
		WithClock(s.now, s.resetTTL)

	return handler.Execute(ctx, FinalizePasswordResetMessage{
		Session:  token,
		Password: newPassword,
	})
}

// SendVerificationEmail mails a fresh verification link to email
func (s *Service) SendVerificationEmail(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "auth.SendVerificationEmail")
	defer func() { endSpan(span, err) }()

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}
	if user.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	return s.sendVerification(ctx, user)
}

// VerifyEmail consumes a verification token
func (s *Service) VerifyEmail(ctx context.Context, token string) (user *User, err error) {
	ctx, span := s.startSpan(ctx, "auth.VerifyEmail")
	defer func() { endSpan(span, err) }()

	handler := &AccountVerificationHandler{repo: s.repo, tokens: s.tokens}
	err = handler.Execute(ctx, AccountVerificationMesage{
		Token:      token,
		OnResponse: func(u *User) { user = u },
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     userActor(user.ID.String()),
		UserID:    user.ID.String(),
	})

	return user, nil
}

// ApplyForVendor uploads the logos and stores a PENDING application for the
// authenticated subject.
func (s *Service) ApplyForVendor(ctx context.Context, scope RequestScope, in VendorApplicationInput, logos []Upload) (app *VendorApplication, err error) {
	ctx, span := s.startSpan(ctx, "auth.ApplyForVendor", attribute.Int("vendor.logos", len(logos)))
	defer func() { endSpan(span, err) }()

	if scope.SubjectID == "" {
		return nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(scope.SubjectID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if len(logos) > MaxVendorLogos {
		return nil, ErrTooManyFiles.Clone().
			WithMetadata(map[string]any{"max": MaxVendorLogos, "received": len(logos)})
	}

	urls := make([]string, 0, len(logos))
	if len(logos) > 0 {
		if s.uploader == nil {
			return nil, goerrors.New("asset uploader is not configured", goerrors.CategoryInternal)
		}
		folder := path.Join("vendors", userID.String(), "logos")
		for _, logo := range logos {
			asset, err := s.uploader.Upload(ctx, folder, logo)
			if err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to upload logo").
					WithMetadata(map[string]any{"filename": logo.Filename})
			}
			urls = append(urls, asset.URL)
		}
	}

	handler := &SubmitVendorApplicationHandler{repo: s.repo}
	err = handler.Execute(ctx, SubmitVendorApplicationMessage{
		UserID:     userID,
		Input:      in,
		Logos:      urls,
		OnResponse: func(a *VendorApplication) { app = a },
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventVendorApplication,
		Actor:     userActor(userID.String()),
		UserID:    userID.String(),
		Metadata:  map[string]any{"application_id": app.ID.String(), "store_name": app.StoreName},
	})

	return app, nil
}

// ReviewVendorApplication moves an application to status on behalf of the
// authenticated reviewer. Callers are expected to gate this on RoleAdmin.
func (s *Service) ReviewVendorApplication(ctx context.Context, scope RequestScope, applicationID uuid.UUID, status VendorStatus, reason string) (app *VendorApplication, err error) {
	ctx, span := s.startSpan(ctx, "auth.ReviewVendorApplication",
		attribute.String("vendor.application_id", applicationID.String()),
		attribute.String("vendor.status", string(status)),
	)
	defer func() { endSpan(span, err) }()

	if scope.SubjectID == "" {
		return nil, ErrUnauthenticated
	}

	return s.review.Transition(ctx, userActor(scope.SubjectID), applicationID, status,
		WithTransitionReason(reason),
	)
}

func (s *Service) sendVerification(ctx context.Context, user *User) error {
	if user.Email == "" {
		return nil
	}
	token, err := s.tokens.IssueVerificationToken(user.ID.String(), user.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}
	link := s.link("/verify-email?token=" + url.QueryEscape(token))
	return s.mailer.SendVerification(ctx, user.Email, link)
}
