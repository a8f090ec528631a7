package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type AccountVerificationMesage struct {
	Token      string `json:"emailVerificationToken" doc:"Email verification token"`
	OnResponse func(user *User)
}

func (m AccountVerificationMesage) Type() string { return "user.verify_email" }

type AccountVerificationHandler struct {
	repo   RepositoryManager
	tokens TokenService
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMesage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMesage) error {
	claims, err := h.tokens.Decode(event.Token, TokenTypeVerifyEmail)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.Users().GetByEmailTx(ctx, tx, claims.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken.Clone().WithMetadata(map[string]any{"reason": "user not found"})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
		}

		// the email changed hands since the link was sent
		if found.ID.String() != claims.UserID() {
			return ErrInvalidToken.Clone().WithMetadata(map[string]any{"reason": "subject mismatch"})
		}

		if found.EmailVerified {
			return ErrEmailAlreadyVerified
		}

		if err := h.repo.Users().MarkEmailVerifiedTx(ctx, tx, found.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
		}
		found.EmailVerified = true
		user = found
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
