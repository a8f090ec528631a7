package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"shopper@example.com" doc:"Account email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// Reset is nil when the email is unknown
	Reset *PasswordReset
	User  *User
	// Superseded counts the older links this request invalidated
	Superseded int64
}

// InitializePasswordResetHandler opens a reset session. Unknown emails are
// not an error so the caller can answer the same way for every address.
type InitializePasswordResetHandler struct {
	repo    RepositoryManager
	now     func() time.Time
	timeout time.Duration
}

func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:    repo,
		now:     time.Now,
		timeout: 10 * time.Second,
	}
}

func (h *InitializePasswordResetHandler) WithClock(now func() time.Time) *InitializePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during password reset initialization")
	}

	email := strings.ToLower(strings.TrimSpace(event.Email))
	if email == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp := &InitializePasswordResetResponse{}
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		created := h.now().UTC()
		superseded, err := h.repo.PasswordResets().SupersedeTx(ctx, tx, user.ID, created)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retire previous password resets")
		}

		reset, err := h.repo.PasswordResets().CreateTx(ctx, tx, &PasswordReset{
			ID:        uuid.New(),
			UserID:    user.ID,
			Email:     user.Email,
			Status:    ResetRequestedStatus,
			CreatedAt: &created,
			UpdatedAt: &created,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}

		resp.Reset, resp.User, resp.Superseded = reset, user, superseded
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}
