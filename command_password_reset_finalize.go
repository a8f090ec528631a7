package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Session  string `json:"session" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Reset password session token"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	ttl      time.Duration
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		ttl:      DefaultResetTTL,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithHasher overrides the password hasher.
func (h *FinalizePasswordResetHandler) WithHasher(hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithClock overrides the time source and link validity.
func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time, ttl time.Duration) *FinalizePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	id, err := uuid.Parse(event.Session)
	if err != nil {
		return ErrResetTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	var reset *PasswordReset
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		resets := h.repo.PasswordResets()

		found, err := resets.GetResetTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrResetTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}
		reset = found

		switch reset.Status {
		case ResetRequestedStatus:
		case ResetSupersededStatus:
			return ErrResetTokenInvalid.Clone().WithMetadata(map[string]any{"reason": "superseded"})
		default:
			return ErrResetTokenUsed
		}

		if reset.CreatedAt == nil {
			return goerrors.New("password reset record is missing creation date", goerrors.CategoryInternal)
		}

		if h.now().Sub(*reset.CreatedAt) > h.ttl {
			return ErrResetTokenInvalid.Clone().WithMetadata(map[string]any{"reason": "expired"})
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, reset.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		if err := resets.ConsumeTx(ctx, tx, reset.ID, h.now()); err != nil {
			if MatchError(err, ErrResetTokenUsed) {
				return err
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password reset status")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, reset)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, reset *PasswordReset) {
	if reset == nil || reset.UserID == uuid.Nil {
		return
	}

	event := ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		Actor:      userActor(reset.UserID.String()),
		UserID:     reset.UserID.String(),
		OccurredAt: h.now(),
		Metadata: map[string]any{
			"reset_id": reset.ID.String(),
		},
	}

	if err := h.activity.Record(ctx, event); err != nil {
		h.logger.Error("failed to record password reset activity: %v", err)
	}
}
