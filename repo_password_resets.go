package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets stores single use reset sessions. The row id is the token
// mailed to the user.
type PasswordResets interface {
	repository.Repository[*PasswordReset]
	GetResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PasswordReset, error)
	// ConsumeTx flips a REQUESTED reset to CHANGED. It fails with
	// ErrResetTokenUsed when another request got there first.
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	// SupersedeTx retires every REQUESTED reset of the user and returns how
	// many were retired.
	SupersedeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error)
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
}

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(r *PasswordReset) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *PasswordReset, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
	return &passwordResets{Repository: repo}
}

func (p *passwordResets) GetResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PasswordReset, error) {
	reset := &PasswordReset{}
	err := tx.NewSelect().
		Model(reset).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return reset, nil
}

func (p *passwordResets) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	at = at.UTC()
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetChangedStatus).
		Set("reseted_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrResetTokenUsed
	}
	return nil
}

func (p *passwordResets) SupersedeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetSupersededStatus).
		Set("updated_at = ?", at.UTC()).
		Where("user_id = ?", userID).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
