package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByProviderSubject(ctx context.Context, key ProviderKey, subject string) (*User, error)
	GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, key ProviderKey, subject string) (*User, error)

	LinkProviderTx(ctx context.Context, tx bun.IDB, user *User, key ProviderKey, subject, avatar string) (*User, error)
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) error
	GetUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return created, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}
	return a.findOne(ctx, tx, "email", email)
}

func (a *users) GetByProviderSubject(ctx context.Context, key ProviderKey, subject string) (*User, error) {
	return a.GetByProviderSubjectTx(ctx, a.db, key, subject)
}

func (a *users) GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, key ProviderKey, subject string) (*User, error) {
	column := key.Column()
	if column == "" {
		return nil, ErrUnsupportedProvider
	}
	if strings.TrimSpace(subject) == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"provider": string(key)})
	}
	return a.findOne(ctx, tx, column, subject)
}

// LinkProviderTx stores the provider subject on an existing user, refreshes
// the avatar when the provider sent one and marks the email as verified.
func (a *users) LinkProviderTx(ctx context.Context, tx bun.IDB, user *User, key ProviderKey, subject, avatar string) (*User, error) {
	if !user.SetProviderSubject(key, subject) {
		return nil, ErrUnsupportedProvider
	}
	if avatar != "" {
		user.Avatar = avatar
	}
	user.EmailVerified = true
	now := time.Now().UTC()
	user.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(user).
		Column(key.Column(), "avatar", "email_verified", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("email_verified = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

func (a *users) GetUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	return a.findOne(ctx, tx, "id", id.String())
}

func (a *users) UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}
	return record, nil
}

func expectAffected(res sql.Result, id uuid.UUID) error {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleCustomer
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
