package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VendorApplications stores vendor onboarding requests, one per user
type VendorApplications interface {
	repository.Repository[*VendorApplication]
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*VendorApplication, error)
	GetApplicationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VendorApplication, error)
	SubmitTx(ctx context.Context, tx bun.IDB, app *VendorApplication) (*VendorApplication, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status VendorStatus) error
}

type vendorApplications struct {
	repository.Repository[*VendorApplication]
}

func NewVendorApplicationsRepository(db *bun.DB) VendorApplications {
	repo := repository.NewRepository[*VendorApplication](db, repository.ModelHandlers[*VendorApplication]{
		NewRecord: func() *VendorApplication { return &VendorApplication{} },
		GetID: func(r *VendorApplication) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *VendorApplication, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	})
	return &vendorApplications{Repository: repo}
}

func (v *vendorApplications) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*VendorApplication, error) {
	return v.findOne(ctx, tx, "user_id", userID)
}

func (v *vendorApplications) GetApplicationTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*VendorApplication, error) {
	return v.findOne(ctx, tx, "id", id)
}

// UpdateStatusTx sets the review status. Transition rules live in
// VendorReview, not here.
func (v *vendorApplications) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status VendorStatus) error {
	res, err := tx.NewUpdate().
		Model((*VendorApplication)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

func (v *vendorApplications) findOne(ctx context.Context, tx bun.IDB, column string, value uuid.UUID) (*VendorApplication, error) {
	record := &VendorApplication{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value.String()})
		}
		return nil, err
	}
	return record, nil
}

// SubmitTx creates a PENDING application. A second application for the
// same user fails with ErrDuplicateApplication.
func (v *vendorApplications) SubmitTx(ctx context.Context, tx bun.IDB, app *VendorApplication) (*VendorApplication, error) {
	if _, err := v.GetByUserIDTx(ctx, tx, app.UserID); err == nil {
		return nil, ErrDuplicateApplication
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.Status = VendorPending
	if app.Documents == nil {
		app.Documents = []string{}
	}
	if app.Logos == nil {
		app.Logos = []string{}
	}

	created, err := v.Repository.CreateTx(ctx, tx, app)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}
	return created, nil
}
