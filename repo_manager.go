package auth

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager groups the storefront identity tables behind one
// transaction boundary. Inside RunInTx only the *Tx methods may be used.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	PasswordResets() PasswordResets
	VendorApplications() VendorApplications
}

type repositories struct {
	db                 *bun.DB
	users              Users
	passwordResets     PasswordResets
	vendorApplications VendorApplications
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &repositories{
		db:                 db,
		users:              NewUsersRepository(db),
		passwordResets:     NewPasswordResetsRepository(db),
		vendorApplications: NewVendorApplicationsRepository(db),
	}
}

func (r *repositories) Validate() error {
	var missing []string
	if r.db == nil {
		missing = append(missing, "db")
	}
	if r.users == nil {
		missing = append(missing, "users")
	}
	if r.passwordResets == nil {
		missing = append(missing, "password_resets")
	}
	if r.vendorApplications == nil {
		missing = append(missing, "vendor_applications")
	}
	if len(missing) == 0 {
		return nil
	}
	return goerrors.New("repositories not initialized: "+strings.Join(missing, ", "), goerrors.CategoryInternal).
		WithMetadata(map[string]any{"missing": missing})
}

func (r *repositories) MustValidate() {
	if err := r.Validate(); err != nil {
		panic(err)
	}
}

// RunInTx refuses to open a transaction for an already cancelled request.
func (r *repositories) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.RunInTx(ctx, opts, f)
}

func (r *repositories) Users() Users                           { return r.users }
func (r *repositories) PasswordResets() PasswordResets         { return r.passwordResets }
func (r *repositories) VendorApplications() VendorApplications { return r.vendorApplications }
