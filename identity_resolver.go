package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CanonicalIdentity is the provider-agnostic view of a third-party profile
type CanonicalIdentity struct {
	Provider  ProviderKey `json:"provider"`
	SubjectID string      `json:"subject_id"`
	Email     string      `json:"email,omitempty"`
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar,omitempty"`
}

// Validate checks the fields every normalizer must fill
func (c *CanonicalIdentity) Validate() error {
	if c == nil {
		return goerrors.New("missing identity", goerrors.CategoryBadInput)
	}
	if !c.Provider.IsValid() {
		return ErrUnsupportedProvider
	}
	if strings.TrimSpace(c.SubjectID) == "" {
		return goerrors.New("identity is missing the provider subject id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"provider": string(c.Provider)})
	}
	return nil
}

type identityResolver struct {
	repo   RepositoryManager
	logger Logger
}

var _ IdentityResolver = (*identityResolver)(nil)

// NewIdentityResolver finds, links or creates users for provider identities
func NewIdentityResolver(repo RepositoryManager, logger Logger) IdentityResolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &identityResolver{repo: repo, logger: logger}
}

// Resolve runs in a single transaction:
//  1. the provider subject is already linked: return its owner unchanged,
//     whatever email the provider reports now
//  2. email present and owned: link the provider when that slot is empty,
//     return the user unchanged when it already holds another subject
//  3. still nothing: create a verified CUSTOMER carrying the provider id
func (r *identityResolver) Resolve(ctx context.Context, identity *CanonicalIdentity) (*User, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(identity.Email)
	var user *User

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := r.repo.Users()

		owner, err := users.GetByProviderSubjectTx(ctx, tx, identity.Provider, identity.SubjectID)
		switch {
		case err == nil:
			user = owner
			return nil
		case !repository.IsRecordNotFound(err):
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user by provider")
		}

		if email != "" {
			found, err := users.GetByEmailTx(ctx, tx, email)
			switch {
			case err == nil:
				if current := found.ProviderSubject(identity.Provider); current != "" {
					r.logger.Warn("user %s already linked to another %s subject, not relinking", found.ID, identity.Provider)
					user = found
					return nil
				}
				linked, err := users.LinkProviderTx(ctx, tx, found, identity.Provider, identity.SubjectID, identity.Avatar)
				if err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link provider identity")
				}
				r.logger.Info("linked %s identity to user %s", identity.Provider, found.ID)
				user = linked
				return nil
			case !repository.IsRecordNotFound(err):
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user by email")
			}
		}

		record := &User{
			ID:            uuid.New(),
			Email:         email,
			Name:          displayName(identity),
			Role:          RoleCustomer,
			Avatar:        identity.Avatar,
			EmailVerified: true,
		}
		record.SetProviderSubject(identity.Provider, identity.SubjectID)

		created, err := users.RegisterTx(ctx, tx, record)
		if err != nil {
			return err
		}
		r.logger.Info("created user %s from %s identity", created.ID, identity.Provider)
		user = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve identity")
	}

	return user, nil
}

func displayName(identity *CanonicalIdentity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return string(identity.Provider) + " user"
}
