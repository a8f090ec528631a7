package auth_test

import (
	"context"
	"sync"
	"testing"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewFixture struct {
	*serviceFixture
	repo   auth.RepositoryManager
	review auth.VendorReview

	mu     sync.Mutex
	events []auth.ActivityEvent
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{serviceFixture: newServiceFixture(t)}
	f.repo = auth.NewRepositoryManager(f.db)
	f.review = auth.NewVendorReview(f.repo,
		auth.WithReviewClock(f.clock.Now),
		auth.WithReviewLogger(auth.NopLogger{}),
		auth.WithReviewActivitySink(auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		})),
	)
	return f
}

// apply registers a customer and files a PENDING application for them
func (f *reviewFixture) apply(t *testing.T, email string) (*auth.AuthResult, *auth.VendorApplication) {
	t.Helper()
	res := f.register(t, email, "s3cret!")
	app, err := f.svc.ApplyForVendor(context.Background(), auth.RequestScope{SubjectID: res.User.ID.String()},
		auth.VendorApplicationInput{StoreName: "Corner Shop"}, nil)
	require.NoError(t, err)
	require.Equal(t, auth.VendorPending, app.Status)
	return res, app
}

func (f *reviewFixture) role(t *testing.T, id uuid.UUID) auth.UserRole {
	t.Helper()
	user, err := f.repo.Users().GetUserTx(context.Background(), f.db, id)
	require.NoError(t, err)
	return user.Role
}

func TestVendorReview_ApprovePromotesApplicant(t *testing.T) {
	f := newReviewFixture(t)
	res, app := f.apply(t, "shop@example.com")
	admin := auth.ActorRef{ID: "admin-1", Type: "user"}

	updated, err := f.review.Transition(context.Background(), admin, app.ID, auth.VendorApproved,
		auth.WithTransitionReason("documents verified"),
	)
	require.NoError(t, err)
	assert.Equal(t, auth.VendorApproved, updated.Status)
	assert.Equal(t, auth.RoleVendor, f.role(t, res.User.ID))

	require.Len(t, f.events, 1)
	event := f.events[0]
	assert.Equal(t, auth.ActivityEventVendorStatusChanged, event.EventType)
	assert.Equal(t, admin, event.Actor)
	assert.Equal(t, res.User.ID.String(), event.UserID)
	assert.Equal(t, f.clock.Now(), event.OccurredAt)
	assert.Equal(t, map[string]any{
		"application_id": app.ID.String(),
		"from":           string(auth.VendorPending),
		"to":             string(auth.VendorApproved),
		"reason":         "documents verified",
	}, event.Metadata)
}

func TestVendorReview_RevokingApprovalDemotesApplicant(t *testing.T) {
	f := newReviewFixture(t)
	res, app := f.apply(t, "revoked@example.com")
	ctx := context.Background()

	_, err := f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorApproved)
	require.NoError(t, err)
	require.Equal(t, auth.RoleVendor, f.role(t, res.User.ID))

	updated, err := f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorRejected)
	require.NoError(t, err)
	assert.Equal(t, auth.VendorRejected, updated.Status)
	assert.Equal(t, auth.RoleCustomer, f.role(t, res.User.ID))

	require.Len(t, f.events, 2)
	assert.Equal(t, "system", f.events[1].Actor.Type)
}

func TestVendorReview_RejectsInvalidTransition(t *testing.T) {
	f := newReviewFixture(t)
	res, app := f.apply(t, "stuck@example.com")
	ctx := context.Background()

	_, err := f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorRejected)
	require.NoError(t, err)

	_, err = f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorApproved)
	require.Error(t, err)
	assert.True(t, auth.MatchError(err, auth.ErrInvalidTransition), "got %v", err)
	assert.Equal(t, auth.RoleCustomer, f.role(t, res.User.ID))

	_, err = f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorStatus("ARCHIVED"))
	assert.True(t, auth.MatchError(err, auth.ErrInvalidTransition))
}

func TestVendorReview_SameStatusIsNoop(t *testing.T) {
	f := newReviewFixture(t)
	_, app := f.apply(t, "same@example.com")

	updated, err := f.review.Transition(context.Background(), auth.ActorRef{}, app.ID, auth.VendorPending)
	require.NoError(t, err)
	assert.Equal(t, auth.VendorPending, updated.Status)
	assert.Empty(t, f.events)
}

func TestVendorReview_UnknownApplication(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.review.Transition(context.Background(), auth.ActorRef{}, uuid.New(), auth.VendorApproved)
	require.Error(t, err)
	assert.True(t, auth.MatchError(err, auth.ErrApplicationNotFound), "got %v", err)
}

func TestVendorReview_BeforeHookRollsBack(t *testing.T) {
	f := newReviewFixture(t)
	res, app := f.apply(t, "hooked@example.com")
	ctx := context.Background()

	_, err := f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorApproved,
		auth.WithBeforeTransitionHook(func(context.Context, auth.TransitionContext) error { return auth.ErrForbidden }),
	)
	require.Error(t, err)
	assert.True(t, auth.MatchError(err, auth.ErrForbidden), "got %v", err)
	assert.Equal(t, auth.RoleCustomer, f.role(t, res.User.ID))
	assert.Empty(t, f.events)

	var seen auth.TransitionContext
	_, err = f.review.Transition(ctx, auth.ActorRef{}, app.ID, auth.VendorApproved,
		auth.WithTransitionMetadata(map[string]any{"ticket": "KYC-7"}),
		auth.WithAfterTransitionHook(func(_ context.Context, tc auth.TransitionContext) error {
			seen = tc
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, auth.VendorPending, seen.From)
	assert.Equal(t, auth.VendorApproved, seen.To)
	assert.Equal(t, "KYC-7", seen.Meta.Metadata["ticket"])
	assert.Equal(t, auth.RoleVendor, f.role(t, res.User.ID))
}

func TestService_ReviewVendorApplication(t *testing.T) {
	f := newReviewFixture(t)
	res, app := f.apply(t, "svc@example.com")
	ctx := context.Background()

	_, err := f.svc.ReviewVendorApplication(ctx, auth.RequestScope{}, app.ID, auth.VendorApproved, "")
	assert.True(t, auth.MatchError(err, auth.ErrUnauthenticated))

	updated, err := f.svc.ReviewVendorApplication(ctx, auth.RequestScope{SubjectID: uuid.NewString()},
		app.ID, auth.VendorApproved, "looks good")
	require.NoError(t, err)
	assert.Equal(t, auth.VendorApproved, updated.Status)
	assert.Equal(t, auth.RoleVendor, f.role(t, res.User.ID))
	assert.Contains(t, f.eventTypes(), auth.ActivityEventVendorStatusChanged)
}
