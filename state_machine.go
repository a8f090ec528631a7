package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	TextCodeInvalidTransition   = "INVALID_VENDOR_STATUS_TRANSITION"
	TextCodeApplicationNotFound = "VENDOR_APPLICATION_NOT_FOUND"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid vendor status transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrApplicationNotFound is returned for unknown application ids.
var ErrApplicationNotFound = goerrors.New("vendor application not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeApplicationNotFound).
	WithCode(goerrors.CodeNotFound)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks. Before hooks run inside the
// transaction, so an error rolls the transition back.
type TransitionContext struct {
	Actor       ActorRef
	Application *VendorApplication
	From        VendorStatus
	To          VendorStatus
	Meta        TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// VendorReview moves vendor applications between PENDING, APPROVED and
// REJECTED and keeps the applicant role in step: approval promotes a
// customer to VENDOR, revoking an approval demotes back to CUSTOMER.
type VendorReview interface {
	Transition(ctx context.Context, actor ActorRef, applicationID uuid.UUID, target VendorStatus, opts ...TransitionOption) (*VendorApplication, error)
}

// VendorReviewOption customizes state machine construction.
type VendorReviewOption func(*vendorReview)

// WithReviewActivitySink sets the ActivitySink used to publish status changes.
func WithReviewActivitySink(sink ActivitySink) VendorReviewOption {
	return func(r *vendorReview) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithReviewLogger overrides the logger used for sink failures.
func WithReviewLogger(logger Logger) VendorReviewOption {
	return func(r *vendorReview) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReviewClock injects a custom clock
func WithReviewClock(clock func() time.Time) VendorReviewOption {
	return func(r *vendorReview) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed once the update is committed.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewVendorReview returns the default implementation backed by repo.
func NewVendorReview(repo RepositoryManager, opts ...VendorReviewOption) VendorReview {
	r := &vendorReview{
		repo: repo,
		transitions: map[VendorStatus]map[VendorStatus]struct{}{
			VendorPending: {
				VendorApproved: {},
				VendorRejected: {},
			},
			VendorApproved: {
				VendorRejected: {},
			},
			VendorRejected: {
				VendorPending: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

type vendorReview struct {
	repo         RepositoryManager
	transitions  map[VendorStatus]map[VendorStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (r *vendorReview) Transition(ctx context.Context, actor ActorRef, applicationID uuid.UUID, target VendorStatus, opts ...TransitionOption) (*VendorApplication, error) {
	if !target.IsValid() {
		return nil, ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"to":     target,
			"reason": "unknown target status",
		})
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	var (
		app     *VendorApplication
		tc      TransitionContext
		changed bool
	)

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := r.repo.VendorApplications().GetApplicationTx(ctx, tx, applicationID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrApplicationNotFound.Clone().
					WithMetadata(map[string]any{"application_id": applicationID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load vendor application")
		}
		app = found

		from := found.Status
		if from == target {
			return nil
		}

		if !r.canTransition(from, target) {
			return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
				"from": from,
				"to":   target,
			})
		}

		tc = TransitionContext{
			Actor:       actor,
			Application: found,
			From:        from,
			To:          target,
			Meta:        options.cloneMetadata(),
		}

		if err := r.runHooks(ctx, options.beforeHooks, tc); err != nil {
			return err
		}

		if err := r.repo.VendorApplications().UpdateStatusTx(ctx, tx, found.ID, target); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update vendor status")
		}

		if err := r.syncRole(ctx, tx, found.UserID, target); err != nil {
			return err
		}

		found.Status = target
		changed = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "vendor status transition failed")
	}

	if !changed {
		return app, nil
	}

	if err := r.runHooks(ctx, options.afterHooks, tc); err != nil {
		return app, err
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVendorStatusChanged,
		Actor:     actor,
		UserID:    app.UserID.String(),
		Metadata:  r.transitionMetadata(tc),
	})

	return app, nil
}

// syncRole promotes on approval and demotes when an approval is revoked.
// Admin accounts are never touched.
func (r *vendorReview) syncRole(ctx context.Context, tx bun.IDB, userID uuid.UUID, target VendorStatus) error {
	user, err := r.repo.Users().GetUserTx(ctx, tx, userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load applicant")
	}

	var role UserRole
	switch {
	case target == VendorApproved && user.Role == RoleCustomer:
		role = RoleVendor
	case target != VendorApproved && user.Role == RoleVendor:
		role = RoleCustomer
	default:
		return nil
	}

	if err := r.repo.Users().UpdateRoleTx(ctx, tx, userID, role); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update applicant role")
	}
	return nil
}

func (r *vendorReview) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (r *vendorReview) canTransition(from, to VendorStatus) bool {
	if allowed, ok := r.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (r *vendorReview) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = systemActor()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	if err := normalizeActivitySink(r.activitySink).Record(ctx, event); err != nil {
		r.logger.Warn("vendor review activity sink error: %v", err)
	}
}

func (r *vendorReview) transitionMetadata(tc TransitionContext) map[string]any {
	result := map[string]any{
		"application_id": tc.Application.ID.String(),
		"from":           string(tc.From),
		"to":             string(tc.To),
	}
	if tc.Meta.Reason != "" {
		result["reason"] = tc.Meta.Reason
	}
	for k, v := range tc.Meta.Metadata {
		result[k] = v
	}
	return result
}
