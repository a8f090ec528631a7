package auth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister             ActivityEventType = "auth.register"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin          ActivityEventType = "auth.social.login"
	ActivityEventRefresh              ActivityEventType = "auth.token.refresh"
	ActivityEventRefreshReuse         ActivityEventType = "auth.token.reuse"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventEmailVerified        ActivityEventType = "auth.email.verified"
	ActivityEventVendorApplication    ActivityEventType = "vendor.application.submitted"
	ActivityEventVendorStatusChanged  ActivityEventType = "vendor.application.status_changed"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// ActorRef identifies who triggered an event. Admin reviews carry the
// admin as actor and the applicant as UserID.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Provider   ProviderKey
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

type fanOutSink []ActivitySink

// ActivitySinks records every event in each sink, in order. A failing sink
// does not stop the others; their errors are joined.
func ActivitySinks(sinks ...ActivitySink) ActivitySink {
	out := make(fanOutSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	switch len(out) {
	case 0:
		return noopActivitySink{}
	case 1:
		return out[0]
	}
	return out
}

func (f fanOutSink) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SpanEventSink adds each event to the span already in ctx, so audit events
// show up inline in the request trace. Without a recording span it does
// nothing.
func SpanEventSink() ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}

		attrs := []attribute.KeyValue{
			attribute.String("actor.id", event.Actor.ID),
			attribute.String("actor.type", event.Actor.Type),
			attribute.String("user.id", event.UserID),
		}
		if event.Provider != "" {
			attrs = append(attrs, attribute.String("auth.provider", string(event.Provider)))
		}
		opts := []trace.EventOption{trace.WithAttributes(attrs...)}
		if !event.OccurredAt.IsZero() {
			opts = append(opts, trace.WithTimestamp(event.OccurredAt))
		}
		span.AddEvent(string(event.EventType), opts...)
		return nil
	})
}

func userActor(userID string) ActorRef {
	return ActorRef{ID: userID, Type: ActorTypeUser}
}

func systemActor() ActorRef {
	return ActorRef{Type: ActorTypeSystem}
}
