package activitymap_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUserEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType:  auth.ActivityEventSocialLogin,
		Actor:      auth.ActorRef{ID: "user-100", Type: "user"},
		UserID:     "user-100",
		Provider:   auth.ProviderGoogle,
		Metadata:   map[string]any{"created": true},
		OccurredAt: ts,
	})

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventSocialLogin), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "storefront.auth", out.Channel)
	assert.Equal(t, ts, out.OccurredAt)
	assert.Equal(t, map[string]any{
		"created":                        true,
		activitymap.MetadataKeyActorType: "user",
		activitymap.MetadataKeyProvider:  string(auth.ProviderGoogle),
	}, out.Metadata)
}

func TestNormalizeVendorApplicationEvent(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventVendorStatusChanged,
		Actor:     auth.ActorRef{ID: "admin-1", Type: "user"},
		UserID:    "user-7",
		Metadata: map[string]any{
			activitymap.MetadataKeyApplicationID: "app-9",
			"from":                               "PENDING",
			"to":                                 "APPROVED",
		},
	}, activitymap.WithChannel("audit"))

	assert.Equal(t, "admin-1", out.ActorID)
	assert.Equal(t, "vendor_application", out.ObjectType)
	assert.Equal(t, "app-9", out.ObjectID)
	assert.Equal(t, "audit", out.Channel)
	assert.Equal(t, "APPROVED", out.Metadata["to"])
}

func TestNormalizeFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Metadata:  map[string]any{"email": "a@b.c"},
	}

	out := activitymap.Normalize(event, activitymap.WithClock(func() time.Time { return now }))
	assert.Equal(t, "system", out.ActorID)
	assert.Equal(t, now.UTC(), out.OccurredAt)
	assert.Empty(t, out.ObjectID)

	out = activitymap.Normalize(event, activitymap.WithActorFallback("edge"))
	assert.Equal(t, "edge", out.ActorID)

	out.Metadata["email"] = "changed"
	assert.Equal(t, "a@b.c", event.Metadata["email"])
}

type captureLogger struct {
	auth.NopLogger
	lines []string
}

func (l *captureLogger) Info(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.LogSink(logger)

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		UserID:    "user-3",
	}))

	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], string(auth.ActivityEventLogout))
	assert.Contains(t, logger.lines[0], "user-3")
}
