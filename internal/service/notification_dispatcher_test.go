package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admincore/internal/model"
)

func event(typ, title string) model.NotificationEvent {
	return model.NotificationEvent{Type: typ, Title: title}
}

func TestIngestRoutesByPreference(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	path, err := h.dispatcher.Ingest(ctx, event("new_inquiry", "Question about opening hours"))
	require.NoError(t, err)
	assert.Equal(t, model.PathInstant, path)
	msgs := h.transport.Messages()
	require.Len(t, msgs, 2, "one message per recipient")
	assert.Contains(t, msgs[0].Subject, "Question about opening hours")

	path, err = h.dispatcher.Ingest(ctx, event("inquiry_reply", "Re: opening hours"))
	require.NoError(t, err)
	assert.Equal(t, model.PathDigest, path)
	assert.Equal(t, 1, h.dispatcher.Pending(model.FrequencyDaily))

	path, err = h.dispatcher.Ingest(ctx, event("weekly_report", "Traffic summary"))
	require.NoError(t, err)
	assert.Equal(t, model.PathDigest, path)
	assert.Equal(t, 1, h.dispatcher.Pending(model.FrequencyWeekly))

	path, err = h.dispatcher.Ingest(ctx, event("content_published", "New press release"))
	require.NoError(t, err)
	assert.Equal(t, model.PathSuppressed, path, "disabled preference")

	never := model.FrequencyNever
	_, err = h.registry.UpdatePreference(ctx, "security_alert", model.PreferencePatch{Frequency: &never})
	require.NoError(t, err)
	path, err = h.dispatcher.Ingest(ctx, event("security_alert", "Failed sign-ins"))
	require.NoError(t, err)
	assert.Equal(t, model.PathSuppressed, path)

	assert.Len(t, h.transport.Messages(), 2)
}

func TestIngestRejectsUnknownTypes(t *testing.T) {
	h := newHarness(t, "memory")
	_, err := h.dispatcher.Ingest(context.Background(), event("fax_received", "Fax"))
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = h.dispatcher.Ingest(context.Background(), event("new_inquiry", " "))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestIngestHonoursMasterSwitches(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	noDigest := false
	_, err := h.registry.UpdateSettings(ctx, model.SettingsPatch{DailyDigest: &noDigest})
	require.NoError(t, err)
	path, err := h.dispatcher.Ingest(ctx, event("inquiry_reply", "Re: hello"))
	require.NoError(t, err)
	assert.Equal(t, model.PathSuppressed, path)
	assert.Zero(t, h.dispatcher.Pending(model.FrequencyDaily))

	path, err = h.dispatcher.Ingest(ctx, event("new_inquiry", "Hello"))
	require.NoError(t, err)
	assert.Equal(t, model.PathInstant, path, "instant events ignore the digest switch")

	off := false
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{Enabled: &off})
	require.NoError(t, err)
	path, err = h.dispatcher.Ingest(ctx, event("new_inquiry", "Hello again"))
	require.NoError(t, err)
	assert.Equal(t, model.PathSuppressed, path)
}

func TestRunDigestGroupsByCategory(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	for _, ev := range []model.NotificationEvent{
		{Type: "application_update", Title: "Candidate 12 uploaded a CV", OccurredAt: today.Add(2 * time.Hour)},
		{Type: "inquiry_reply", Title: "Re: parking", OccurredAt: today.Add(time.Hour)},
		{Type: "application_update", Title: "Candidate 7 withdrew", OccurredAt: today},
	} {
		_, err := h.dispatcher.Ingest(ctx, ev)
		require.NoError(t, err)
	}

	report, err := h.dispatcher.RunDigest(ctx, model.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 2, report.Delivered)
	assert.False(t, report.Requeued)
	assert.Zero(t, h.dispatcher.Pending(model.FrequencyDaily))

	msgs := h.transport.Messages()
	require.Len(t, msgs, 2)
	body := msgs[0].Body
	assert.Contains(t, msgs[0].Subject, "3 notification(s)")
	assert.Contains(t, body, "Inquiries (1)")
	assert.Contains(t, body, "Jobs (2)")
	assert.Less(t, strings.Index(body, "Candidate 7 withdrew"), strings.Index(body, "Candidate 12 uploaded a CV"), "oldest first")

	empty, err := h.dispatcher.RunDigest(ctx, model.FrequencyDaily)
	require.NoError(t, err)
	assert.Zero(t, empty.Events)
	assert.Len(t, h.transport.Messages(), 2)
}

func TestRunDigestRequeuesWhenEveryRecipientFails(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()
	_, err := h.dispatcher.Ingest(ctx, event("weekly_report", "Traffic summary"))
	require.NoError(t, err)

	h.transport.FailFor("ops@example.com", "lead@example.com")
	report, err := h.dispatcher.RunDigest(ctx, model.FrequencyWeekly)
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.True(t, report.Requeued)
	assert.Equal(t, 1, h.dispatcher.Pending(model.FrequencyWeekly))

	h.transport.Heal()
	h.transport.FailFor("lead@example.com")
	report, err = h.dispatcher.RunDigest(ctx, model.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	assert.False(t, report.Requeued)
	assert.Zero(t, h.dispatcher.Pending(model.FrequencyWeekly))
}

func TestRunDigestRejectsInstantFrequency(t *testing.T) {
	h := newHarness(t, "memory")
	_, err := h.dispatcher.RunDigest(context.Background(), model.FrequencyInstant)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRunDigestRechecksPreferences(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()
	for _, typ := range []string{"inquiry_reply", "application_update"} {
		_, err := h.dispatcher.Ingest(ctx, event(typ, "Queued "+typ))
		require.NoError(t, err)
	}
	_, err := h.dispatcher.Ingest(ctx, event("weekly_report", "Traffic summary"))
	require.NoError(t, err)

	off := false
	_, err = h.registry.UpdatePreference(ctx, "inquiry_reply", model.PreferencePatch{Enabled: &off})
	require.NoError(t, err)
	never := model.FrequencyNever
	_, err = h.registry.UpdatePreference(ctx, "weekly_report", model.PreferencePatch{Frequency: &never})
	require.NoError(t, err)

	report, err := h.dispatcher.RunDigest(ctx, model.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Events)
	assert.Equal(t, 1, report.Suppressed)
	msgs := h.transport.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "Queued application_update")
	assert.NotContains(t, msgs[0].Body, "Queued inquiry_reply")

	report, err = h.dispatcher.RunDigest(ctx, model.FrequencyWeekly)
	require.NoError(t, err)
	assert.Zero(t, report.Events)
	assert.Equal(t, 1, report.Suppressed)
	assert.Zero(t, h.dispatcher.Pending(model.FrequencyWeekly))
	assert.Len(t, h.transport.Messages(), 2, "nothing sent for a preference set to never")
}

func TestRunDigestDropsEventsWhoseFrequencyChanged(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()
	_, err := h.dispatcher.Ingest(ctx, event("inquiry_reply", "Re: parking"))
	require.NoError(t, err)

	weekly := model.FrequencyWeekly
	_, err = h.registry.UpdatePreference(ctx, "inquiry_reply", model.PreferencePatch{Frequency: &weekly})
	require.NoError(t, err)

	report, err := h.dispatcher.RunDigest(ctx, model.FrequencyDaily)
	require.NoError(t, err)
	assert.Zero(t, report.Events)
	assert.Equal(t, 1, report.Suppressed)
	assert.Empty(t, h.transport.Messages())
}

func TestRunDigestSendsNothingWhenSwitchedOff(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()
	_, err := h.dispatcher.Ingest(ctx, event("inquiry_reply", "Re: parking"))
	require.NoError(t, err)
	_, err = h.dispatcher.Ingest(ctx, event("application_update", "Candidate 3 withdrew"))
	require.NoError(t, err)

	off := false
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{Enabled: &off})
	require.NoError(t, err)

	report, err := h.dispatcher.RunDigest(ctx, model.FrequencyDaily)
	require.NoError(t, err)
	assert.Zero(t, report.Events)
	assert.Equal(t, 2, report.Suppressed)
	assert.False(t, report.Requeued)
	assert.Zero(t, h.dispatcher.Pending(model.FrequencyDaily))
	assert.Empty(t, h.transport.Messages())
}

func TestRequeueKeepsQueueCap(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()
	d := h.dispatcher

	filler := make([]digestEntry, maxQueuedEvents)
	for i := range filler {
		filler[i] = digestEntry{category: "Inquiries", event: event("inquiry_reply", "filler")}
	}
	d.mu.Lock()
	d.queue[model.FrequencyDaily] = filler
	d.mu.Unlock()

	d.requeue(model.FrequencyDaily, []digestEntry{
		{category: "Jobs", event: event("application_update", "oldest")},
	})
	assert.Equal(t, maxQueuedEvents, d.Pending(model.FrequencyDaily))
	d.mu.Lock()
	head := d.queue[model.FrequencyDaily][0]
	d.mu.Unlock()
	assert.Equal(t, "filler", head.event.Title, "oldest entry dropped first")

	_, err := d.Ingest(ctx, event("inquiry_reply", "newest"))
	require.NoError(t, err)
	assert.Equal(t, maxQueuedEvents, d.Pending(model.FrequencyDaily))
}
