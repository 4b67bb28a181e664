package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"admincore/internal/model"
)

func TestAddRecipient(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			h := newHarness(t, backend)
			ctx := context.Background()

			_, err := h.registry.AddRecipient(ctx, "not-an-email")
			assert.ErrorIs(t, err, model.ErrInvalidRecipient)

			s, err := h.registry.AddRecipient(ctx, "a@b.com")
			require.NoError(t, err)
			assert.Equal(t, []string{"ops@example.com", "lead@example.com", "a@b.com"}, s.EmailRecipients)

			_, err = h.registry.AddRecipient(ctx, "a@b.com")
			assert.ErrorIs(t, err, model.ErrDuplicate)
			_, err = h.registry.AddRecipient(ctx, "A@B.com")
			assert.ErrorIs(t, err, model.ErrDuplicate)

			s, err = h.registry.Settings(ctx)
			require.NoError(t, err)
			assert.Len(t, s.EmailRecipients, 3)
		})
	}
}

func TestRemoveRecipient(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	s, err := h.registry.RemoveRecipient(ctx, "OPS@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead@example.com"}, s.EmailRecipients)

	notified := 0
	h.registry.OnChange(func(model.NotificationSettings) { notified++ })
	s, err = h.registry.RemoveRecipient(ctx, "ops@example.com")
	require.NoError(t, err, "removing an absent address is a no-op")
	assert.Equal(t, []string{"lead@example.com"}, s.EmailRecipients)
	assert.Zero(t, notified)
}

func TestListenersSeeChangesInSaveOrder(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []int
	)
	h.registry.OnChange(func(s model.NotificationSettings) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen = append(seen, s.ReminderDays[0])
		mu.Unlock()
	})

	var g errgroup.Group
	for i := 1; i <= 20; i++ {
		i := i
		g.Go(func() error {
			days := []int{i}
			_, err := h.registry.UpdateSettings(ctx, model.SettingsPatch{ReminderDays: &days})
			return err
		})
	}
	require.NoError(t, g.Wait())

	s, err := h.registry.Settings(ctx)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 20)
	assert.Equal(t, s.ReminderDays[0], seen[len(seen)-1], "last delivery matches the stored settings")
}

func TestUpdateSettingsValidatesAndNotifies(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	var seen []model.NotificationSettings
	h.registry.OnChange(func(s model.NotificationSettings) { seen = append(seen, s) })

	days := []int{7, 1, 3, 3, 14}
	s, err := h.registry.UpdateSettings(ctx, model.SettingsPatch{ReminderDays: &days})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7, 14}, s.ReminderDays)
	require.Len(t, seen, 1)
	assert.Equal(t, s, seen[0])

	bad := []int{0, 3}
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{ReminderDays: &bad})
	assert.ErrorIs(t, err, model.ErrValidation)

	clock := "25:61"
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{DigestTime: &clock})
	assert.ErrorIs(t, err, model.ErrValidation)

	day := "someday"
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{DigestDay: &day})
	assert.ErrorIs(t, err, model.ErrValidation)

	recipients := []string{"x@example.com", "bad address"}
	_, err = h.registry.UpdateSettings(ctx, model.SettingsPatch{EmailRecipients: &recipients})
	assert.ErrorIs(t, err, model.ErrInvalidRecipient)

	assert.Len(t, seen, 1, "rejected updates do not notify")
	s, err = h.registry.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7, 14}, s.ReminderDays)
}

func TestInitKeepsExistingState(t *testing.T) {
	h := newHarness(t, "memory")
	ctx := context.Background()

	off := false
	_, err := h.registry.UpdatePreference(ctx, "new_inquiry", model.PreferencePatch{Enabled: &off})
	require.NoError(t, err)
	_, err = h.registry.AddRecipient(ctx, "extra@example.com")
	require.NoError(t, err)

	require.NoError(t, h.registry.Init(ctx))

	p, err := h.registry.Preference(ctx, "new_inquiry")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	s, err := h.registry.Settings(ctx)
	require.NoError(t, err)
	assert.Contains(t, s.EmailRecipients, "extra@example.com")

	prefs, err := h.registry.Preferences(ctx)
	require.NoError(t, err)
	assert.Len(t, prefs, len(model.DefaultPreferences()))
}

func TestUpdatePreference(t *testing.T) {
	h := newHarness(t, "sqlite")
	ctx := context.Background()

	weekly := model.FrequencyWeekly
	p, err := h.registry.UpdatePreference(ctx, "new_application", model.PreferencePatch{Frequency: &weekly})
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyWeekly, p.Frequency)

	bogus := model.Frequency("hourly")
	_, err = h.registry.UpdatePreference(ctx, "new_application", model.PreferencePatch{Frequency: &bogus})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.registry.UpdatePreference(ctx, "missing", model.PreferencePatch{Frequency: &weekly})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
