package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/internal/model"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTask(title string) model.Task {
	return model.Task{
		Title:      title,
		Category:   model.CategoryFinance,
		DueDate:    time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
		AssignedTo: "Jane Doe",
		Department: "Finance",
		Details:    []string{"collect invoices"},
	}
}

func newDeadline(title string) model.Deadline {
	return model.Deadline{
		Title:      title,
		Type:       model.DeadlineTender,
		DueDate:    time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		AssignedTo: "John Roe",
		Department: "Procurement",
	}
}

func backends(t *testing.T, clock *fixedClock) map[string]Store {
	t.Helper()
	logger := zap.NewNop()
	out := map[string]Store{"memory": NewMemoryStore(clock.Now, logger)}

	sqlite, err := NewSQLiteStore(":memory:", clock.Now, logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	out["sqlite"] = sqlite

	if dsn := os.Getenv("ADMINCORE_TEST_POSTGRES_DSN"); dsn != "" {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		for _, table := range []string{"tasks", "deadlines", "notification_settings", "notification_preferences", "reminder_records", "schema_version"} {
			_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
		}
		pg := NewPostgresStore(pool, clock.Now, logger)
		require.NoError(t, pg.Migrate(ctx))
		t.Cleanup(func() { pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func TestStoreTaskLifecycle(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, err := s.CreateTask(ctx, newTask("Close books"))
			require.NoError(t, err)
			b, err := s.CreateTask(ctx, newTask("Pay suppliers"))
			require.NoError(t, err)
			assert.Greater(t, b.ID, a.ID)
			assert.Equal(t, model.TaskPending, a.Status)
			assert.Equal(t, model.PriorityMedium, a.Priority)
			assert.True(t, a.CreatedAt.Equal(a.UpdatedAt))
			assert.Equal(t, model.DateOf(newTask("").DueDate), a.DueDate.UTC())

			clock.t = clock.t.Add(time.Hour)
			updated, err := s.UpdateTask(ctx, a.ID, func(t *model.Task) error {
				t.Status = model.TaskCompleted
				t.PendingItemCount = 4
				t.Normalize()
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 0, updated.PendingItemCount)
			assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

			got, err := s.GetTask(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, model.TaskCompleted, got.Status)
			assert.Equal(t, []string{"collect invoices"}, got.Details)

			require.NoError(t, s.DeleteTask(ctx, b.ID))
			assert.ErrorIs(t, s.DeleteTask(ctx, b.ID), model.ErrNotFound)
			_, err = s.GetTask(ctx, b.ID)
			assert.ErrorIs(t, err, model.ErrNotFound)

			c, err := s.CreateTask(ctx, newTask("Audit prep"))
			require.NoError(t, err)
			assert.Greater(t, c.ID, b.ID, "ids are never reused")

			list, err := s.ListTasks(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, a.ID, list[0].ID)
			assert.Equal(t, c.ID, list[1].ID)
		})
	}
}

func TestStoreRejectsInvalidTasks(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := newTask("")
			_, err := s.CreateTask(ctx, bad)
			assert.ErrorIs(t, err, model.ErrValidation)

			bad = newTask("x")
			bad.Category = "gardening"
			_, err = s.CreateTask(ctx, bad)
			assert.ErrorIs(t, err, model.ErrValidation)

			_, err = s.UpdateTask(ctx, 999, func(*model.Task) error { return nil })
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestStoreAbortedUpdateLeavesRowUntouched(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task, err := s.CreateTask(ctx, newTask("Keep me"))
			require.NoError(t, err)

			_, err = s.UpdateTask(ctx, task.ID, func(t *model.Task) error {
				t.Title = "changed"
				return model.NewValidationError("title", "rejected")
			})
			require.ErrorIs(t, err, model.ErrValidation)

			got, err := s.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, "Keep me", got.Title)
		})
	}
}

func TestStoreDeadlineReminderMarks(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			input := newDeadline("Bridge tender")
			input.ReminderSent = true
			d, err := s.CreateDeadline(ctx, input)
			require.NoError(t, err)
			assert.False(t, d.ReminderSent, "reminder flags are not writable on create")
			assert.Equal(t, model.DeadlineActive, d.Status)

			require.NoError(t, s.MarkReminded(ctx, d.ID, clock.t))
			got, err := s.GetDeadline(ctx, d.ID)
			require.NoError(t, err)
			assert.True(t, got.ReminderSent)
			require.NotNil(t, got.ReminderDate)
			assert.True(t, got.ReminderDate.Equal(clock.t))

			done, err := s.CreateDeadline(ctx, newDeadline("Closed job"))
			require.NoError(t, err)
			_, err = s.UpdateDeadline(ctx, done.ID, func(d *model.Deadline) error {
				d.Status = model.DeadlineCompleted
				return nil
			})
			require.NoError(t, err)
			assert.ErrorIs(t, s.MarkReminded(ctx, done.ID, clock.t), model.ErrValidation)
			assert.ErrorIs(t, s.MarkReminded(ctx, 999, clock.t), model.ErrNotFound)

			n, err := s.ClearReminders(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			got, err = s.GetDeadline(ctx, d.ID)
			require.NoError(t, err)
			assert.False(t, got.ReminderSent)
			assert.Nil(t, got.ReminderDate)
		})
	}
}

func TestStoreSettingsAndPreferences(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.LoadSettings(ctx)
			assert.ErrorIs(t, err, model.ErrNotFound)

			want := model.DefaultSettings()
			want.EmailRecipients = []string{"ops@example.com"}
			require.NoError(t, s.SaveSettings(ctx, want))
			got, err := s.LoadSettings(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			for _, p := range model.DefaultPreferences() {
				require.NoError(t, s.SavePreference(ctx, p))
			}
			first := model.DefaultPreferences()[0]
			first.Enabled = false
			require.NoError(t, s.SavePreference(ctx, first))

			prefs, err := s.ListPreferences(ctx)
			require.NoError(t, err)
			require.Len(t, prefs, len(model.DefaultPreferences()))
			assert.Equal(t, first, prefs[0])
		})
	}
}

func TestStoreReminderLedger(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	for name, s := range backends(t, clock) {
		t.Run(name, func(t *testing.T) {
			exerciseLedger(t, s, clock.t)
		})
	}
}

func TestRedisReminderLedger(t *testing.T) {
	addr := os.Getenv("ADMINCORE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADMINCORE_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	ns := "admincore-test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		rdb.Del(context.Background(), ns+":reminder:history", ns+":reminder:seq")
	})
	exerciseLedger(t, NewRedisReminderLedger(rdb, ns, zap.NewNop()), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func exerciseLedger(t *testing.T, l ReminderLedger, now time.Time) {
	ctx := context.Background()

	live, err := l.HasLive(ctx, model.KindDeadline, 1, 3)
	require.NoError(t, err)
	assert.False(t, live)

	rec, err := l.Record(ctx, model.ReminderRecord{
		Kind: model.KindDeadline, EntityID: 1, Threshold: 3,
		Trigger: model.TriggerThreshold, Recipient: "ops@example.com", SentAt: now,
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	_, err = l.Record(ctx, model.ReminderRecord{
		Kind: model.KindTask, EntityID: 7, Threshold: model.ThresholdOverdue,
		Trigger: model.TriggerOverdue, Recipient: "ops@example.com", SentAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	live, err = l.HasLive(ctx, model.KindDeadline, 1, 3)
	require.NoError(t, err)
	assert.True(t, live)
	live, err = l.HasLive(ctx, model.KindDeadline, 1, 7)
	require.NoError(t, err)
	assert.False(t, live)

	history, err := l.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.KindTask, history[0].Kind, "newest first")

	onlyDeadlines, err := l.History(ctx, HistoryFilter{Kind: model.KindDeadline})
	require.NoError(t, err)
	require.Len(t, onlyDeadlines, 1)

	n, err := l.ResetLive(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	live, err = l.HasLive(ctx, model.KindDeadline, 1, 3)
	require.NoError(t, err)
	assert.False(t, live)

	history, err = l.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2, "history survives a reset")
	for _, r := range history {
		assert.NotNil(t, r.ResetAt)
	}
}
