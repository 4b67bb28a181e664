package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/repository"
	"admincore/internal/testutil"
)

var today = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock      *testutil.Clock
	transport  *testutil.Transport
	store      repository.Store
	tasks      *TaskService
	deadlines  *DeadlineService
	registry   *PreferenceRegistry
	scheduler  *ReminderScheduler
	dispatcher *NotificationDispatcher
}

func seedSettings() model.NotificationSettings {
	s := model.DefaultSettings()
	s.ReminderDays = []int{1, 3, 7}
	s.EmailRecipients = []string{"ops@example.com", "lead@example.com"}
	return s
}

func newHarness(t *testing.T, backend string) *harness {
	t.Helper()
	clock := testutil.NewClock(today)
	logger := zap.NewNop()

	var store repository.Store
	switch backend {
	case "sqlite":
		store = testutil.SQLiteStore(t, clock.Now)
	default:
		store = repository.NewMemoryStore(clock.Now, logger)
	}

	registry := NewPreferenceRegistry(store, seedSettings(), logger)
	require.NoError(t, registry.Init(context.Background()))
	transport := testutil.NewTransport()

	return &harness{
		clock:      clock,
		transport:  transport,
		store:      store,
		tasks:      NewTaskService(store, clock.Now, logger),
		deadlines:  NewDeadlineService(store, clock.Now, logger),
		registry:   registry,
		scheduler:  NewReminderScheduler(store, store, store, registry, transport, SchedulerOptions{RemindTasks: true}, clock.Now, logger),
		dispatcher: NewNotificationDispatcher(registry, transport, clock.Now, logger),
	}
}

var backends = []string{"memory", "sqlite"}

func deadlineDue(title string, days int) model.Deadline {
	return model.Deadline{
		Title:      title,
		Type:       model.DeadlineTender,
		DueDate:    today.AddDate(0, 0, days),
		AssignedTo: "Procurement desk",
		Department: "Procurement",
		Priority:   model.PriorityMedium,
	}
}

func taskDue(title string, cat model.Category, days int) model.Task {
	return model.Task{
		Title:      title,
		Category:   cat,
		DueDate:    today.AddDate(0, 0, days),
		AssignedTo: "Jane Doe",
		Department: "Operations",
	}
}
