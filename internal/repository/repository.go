// Package repository persists tasks, deadlines, notification settings and
// the reminder ledger. Every backend assigns monotonic ids that are never
// reused and makes read-modify-write of one entity atomic.
package repository

import (
	"context"
	"time"

	"admincore/internal/model"
)

// TaskMutator edits a task in place inside the store's critical section.
// Returning an error aborts the update.
type TaskMutator func(t *model.Task) error

type DeadlineMutator func(d *model.Deadline) error

type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, mutate TaskMutator) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	GetTask(ctx context.Context, id int64) (model.Task, error)
	// ListTasks returns a snapshot in ascending id order.
	ListTasks(ctx context.Context) ([]model.Task, error)
}

type DeadlineRepository interface {
	CreateDeadline(ctx context.Context, d model.Deadline) (model.Deadline, error)
	UpdateDeadline(ctx context.Context, id int64, mutate DeadlineMutator) (model.Deadline, error)
	DeleteDeadline(ctx context.Context, id int64) error
	GetDeadline(ctx context.Context, id int64) (model.Deadline, error)
	ListDeadlines(ctx context.Context) ([]model.Deadline, error)
	// MarkReminded sets reminder_sent/reminder_date on an active deadline.
	MarkReminded(ctx context.Context, id int64, at time.Time) error
	// ClearReminders resets the reminder pair on every deadline.
	ClearReminders(ctx context.Context) (int, error)
}

type SettingsRepository interface {
	// LoadSettings returns a NotFoundError until settings are first saved.
	LoadSettings(ctx context.Context) (model.NotificationSettings, error)
	SaveSettings(ctx context.Context, s model.NotificationSettings) error
	ListPreferences(ctx context.Context) ([]model.NotificationPreference, error)
	SavePreference(ctx context.Context, p model.NotificationPreference) error
}

// HistoryFilter narrows ReminderLedger.History. Zero values match all.
type HistoryFilter struct {
	Kind     model.EntityKind
	EntityID int64
	Limit    int
}

// ReminderLedger records dispatched reminders. A record is live until a
// reset stamps it; live records block re-dispatch for the same key.
type ReminderLedger interface {
	HasLive(ctx context.Context, kind model.EntityKind, id int64, threshold int) (bool, error)
	Record(ctx context.Context, r model.ReminderRecord) (model.ReminderRecord, error)
	ResetLive(ctx context.Context, at time.Time) (int, error)
	// History returns records newest first.
	History(ctx context.Context, f HistoryFilter) ([]model.ReminderRecord, error)
}

// Store bundles every repository a single backend provides.
type Store interface {
	TaskRepository
	DeadlineRepository
	SettingsRepository
	ReminderLedger
	Ping(ctx context.Context) error
	Close() error
}

const defaultHistoryLimit = 100

func (f HistoryFilter) limit() int {
	if f.Limit <= 0 {
		return defaultHistoryLimit
	}
	return f.Limit
}

func (f HistoryFilter) match(r model.ReminderRecord) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.EntityID != 0 && r.EntityID != f.EntityID {
		return false
	}
	return true
}

// markable rejects reminder marks on completed deadlines.
func markable(d model.Deadline) error {
	if d.Status != model.DeadlineActive {
		return model.NewValidationError("status", "reminders are only recorded for active deadlines")
	}
	return nil
}
