// Package status derives display status, rotation and due-date urgency for
// tasks and deadlines. Nothing here is persisted.
package status

import (
	"math"
	"time"

	"admincore/internal/model"
)

const (
	urgentDays  = 3
	warningDays = 7
)

// NextTask returns the status a toggle moves a task to. Values outside the
// rotation restart it from pending.
func NextTask(stored model.TaskStatus) model.TaskStatus {
	switch stored {
	case model.TaskInProgress:
		return model.TaskCompleted
	case model.TaskCompleted:
		return model.TaskPending
	default:
		return model.TaskInProgress
	}
}

func NextDeadline(stored model.DeadlineStatus) model.DeadlineStatus {
	if stored == model.DeadlineCompleted {
		return model.DeadlineActive
	}
	return model.DeadlineCompleted
}

// localDate places the calendar date of due at midnight in loc.
func localDate(due time.Time, loc *time.Location) time.Time {
	y, m, d := due.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysLeft is ceil((dueDate - now) / 24h), with the due date read as a
// calendar day in now's location. Past dates give zero or negative values.
func DaysLeft(due, now time.Time) int {
	diff := localDate(due, now.Location()).Sub(now)
	return int(math.Ceil(diff.Hours() / 24))
}

func Classify(daysLeft int) model.Urgency {
	switch {
	case daysLeft <= urgentDays:
		return model.UrgencyUrgent
	case daysLeft <= warningDays:
		return model.UrgencyWarning
	default:
		return model.UrgencyNormal
	}
}

// IsPastDue reports whether due is a calendar day before today.
func IsPastDue(due, now time.Time) bool {
	return localDate(due, now.Location()).Before(localDate(now, now.Location()))
}

// DisplayTask is overdue for any non-completed task whose due date has passed.
func DisplayTask(t model.Task, now time.Time) model.TaskStatus {
	if t.Status != model.TaskCompleted && IsPastDue(t.DueDate, now) {
		return model.TaskOverdue
	}
	return t.Status
}

func ViewTask(t model.Task, now time.Time) model.TaskView {
	days := DaysLeft(t.DueDate, now)
	return model.TaskView{
		Task:          t,
		DisplayStatus: DisplayTask(t, now),
		DaysLeft:      days,
		Urgency:       Classify(days),
	}
}

func ViewDeadline(d model.Deadline, now time.Time) model.DeadlineView {
	days := DaysLeft(d.DueDate, now)
	return model.DeadlineView{
		Deadline: d,
		DaysLeft: days,
		Urgency:  Classify(days),
	}
}

func ViewTasks(tasks []model.Task, now time.Time) []model.TaskView {
	out := make([]model.TaskView, len(tasks))
	for i, t := range tasks {
		out[i] = ViewTask(t, now)
	}
	return out
}

func ViewDeadlines(deadlines []model.Deadline, now time.Time) []model.DeadlineView {
	out := make([]model.DeadlineView, len(deadlines))
	for i, d := range deadlines {
		out[i] = ViewDeadline(d, now)
	}
	return out
}
