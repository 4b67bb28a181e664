package model

type Urgency string

const (
	UrgencyUrgent  Urgency = "urgent"
	UrgencyWarning Urgency = "warning"
	UrgencyNormal  Urgency = "normal"
)

// TaskView is a Task with its read-time derived fields.
type TaskView struct {
	Task
	DisplayStatus TaskStatus `json:"display_status"`
	DaysLeft      int        `json:"days_left"`
	Urgency       Urgency    `json:"urgency"`
}

type DeadlineView struct {
	Deadline
	DaysLeft int     `json:"days_left"`
	Urgency  Urgency `json:"urgency"`
}
