package model

import (
	"strings"
	"time"
)

type DeadlineType string

const (
	DeadlineTender DeadlineType = "Tender"
	DeadlineJob    DeadlineType = "Job"
	DeadlineReport DeadlineType = "Report"
)

func (t DeadlineType) Valid() bool {
	switch t {
	case DeadlineTender, DeadlineJob, DeadlineReport:
		return true
	}
	return false
}

type DeadlineStatus string

const (
	DeadlineActive    DeadlineStatus = "active"
	DeadlineCompleted DeadlineStatus = "completed"
)

func (s DeadlineStatus) Valid() bool {
	return s == DeadlineActive || s == DeadlineCompleted
}

// Deadline is a dated obligation (tender closing, job posting, report)
// that the reminder scheduler watches.
type Deadline struct {
	ID               int64          `json:"id" db:"id"`
	Title            string         `json:"title" db:"title"`
	Description      string         `json:"description" db:"description"`
	Type             DeadlineType   `json:"type" db:"type"`
	Priority         Priority       `json:"priority" db:"priority"`
	Status           DeadlineStatus `json:"status" db:"status"`
	DueDate          time.Time      `json:"due_date" db:"due_date"`
	AssignedTo       string         `json:"assigned_to" db:"assigned_to"`
	Department       string         `json:"department" db:"department"`
	PendingItemCount int            `json:"pending_item_count" db:"pending_item_count"`
	Details          []string       `json:"details" db:"-"`
	ReminderSent     bool           `json:"reminder_sent" db:"reminder_sent"`
	ReminderDate     *time.Time     `json:"reminder_date,omitempty" db:"reminder_date"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// DeadlinePatch carries the fields an update replaces. The reminder pair is
// absent on purpose: only the scheduler writes it.
type DeadlinePatch struct {
	Title            *string         `json:"title,omitempty"`
	Description      *string         `json:"description,omitempty"`
	Type             *DeadlineType   `json:"type,omitempty"`
	Priority         *Priority       `json:"priority,omitempty"`
	Status           *DeadlineStatus `json:"status,omitempty"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	AssignedTo       *string         `json:"assigned_to,omitempty"`
	Department       *string         `json:"department,omitempty"`
	PendingItemCount *int            `json:"pending_item_count,omitempty"`
	Details          *[]string       `json:"details,omitempty"`
}

func (d *Deadline) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.AssignedTo = strings.TrimSpace(d.AssignedTo)
	d.Department = strings.TrimSpace(d.Department)
	if d.Status == "" {
		d.Status = DeadlineActive
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if !d.DueDate.IsZero() {
		d.DueDate = DateOf(d.DueDate)
	}
	if d.Status == DeadlineCompleted {
		d.PendingItemCount = 0
	}
	if !d.ReminderSent {
		d.ReminderDate = nil
	}
	if d.Details == nil {
		d.Details = []string{}
	}
}

func (d Deadline) Validate() error {
	if err := requireFields(d.Title, d.DueDate, d.AssignedTo, d.Department); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return NewValidationError("type", "must be one of Tender, Job, Report")
	}
	if !d.Priority.Valid() {
		return NewValidationError("priority", "must be one of low, medium, high, urgent")
	}
	if !d.Status.Valid() {
		return NewValidationError("status", "must be one of active, completed")
	}
	if d.PendingItemCount < 0 {
		return NewValidationError("pending_item_count", "must not be negative")
	}
	return nil
}

func (d *Deadline) Apply(p DeadlinePatch) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Priority != nil {
		d.Priority = *p.Priority
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.DueDate != nil {
		d.DueDate = *p.DueDate
	}
	if p.AssignedTo != nil {
		d.AssignedTo = *p.AssignedTo
	}
	if p.Department != nil {
		d.Department = *p.Department
	}
	if p.PendingItemCount != nil {
		d.PendingItemCount = *p.PendingItemCount
	}
	if p.Details != nil {
		d.Details = append([]string(nil), (*p.Details)...)
	}
	d.Normalize()
}

func (d Deadline) Clone() Deadline {
	d.Details = append([]string{}, d.Details...)
	if d.ReminderDate != nil {
		at := *d.ReminderDate
		d.ReminderDate = &at
	}
	return d
}
