package model

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryHR            Category = "hr"
	CategoryContent       Category = "content"
	CategoryFinance       Category = "finance"
	CategoryCommunication Category = "communication"
	CategoryProcurement   Category = "procurement"
	CategoryCompliance    Category = "compliance"
	CategoryTechnical     Category = "technical"
	CategoryAdmin         Category = "admin"
)

var Categories = []Category{
	CategoryHR, CategoryContent, CategoryFinance, CategoryCommunication,
	CategoryProcurement, CategoryCompliance, CategoryTechnical, CategoryAdmin,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from low (1) to urgent (4); unknown values are 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskOverdue    TaskStatus = "overdue"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskOverdue, TaskCompleted:
		return true
	}
	return false
}

// Task is an administrative work item owned by the entity store.
type Task struct {
	ID               int64      `json:"id" db:"id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	Category         Category   `json:"category" db:"category"`
	Priority         Priority   `json:"priority" db:"priority"`
	Status           TaskStatus `json:"status" db:"status"`
	DueDate          time.Time  `json:"due_date" db:"due_date"`
	AssignedTo       string     `json:"assigned_to" db:"assigned_to"`
	Department       string     `json:"department" db:"department"`
	PendingItemCount int        `json:"pending_item_count" db:"pending_item_count"`
	Details          []string   `json:"details" db:"-"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskPatch carries the fields an update replaces; nil means unchanged.
type TaskPatch struct {
	Title            *string     `json:"title,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Category         *Category   `json:"category,omitempty"`
	Priority         *Priority   `json:"priority,omitempty"`
	Status           *TaskStatus `json:"status,omitempty"`
	DueDate          *time.Time  `json:"due_date,omitempty"`
	AssignedTo       *string     `json:"assigned_to,omitempty"`
	Department       *string     `json:"department,omitempty"`
	PendingItemCount *int        `json:"pending_item_count,omitempty"`
	Details          *[]string   `json:"details,omitempty"`
}

// Normalize fills defaults and re-establishes the field invariants.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.AssignedTo = strings.TrimSpace(t.AssignedTo)
	t.Department = strings.TrimSpace(t.Department)
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.DueDate.IsZero() {
		t.DueDate = DateOf(t.DueDate)
	}
	if t.Status == TaskCompleted {
		t.PendingItemCount = 0
	}
	if t.Details == nil {
		t.Details = []string{}
	}
}

func (t Task) Validate() error {
	if err := requireFields(t.Title, t.DueDate, t.AssignedTo, t.Department); err != nil {
		return err
	}
	if !t.Category.Valid() {
		return NewValidationError("category", "must be one of hr, content, finance, communication, procurement, compliance, technical, admin")
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", "must be one of low, medium, high, urgent")
	}
	if !t.Status.Valid() {
		return NewValidationError("status", "must be one of pending, in-progress, overdue, completed")
	}
	if t.PendingItemCount < 0 {
		return NewValidationError("pending_item_count", "must not be negative")
	}
	return nil
}

// Apply merges p into t. The caller validates and stamps UpdatedAt.
func (t *Task) Apply(p TaskPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Department != nil {
		t.Department = *p.Department
	}
	if p.PendingItemCount != nil {
		t.PendingItemCount = *p.PendingItemCount
	}
	if p.Details != nil {
		t.Details = append([]string(nil), (*p.Details)...)
	}
	t.Normalize()
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	t.Details = append([]string{}, t.Details...)
	return t
}

func requireFields(title string, due time.Time, assignedTo, department string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return NewValidationError("title", "is required")
	case due.IsZero():
		return NewValidationError("due_date", "is required")
	case strings.TrimSpace(assignedTo) == "":
		return NewValidationError("assigned_to", "is required")
	case strings.TrimSpace(department) == "":
		return NewValidationError("department", "is required")
	}
	return nil
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
