package query

import (
	"cmp"
	"strings"

	"admincore/internal/model"
)

var TaskAccessors = Accessors[model.TaskView]{
	ID: func(t model.TaskView) int64 { return t.ID },
	Fields: map[string]func(model.TaskView) string{
		"category":    func(t model.TaskView) string { return string(t.Category) },
		"priority":    func(t model.TaskView) string { return string(t.Priority) },
		"status":      func(t model.TaskView) string { return string(t.DisplayStatus) },
		"department":  func(t model.TaskView) string { return t.Department },
		"assigned_to": func(t model.TaskView) string { return t.AssignedTo },
	},
	Search: []func(model.TaskView) string{
		func(t model.TaskView) string { return t.Title },
		func(t model.TaskView) string { return t.AssignedTo },
		func(t model.TaskView) string { return t.Department },
	},
	Sort: map[string]func(a, b model.TaskView) int{
		"id":         func(a, b model.TaskView) int { return cmp.Compare(a.ID, b.ID) },
		"title":      func(a, b model.TaskView) int { return compareFold(a.Title, b.Title) },
		"due_date":   func(a, b model.TaskView) int { return a.DueDate.Compare(b.DueDate) },
		"priority":   func(a, b model.TaskView) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) },
		"status":     func(a, b model.TaskView) int { return cmp.Compare(a.DisplayStatus, b.DisplayStatus) },
		"created_at": func(a, b model.TaskView) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at": func(a, b model.TaskView) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	},
}

var DeadlineAccessors = Accessors[model.DeadlineView]{
	ID: func(d model.DeadlineView) int64 { return d.ID },
	Fields: map[string]func(model.DeadlineView) string{
		"type":        func(d model.DeadlineView) string { return string(d.Type) },
		"priority":    func(d model.DeadlineView) string { return string(d.Priority) },
		"status":      func(d model.DeadlineView) string { return string(d.Status) },
		"department":  func(d model.DeadlineView) string { return d.Department },
		"assigned_to": func(d model.DeadlineView) string { return d.AssignedTo },
	},
	Search: []func(model.DeadlineView) string{
		func(d model.DeadlineView) string { return d.Title },
		func(d model.DeadlineView) string { return d.AssignedTo },
		func(d model.DeadlineView) string { return d.Department },
	},
	Sort: map[string]func(a, b model.DeadlineView) int{
		"id":         func(a, b model.DeadlineView) int { return cmp.Compare(a.ID, b.ID) },
		"title":      func(a, b model.DeadlineView) int { return compareFold(a.Title, b.Title) },
		"due_date":   func(a, b model.DeadlineView) int { return a.DueDate.Compare(b.DueDate) },
		"priority":   func(a, b model.DeadlineView) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) },
		"status":     func(a, b model.DeadlineView) int { return cmp.Compare(a.Status, b.Status) },
		"created_at": func(a, b model.DeadlineView) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"updated_at": func(a, b model.DeadlineView) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	},
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
