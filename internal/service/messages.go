package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"admincore/internal/model"
)

// reminderSubject and reminderBody render the email for one candidate.
func reminderSubject(c candidate) string {
	switch c.trigger {
	case model.TriggerOverdue:
		return fmt.Sprintf("Overdue: %s", c.title)
	case model.TriggerUrgent:
		return fmt.Sprintf("Urgent: %s", c.title)
	}
	switch c.daysLeft {
	case 0:
		return fmt.Sprintf("Reminder: %s is due today", c.title)
	case 1:
		return fmt.Sprintf("Reminder: %s is due tomorrow", c.title)
	}
	if c.daysLeft < 0 {
		return fmt.Sprintf("Reminder: %s is past due", c.title)
	}
	return fmt.Sprintf("Reminder: %s is due in %d days", c.title, c.daysLeft)
}

func reminderBody(c candidate, note string) string {
	var b strings.Builder
	if note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "%s %q\n", kindLabel(c.kind), c.title)
	fmt.Fprintf(&b, "Due date:    %s\n", c.dueDate.Format("Mon, 02 Jan 2006"))
	switch {
	case c.daysLeft < 0:
		fmt.Fprintf(&b, "Status:      overdue by %d day(s)\n", -c.daysLeft)
	case c.daysLeft == 0:
		b.WriteString("Status:      due today\n")
	default:
		fmt.Fprintf(&b, "Status:      %d day(s) left\n", c.daysLeft)
	}
	fmt.Fprintf(&b, "Priority:    %s\n", c.priority)
	fmt.Fprintf(&b, "Assigned to: %s (%s)\n", c.assignedTo, c.department)
	if len(c.details) > 0 {
		b.WriteString("\nDetails:\n")
		for _, d := range c.details {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	return b.String()
}

func kindLabel(k model.EntityKind) string {
	if k == model.KindTask {
		return "Task"
	}
	return "Deadline"
}

type digestEntry struct {
	category string
	event    model.NotificationEvent
}

func digestSubject(freq model.Frequency, n int) string {
	label := "Daily"
	if freq == model.FrequencyWeekly {
		label = "Weekly"
	}
	return fmt.Sprintf("%s digest: %d notification(s)", label, n)
}

// digestBody groups entries by category, oldest event first.
func digestBody(entries []digestEntry, at time.Time) string {
	groups := map[string][]model.NotificationEvent{}
	for _, e := range entries {
		groups[e.category] = append(groups[e.category], e.event)
	}
	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "Summary generated %s\n", at.Format("Mon, 02 Jan 2006 15:04"))
	for _, c := range categories {
		events := groups[c]
		sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
		fmt.Fprintf(&b, "\n%s (%d)\n", c, len(events))
		for _, ev := range events {
			fmt.Fprintf(&b, "  - [%s] %s", ev.OccurredAt.Format("02 Jan 15:04"), ev.Title)
			if ev.Body != "" {
				fmt.Fprintf(&b, ": %s", ev.Body)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
