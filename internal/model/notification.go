package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyNever   Frequency = "never"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyDaily, FrequencyWeekly, FrequencyNever:
		return true
	}
	return false
}

// NotificationPreference gates one kind of system-generated notification.
type NotificationPreference struct {
	ID          string    `json:"id" db:"id"`
	Category    string    `json:"category" db:"category"`
	Label       string    `json:"label" db:"label"`
	Description string    `json:"description" db:"description"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	Frequency   Frequency `json:"frequency" db:"frequency"`
}

// Active reports whether the preference takes part in any dispatch.
func (p NotificationPreference) Active() bool {
	return p.Enabled && p.Frequency != FrequencyNever
}

type PreferencePatch struct {
	Enabled   *bool      `json:"enabled,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty"`
}

// DefaultPreferences seeds the registry on first start.
func DefaultPreferences() []NotificationPreference {
	return []NotificationPreference{
		{ID: "new_inquiry", Category: "Inquiries", Label: "New inquiry", Description: "A visitor submitted the contact form", Enabled: true, Frequency: FrequencyInstant},
		{ID: "inquiry_reply", Category: "Inquiries", Label: "Inquiry reply", Description: "A visitor replied to an answered inquiry", Enabled: true, Frequency: FrequencyDaily},
		{ID: "new_application", Category: "Jobs", Label: "New application", Description: "A candidate applied to an open position", Enabled: true, Frequency: FrequencyInstant},
		{ID: "application_update", Category: "Jobs", Label: "Application update", Description: "A candidate updated a submitted application", Enabled: true, Frequency: FrequencyDaily},
		{ID: "tender_submission", Category: "Tenders", Label: "Tender submission", Description: "A supplier submitted a tender document", Enabled: true, Frequency: FrequencyInstant},
		{ID: "content_published", Category: "Content", Label: "Content published", Description: "A page or news item went live", Enabled: false, Frequency: FrequencyWeekly},
		{ID: "weekly_report", Category: "System", Label: "Weekly report", Description: "Summary of site activity", Enabled: true, Frequency: FrequencyWeekly},
		{ID: "security_alert", Category: "System", Label: "Security alert", Description: "Repeated failed sign-ins or permission changes", Enabled: true, Frequency: FrequencyInstant},
	}
}

// NotificationSettings is the process-wide reminder configuration.
type NotificationSettings struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	ReminderDays    []int    `json:"reminder_days" yaml:"reminder_days"`
	EmailRecipients []string `json:"email_recipients" yaml:"email_recipients"`
	NotifyOnUrgent  bool     `json:"notify_on_urgent" yaml:"notify_on_urgent"`
	NotifyOnOverdue bool     `json:"notify_on_overdue" yaml:"notify_on_overdue"`
	DailyDigest     bool     `json:"daily_digest" yaml:"daily_digest"`
	DigestTime      string   `json:"digest_time" yaml:"digest_time"`
	DigestDay       string   `json:"digest_day" yaml:"digest_day"`
}

type SettingsPatch struct {
	Enabled         *bool     `json:"enabled,omitempty"`
	ReminderDays    *[]int    `json:"reminder_days,omitempty"`
	EmailRecipients *[]string `json:"email_recipients,omitempty"`
	NotifyOnUrgent  *bool     `json:"notify_on_urgent,omitempty"`
	NotifyOnOverdue *bool     `json:"notify_on_overdue,omitempty"`
	DailyDigest     *bool     `json:"daily_digest,omitempty"`
	DigestTime      *string   `json:"digest_time,omitempty"`
	DigestDay       *string   `json:"digest_day,omitempty"`
}

func DefaultSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:         true,
		ReminderDays:    []int{1, 3, 7},
		EmailRecipients: []string{},
		NotifyOnUrgent:  true,
		NotifyOnOverdue: true,
		DailyDigest:     true,
		DigestTime:      "09:00",
		DigestDay:       "monday",
	}
}

func (s NotificationSettings) Clone() NotificationSettings {
	s.ReminderDays = append([]int{}, s.ReminderDays...)
	s.EmailRecipients = append([]string{}, s.EmailRecipients...)
	return s
}

func (s *NotificationSettings) Apply(p SettingsPatch) {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.ReminderDays != nil {
		s.ReminderDays = append([]int{}, (*p.ReminderDays)...)
	}
	if p.EmailRecipients != nil {
		s.EmailRecipients = append([]string{}, (*p.EmailRecipients)...)
	}
	if p.NotifyOnUrgent != nil {
		s.NotifyOnUrgent = *p.NotifyOnUrgent
	}
	if p.NotifyOnOverdue != nil {
		s.NotifyOnOverdue = *p.NotifyOnOverdue
	}
	if p.DailyDigest != nil {
		s.DailyDigest = *p.DailyDigest
	}
	if p.DigestTime != nil {
		s.DigestTime = *p.DigestTime
	}
	if p.DigestDay != nil {
		s.DigestDay = *p.DigestDay
	}
}

// Normalize sorts and deduplicates reminder days and trims recipients.
func (s *NotificationSettings) Normalize() {
	seen := make(map[int]bool, len(s.ReminderDays))
	days := make([]int, 0, len(s.ReminderDays))
	for _, d := range s.ReminderDays {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	s.ReminderDays = days

	recipients := make([]string, 0, len(s.EmailRecipients))
	for _, r := range s.EmailRecipients {
		recipients = append(recipients, strings.TrimSpace(r))
	}
	s.EmailRecipients = recipients
	s.DigestDay = strings.ToLower(strings.TrimSpace(s.DigestDay))
	if s.DigestDay == "" {
		s.DigestDay = "monday"
	}
}

func (s NotificationSettings) Validate() error {
	for _, d := range s.ReminderDays {
		if d <= 0 {
			return NewValidationError("reminder_days", fmt.Sprintf("must be positive, got %d", d))
		}
	}
	seen := make(map[string]bool, len(s.EmailRecipients))
	for _, r := range s.EmailRecipients {
		if err := ValidateEmail(r); err != nil {
			return err
		}
		key := strings.ToLower(r)
		if seen[key] {
			return &DuplicateError{Kind: "recipient", Value: r}
		}
		seen[key] = true
	}
	if _, _, err := ParseClock(s.DigestTime); err != nil {
		return err
	}
	if _, err := ParseWeekday(s.DigestDay); err != nil {
		return err
	}
	return nil
}

// DefaultRecipient is the first configured recipient, or "".
func (s NotificationSettings) DefaultRecipient() string {
	if len(s.EmailRecipients) == 0 {
		return ""
	}
	return s.EmailRecipients[0]
}

func (s NotificationSettings) HasRecipient(addr string) bool {
	for _, r := range s.EmailRecipients {
		if strings.EqualFold(r, addr) {
			return true
		}
	}
	return false
}

// ValidateEmail accepts a bare addr-spec such as "ops@example.com".
func ValidateEmail(addr string) error {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return &InvalidRecipientError{Reason: "address is empty"}
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return &InvalidRecipientError{Address: addr, Reason: "not a valid email address"}
	}
	if parsed.Name != "" || parsed.Address != trimmed {
		return &InvalidRecipientError{Address: addr, Reason: "must be a bare address"}
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at <= 0 || !strings.Contains(parsed.Address[at+1:], ".") {
		return &InvalidRecipientError{Address: addr, Reason: "domain must be fully qualified"}
	}
	return nil
}

// ParseClock parses an "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", strings.TrimSpace(s))
	if perr != nil {
		return 0, 0, NewValidationError("digest_time", fmt.Sprintf("must be HH:MM, got %q", s))
	}
	return t.Hour(), t.Minute(), nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, NewValidationError("digest_day", fmt.Sprintf("must be a weekday name, got %q", s))
}

// NotificationEvent is a system-generated occurrence routed through the
// per-category preferences (a new inquiry, a job application, ...).
type NotificationEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DispatchPath is the route an ingested event took.
type DispatchPath string

const (
	PathInstant    DispatchPath = "instant"
	PathDigest     DispatchPath = "digest"
	PathSuppressed DispatchPath = "suppressed"
)
