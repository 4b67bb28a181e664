package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/notify"
	"admincore/internal/repository"
	"admincore/internal/status"
	"admincore/pkg/metrics"
	"admincore/pkg/util"
)

const (
	DefaultBulkThresholdDays = 7
	// BulkDefaultThreshold asks SendBulk for DefaultBulkThresholdDays.
	BulkDefaultThreshold = -1
)

// Locker serializes scheduler runs across processes.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

type SchedulerOptions struct {
	// RemindTasks includes non-completed tasks in threshold scans.
	RemindTasks bool
	Locker      Locker
}

// Dispatch is the outcome of one reminder attempt.
type Dispatch struct {
	Kind      model.EntityKind      `json:"kind"`
	EntityID  int64                 `json:"entity_id"`
	Title     string                `json:"title"`
	Trigger   model.ReminderTrigger `json:"trigger"`
	Threshold int                   `json:"threshold"`
	DaysLeft  int                   `json:"days_left"`
	Recipient string                `json:"recipient"`
	Error     string                `json:"error,omitempty"`
}

type RunReport struct {
	StartedAt  time.Time  `json:"started_at"`
	Skipped    bool       `json:"skipped"`
	SkipReason string     `json:"skip_reason,omitempty"`
	Candidates int        `json:"candidates"`
	Dispatched []Dispatch `json:"dispatched"`
	Failed     []Dispatch `json:"failed"`
}

type ResetReport struct {
	Deadlines int `json:"deadlines"`
	Records   int `json:"records"`
}

type candidate struct {
	kind       model.EntityKind
	id         int64
	title      string
	priority   model.Priority
	dueDate    time.Time
	assignedTo string
	department string
	details    []string
	daysLeft   int
	trigger    model.ReminderTrigger
	threshold  int
}

// ReminderScheduler selects entities that need a reminder, dispatches at
// most one reminder per (entity, threshold) and records every dispatch.
type ReminderScheduler struct {
	tasks     repository.TaskRepository
	deadlines repository.DeadlineRepository
	ledger    repository.ReminderLedger
	registry  *PreferenceRegistry
	transport notify.Transport
	opts      SchedulerOptions
	now       func() time.Time
	mu        sync.Mutex
	logger    *zap.Logger
}

func NewReminderScheduler(
	tasks repository.TaskRepository,
	deadlines repository.DeadlineRepository,
	ledger repository.ReminderLedger,
	registry *PreferenceRegistry,
	transport notify.Transport,
	opts SchedulerOptions,
	now func() time.Time,
	logger *zap.Logger,
) *ReminderScheduler {
	if now == nil {
		now = time.Now
	}
	return &ReminderScheduler{
		tasks:     tasks,
		deadlines: deadlines,
		ledger:    ledger,
		registry:  registry,
		transport: transport,
		opts:      opts,
		now:       now,
		logger:    logger,
	}
}

// matchTrigger picks the single trigger a reminder scan fires for an entity.
// Overdue wins over thresholds, thresholds over urgent priority.
func matchTrigger(daysLeft int, priority model.Priority, s model.NotificationSettings) (model.ReminderTrigger, int, bool) {
	if daysLeft <= 0 {
		if s.NotifyOnOverdue {
			return model.TriggerOverdue, model.ThresholdOverdue, true
		}
	} else {
		// ReminderDays is sorted ascending, so the first hit is the tightest window.
		for _, d := range s.ReminderDays {
			if daysLeft <= d {
				return model.TriggerThreshold, d, true
			}
		}
	}
	if priority == model.PriorityUrgent && s.NotifyOnUrgent {
		return model.TriggerUrgent, model.ThresholdUrgent, true
	}
	return "", 0, false
}

// Run performs one scan. Per-candidate failures are reported, not returned.
func (s *ReminderScheduler) Run(ctx context.Context) (RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := RunReport{StartedAt: now, Dispatched: []Dispatch{}, Failed: []Dispatch{}}
	defer func() { metrics.RecordSchedulerRun("reminders", time.Since(now)) }()

	if s.opts.Locker != nil {
		release, ok, err := s.opts.Locker.TryLock(ctx)
		if err != nil {
			return report, fmt.Errorf("acquiring scheduler lock: %w", err)
		}
		if !ok {
			report.Skipped, report.SkipReason = true, "another instance is running"
			return report, nil
		}
		defer release()
	}

	settings, err := s.registry.Settings(ctx)
	if err != nil {
		return report, fmt.Errorf("loading settings: %w", err)
	}
	if !settings.Enabled {
		report.Skipped, report.SkipReason = true, "notifications disabled"
		s.logger.Debug("Reminder scan skipped, notifications disabled")
		return report, nil
	}

	candidates, err := s.selectCandidates(ctx, settings, now)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)

	recipient := settings.DefaultRecipient()
	for _, c := range candidates {
		d := s.dispatch(ctx, c, recipient, "", now)
		if d.Error != "" {
			report.Failed = append(report.Failed, d)
		} else {
			report.Dispatched = append(report.Dispatched, d)
		}
	}

	s.logger.Info("Reminder scan completed",
		zap.Int("candidates", report.Candidates),
		zap.Int("dispatched", len(report.Dispatched)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *ReminderScheduler) selectCandidates(ctx context.Context, settings model.NotificationSettings, now time.Time) ([]candidate, error) {
	deadlines, err := s.deadlines.ListDeadlines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing deadlines: %w", err)
	}
	var out []candidate
	for _, d := range deadlines {
		if d.Status != model.DeadlineActive || d.ReminderSent {
			continue
		}
		days := status.DaysLeft(d.DueDate, now)
		trigger, threshold, ok := matchTrigger(days, d.Priority, settings)
		if !ok {
			continue
		}
		live, err := s.ledger.HasLive(ctx, model.KindDeadline, d.ID, threshold)
		if err != nil {
			return nil, err
		}
		if live {
			continue
		}
		out = append(out, deadlineCandidate(d, days, trigger, threshold))
	}

	if !s.opts.RemindTasks {
		return out, nil
	}
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	for _, t := range tasks {
		if t.Status == model.TaskCompleted {
			continue
		}
		days := status.DaysLeft(t.DueDate, now)
		trigger, threshold, ok := matchTrigger(days, t.Priority, settings)
		if !ok {
			continue
		}
		live, err := s.ledger.HasLive(ctx, model.KindTask, t.ID, threshold)
		if err != nil {
			return nil, err
		}
		if live {
			continue
		}
		out = append(out, candidate{
			kind: model.KindTask, id: t.ID, title: t.Title, priority: t.Priority,
			dueDate: t.DueDate, assignedTo: t.AssignedTo, department: t.Department,
			details: t.Details, daysLeft: days, trigger: trigger, threshold: threshold,
		})
	}
	return out, nil
}

func deadlineCandidate(d model.Deadline, days int, trigger model.ReminderTrigger, threshold int) candidate {
	return candidate{
		kind: model.KindDeadline, id: d.ID, title: d.Title, priority: d.Priority,
		dueDate: d.DueDate, assignedTo: d.AssignedTo, department: d.Department,
		details: d.Details, daysLeft: days, trigger: trigger, threshold: threshold,
	}
}

// dispatch sends one reminder and, on success, marks the entity and
// appends a ledger record. Failures leave the entity unmarked.
func (s *ReminderScheduler) dispatch(ctx context.Context, c candidate, recipient, note string, now time.Time) Dispatch {
	d := Dispatch{
		Kind: c.kind, EntityID: c.id, Title: c.title, Trigger: c.trigger,
		Threshold: c.threshold, DaysLeft: c.daysLeft, Recipient: recipient,
	}
	if err := s.deliver(ctx, c, recipient, note); err != nil {
		d.Error = err.Error()
		return d
	}

	if c.kind == model.KindDeadline {
		if err := s.deadlines.MarkReminded(ctx, c.id, now); err != nil {
			s.logger.Error("Reminder sent but deadline could not be marked",
				zap.Int64("deadline_id", c.id),
				zap.Error(err),
			)
			d.Error = err.Error()
			return d
		}
	}
	_, err := s.ledger.Record(ctx, model.ReminderRecord{
		Kind: c.kind, EntityID: c.id, Threshold: c.threshold,
		Trigger: c.trigger, Recipient: recipient, SentAt: now,
	})
	if err != nil {
		s.logger.Error("Failed to record reminder",
			zap.String("kind", string(c.kind)),
			zap.Int64("entity_id", c.id),
			zap.Error(err),
		)
	}
	metrics.IncrementReminderDispatched(string(c.kind), string(c.trigger))
	return d
}

func (s *ReminderScheduler) deliver(ctx context.Context, c candidate, recipient, note string) error {
	var err error
	if recipient == "" {
		err = &model.InvalidRecipientError{Reason: "no email recipients configured"}
	} else if err = model.ValidateEmail(recipient); err == nil {
		err = s.transport.Send(ctx, recipient, reminderSubject(c), reminderBody(c, note))
		if err != nil && !errors.Is(err, model.ErrTransport) {
			err = &model.TransportError{To: recipient, Err: err}
		}
	}
	if err == nil {
		s.logger.Info("Reminder dispatched",
			zap.String("kind", string(c.kind)),
			zap.Int64("entity_id", c.id),
			zap.String("trigger", string(c.trigger)),
			zap.Int("days_left", c.daysLeft),
		)
		return nil
	}

	errType := "invalid_recipient"
	var te *model.TransportError
	if errors.As(err, &te) {
		_, errType = util.IsRetryableError(te.Err)
	}
	metrics.IncrementReminderFailure(string(c.kind), errType)
	s.logger.Warn("Reminder dispatch failed",
		zap.String("kind", string(c.kind)),
		zap.Int64("entity_id", c.id),
		zap.String("recipient", recipient),
		zap.String("error_type", errType),
		zap.Error(err),
	)
	return err
}

// Send dispatches a reminder for one deadline on demand. An empty
// recipient means the first configured one. Repeated manual sends are
// allowed; each is recorded.
func (s *ReminderScheduler) Send(ctx context.Context, deadlineID int64, recipient, message string) (Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.deadlines.GetDeadline(ctx, deadlineID)
	if err != nil {
		return Dispatch{}, err
	}
	if d.Status == model.DeadlineCompleted {
		return Dispatch{}, model.NewValidationError("status", "deadline is already completed")
	}
	if recipient == "" {
		settings, err := s.registry.Settings(ctx)
		if err != nil {
			return Dispatch{}, err
		}
		recipient = settings.DefaultRecipient()
	}

	now := s.now()
	c := deadlineCandidate(d, status.DaysLeft(d.DueDate, now), model.TriggerManual, model.ThresholdManual)
	if err := s.deliver(ctx, c, recipient, message); err != nil {
		return Dispatch{}, err
	}
	if err := s.deadlines.MarkReminded(ctx, d.ID, now); err != nil {
		return Dispatch{}, err
	}
	if _, err := s.ledger.Record(ctx, model.ReminderRecord{
		Kind: model.KindDeadline, EntityID: d.ID, Threshold: model.ThresholdManual,
		Trigger: model.TriggerManual, Recipient: recipient, SentAt: now,
	}); err != nil {
		return Dispatch{}, fmt.Errorf("recording manual reminder: %w", err)
	}
	metrics.IncrementReminderDispatched(string(model.KindDeadline), string(model.TriggerManual))
	return Dispatch{
		Kind: model.KindDeadline, EntityID: d.ID, Title: d.Title, Trigger: model.TriggerManual,
		Threshold: model.ThresholdManual, DaysLeft: c.daysLeft, Recipient: recipient,
	}, nil
}

// SendBulk reminds every active, not yet reminded deadline due within
// thresholdDays (overdue ones included). Zero selects deadlines due today
// or overdue; a negative value selects DefaultBulkThresholdDays.
func (s *ReminderScheduler) SendBulk(ctx context.Context, thresholdDays int) (RunReport, error) {
	if thresholdDays < 0 {
		thresholdDays = DefaultBulkThresholdDays
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := RunReport{StartedAt: now, Dispatched: []Dispatch{}, Failed: []Dispatch{}}
	settings, err := s.registry.Settings(ctx)
	if err != nil {
		return report, fmt.Errorf("loading settings: %w", err)
	}
	deadlines, err := s.deadlines.ListDeadlines(ctx)
	if err != nil {
		return report, fmt.Errorf("listing deadlines: %w", err)
	}

	recipient := settings.DefaultRecipient()
	for _, d := range deadlines {
		if d.Status != model.DeadlineActive || d.ReminderSent {
			continue
		}
		days := status.DaysLeft(d.DueDate, now)
		if days > thresholdDays {
			continue
		}
		report.Candidates++
		res := s.dispatch(ctx, deadlineCandidate(d, days, model.TriggerBulk, thresholdDays), recipient, "", now)
		if res.Error != "" {
			report.Failed = append(report.Failed, res)
		} else {
			report.Dispatched = append(report.Dispatched, res)
		}
	}
	s.logger.Info("Bulk reminders sent",
		zap.Int("threshold_days", thresholdDays),
		zap.Int("dispatched", len(report.Dispatched)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// ResetAll clears every deadline's reminder flag and retires live ledger
// records so the next scan starts from scratch. History is kept.
func (s *ReminderScheduler) ResetAll(ctx context.Context) (ResetReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared, err := s.deadlines.ClearReminders(ctx)
	if err != nil {
		return ResetReport{}, err
	}
	records, err := s.ledger.ResetLive(ctx, s.now())
	if err != nil {
		return ResetReport{Deadlines: cleared}, err
	}
	s.logger.Info("Reminders reset", zap.Int("deadlines", cleared), zap.Int("records", records))
	return ResetReport{Deadlines: cleared, Records: records}, nil
}

func (s *ReminderScheduler) History(ctx context.Context, f repository.HistoryFilter) ([]model.ReminderRecord, error) {
	return s.ledger.History(ctx, f)
}
