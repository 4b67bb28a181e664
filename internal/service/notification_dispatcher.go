package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/notify"
	"admincore/pkg/metrics"
)

// maxQueuedEvents bounds each digest queue; the oldest entries go first.
const maxQueuedEvents = 10000

type DigestReport struct {
	Frequency  model.Frequency `json:"frequency"`
	Events     int             `json:"events"`
	Recipients int             `json:"recipients"`
	Delivered  int             `json:"delivered"`
	Requeued   bool            `json:"requeued"`
	// Suppressed counts queued events dropped because their preference,
	// the digest switch or the master switch no longer allows them.
	Suppressed int `json:"suppressed"`
}

// NotificationDispatcher routes system events through the per-category
// preferences: instant events go out at once, daily and weekly ones wait
// for the next digest.
type NotificationDispatcher struct {
	registry  *PreferenceRegistry
	transport notify.Transport
	now       func() time.Time

	mu    sync.Mutex
	queue map[model.Frequency][]digestEntry

	logger *zap.Logger
}

func NewNotificationDispatcher(registry *PreferenceRegistry, transport notify.Transport, now func() time.Time, logger *zap.Logger) *NotificationDispatcher {
	if now == nil {
		now = time.Now
	}
	return &NotificationDispatcher{
		registry:  registry,
		transport: transport,
		now:       now,
		queue:     make(map[model.Frequency][]digestEntry),
		logger:    logger,
	}
}

// Ingest routes one event and reports the path it took. An instant event
// whose every delivery failed returns the last transport error.
func (d *NotificationDispatcher) Ingest(ctx context.Context, ev model.NotificationEvent) (model.DispatchPath, error) {
	ev.Type = strings.TrimSpace(ev.Type)
	if ev.Type == "" {
		return "", model.NewValidationError("type", "is required")
	}
	if strings.TrimSpace(ev.Title) == "" {
		return "", model.NewValidationError("title", "is required")
	}
	pref, err := d.registry.Preference(ctx, ev.Type)
	if errors.Is(err, model.ErrNotFound) {
		return "", model.NewValidationError("type", "unknown notification type "+ev.Type)
	}
	if err != nil {
		return "", err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now()
	}

	settings, err := d.registry.Settings(ctx)
	if err != nil {
		return "", err
	}

	path := d.route(pref, settings)
	metrics.IncrementNotificationRouted(pref.Category, string(path))
	d.logger.Info("Notification event routed",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("path", string(path)),
	)

	switch path {
	case model.PathInstant:
		_, err := d.deliver(ctx, settings.EmailRecipients, pref.Label+": "+ev.Title, instantBody(pref, ev))
		return path, err
	case model.PathDigest:
		d.enqueue(pref.Frequency, digestEntry{category: pref.Category, event: ev})
	}
	return path, nil
}

func (d *NotificationDispatcher) route(pref model.NotificationPreference, s model.NotificationSettings) model.DispatchPath {
	switch {
	case !s.Enabled, !pref.Active():
		return model.PathSuppressed
	case pref.Frequency == model.FrequencyInstant:
		if len(s.EmailRecipients) == 0 {
			return model.PathSuppressed
		}
		return model.PathInstant
	case !s.DailyDigest:
		return model.PathSuppressed
	default:
		return model.PathDigest
	}
}

func instantBody(pref model.NotificationPreference, ev model.NotificationEvent) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	b.WriteString("\n")
	if ev.Body != "" {
		b.WriteString("\n")
		b.WriteString(ev.Body)
		b.WriteString("\n")
	}
	b.WriteString("\nCategory: ")
	b.WriteString(pref.Category)
	b.WriteString("\nReceived: ")
	b.WriteString(ev.OccurredAt.Format("Mon, 02 Jan 2006 15:04"))
	b.WriteString("\n")
	return b.String()
}

func (d *NotificationDispatcher) enqueue(freq model.Frequency, e digestEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store(freq, append(d.queue[freq], e))
}

// store replaces the freq queue, dropping the oldest entries past the cap.
// Callers hold d.mu.
func (d *NotificationDispatcher) store(freq model.Frequency, q []digestEntry) {
	if over := len(q) - maxQueuedEvents; over > 0 {
		d.logger.Warn("Digest queue full, dropping oldest events",
			zap.String("frequency", string(freq)),
			zap.Int("dropped", over),
		)
		q = q[over:]
	}
	d.queue[freq] = q
}

// Pending returns the number of events waiting for the freq digest.
func (d *NotificationDispatcher) Pending(freq model.Frequency) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue[freq])
}

// RunDigest sends one grouped message per recipient with every event
// queued for freq. Events are put back only when no recipient received it.
func (d *NotificationDispatcher) RunDigest(ctx context.Context, freq model.Frequency) (DigestReport, error) {
	report := DigestReport{Frequency: freq}
	if freq != model.FrequencyDaily && freq != model.FrequencyWeekly {
		return report, model.NewValidationError("frequency", "digest runs for daily or weekly only")
	}
	start := d.now()
	defer func() { metrics.RecordSchedulerRun("digest_"+string(freq), time.Since(start)) }()

	d.mu.Lock()
	entries := d.queue[freq]
	d.queue[freq] = nil
	d.mu.Unlock()

	if len(entries) == 0 {
		return report, nil
	}

	settings, err := d.registry.Settings(ctx)
	if err != nil {
		d.requeue(freq, entries)
		return report, err
	}
	prefs, err := d.registry.Preferences(ctx)
	if err != nil {
		d.requeue(freq, entries)
		return report, err
	}
	entries, report.Suppressed = d.admit(freq, entries, settings, prefs)
	report.Events = len(entries)
	if len(entries) == 0 {
		return report, nil
	}
	report.Recipients = len(settings.EmailRecipients)

	delivered, err := d.deliver(ctx, settings.EmailRecipients,
		digestSubject(freq, len(entries)), digestBody(entries, d.now()))
	report.Delivered = delivered
	if delivered == 0 {
		d.requeue(freq, entries)
		report.Requeued = true
		d.logger.Warn("Digest not delivered, events requeued",
			zap.String("frequency", string(freq)),
			zap.Int("events", len(entries)),
		)
		return report, err
	}

	d.logger.Info("Digest sent",
		zap.String("frequency", string(freq)),
		zap.Int("events", len(entries)),
		zap.Int("delivered", delivered),
		zap.Int("recipients", report.Recipients),
	)
	return report, nil
}

// admit re-checks queued entries against the current settings and
// preferences, returning the ones still routed to the freq digest.
func (d *NotificationDispatcher) admit(freq model.Frequency, entries []digestEntry, s model.NotificationSettings, prefs []model.NotificationPreference) ([]digestEntry, int) {
	byID := make(map[string]model.NotificationPreference, len(prefs))
	for _, p := range prefs {
		byID[p.ID] = p
	}
	kept := entries[:0:0]
	for _, e := range entries {
		pref, ok := byID[e.event.Type]
		if ok && s.Enabled && s.DailyDigest && pref.Active() && pref.Frequency == freq {
			kept = append(kept, e)
			continue
		}
		metrics.IncrementNotificationRouted(e.category, string(model.PathSuppressed))
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		d.logger.Info("Queued events suppressed at digest time",
			zap.String("frequency", string(freq)),
			zap.Int("dropped", dropped),
			zap.Bool("enabled", s.Enabled),
		)
	}
	return kept, len(entries) - len(kept)
}

// requeue puts entries back ahead of anything queued since, keeping the
// queue cap.
func (d *NotificationDispatcher) requeue(freq model.Frequency, entries []digestEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store(freq, append(append([]digestEntry(nil), entries...), d.queue[freq]...))
}

// deliver sends to every recipient and returns how many succeeded. The
// error is the last failure, reported only when nothing was delivered.
func (d *NotificationDispatcher) deliver(ctx context.Context, recipients []string, subject, body string) (int, error) {
	var lastErr error
	delivered := 0
	for _, to := range recipients {
		err := d.transport.Send(ctx, to, subject, body)
		if err != nil {
			if !errors.Is(err, model.ErrTransport) {
				err = &model.TransportError{To: to, Err: err}
			}
			d.logger.Warn("Notification delivery failed", zap.String("to", to), zap.Error(err))
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return delivered, nil
	}
	return 0, lastErr
}
