// Package scheduler drives the reminder scan on a fixed interval and the
// notification digests on cron schedules derived from the settings.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

type ReminderRunner interface {
	Run(ctx context.Context) (service.RunReport, error)
}

type DigestRunner interface {
	RunDigest(ctx context.Context, freq model.Frequency) (service.DigestReport, error)
}

type Config struct {
	// Interval between reminder scans.
	Interval time.Duration
	// Location the digest time of day is read in.
	Location *time.Location
}

// Runner owns the background loops. It runs only while the notification
// settings are enabled; switching them off lets an in-flight pass finish.
type Runner struct {
	reminders ReminderRunner
	digests   DigestRunner
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	parent   context.Context
	running  bool
	stopLoop context.CancelFunc
	loopDone chan struct{}
	cron     *cron.Cron
	specs    []string
}

func NewRunner(reminders ReminderRunner, digests DigestRunner, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Runner{reminders: reminders, digests: digests, cfg: cfg, logger: logger, parent: context.Background()}
}

// Start binds the runner to ctx and applies the initial settings. The
// runner stops when ctx is done.
func (r *Runner) Start(ctx context.Context, settings model.NotificationSettings) error {
	r.mu.Lock()
	r.parent = ctx
	r.mu.Unlock()

	if err := r.Apply(settings); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Apply reconciles the loops with settings. It is safe to register as a
// settings listener.
func (r *Runner) Apply(settings model.NotificationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.parent.Err() != nil {
		return nil
	}
	if !settings.Enabled {
		if r.running {
			r.logger.Info("Notifications disabled, stopping scheduler")
			r.stopLocked()
		}
		return nil
	}

	specs, err := DigestSpecs(settings)
	if err != nil {
		return err
	}
	if r.running {
		if !sameSpecs(specs, r.specs) {
			r.logger.Info("Digest schedule changed, re-registering jobs", zap.Strings("specs", specs))
			r.stopCronLocked()
			return r.startCronLocked(specs)
		}
		return nil
	}

	if err := r.startCronLocked(specs); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(r.parent)
	r.stopLoop = cancel
	r.loopDone = make(chan struct{})
	r.running = true
	go r.loop(loopCtx, r.loopDone)
	r.logger.Info("Scheduler started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Strings("digest_specs", specs),
	)
	return nil
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop halts both loops and waits for the current pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.stopLocked()
	}
}

func (r *Runner) stopLocked() {
	r.stopLoop()
	<-r.loopDone
	r.stopCronLocked()
	r.running = false
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reminder loop stopped")
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

// scan runs one pass on a context that outlives a stop request, so a
// started dispatch is never cut short.
func (r *Runner) scan(ctx context.Context) {
	report, err := r.reminders.Run(context.WithoutCancel(ctx))
	if err != nil {
		r.logger.Error("Reminder scan failed", zap.Error(err))
		return
	}
	if len(report.Dispatched) > 0 || len(report.Failed) > 0 {
		r.logger.Info("Reminder scan finished",
			zap.Int("dispatched", len(report.Dispatched)),
			zap.Int("failed", len(report.Failed)),
		)
	}
}

func (r *Runner) startCronLocked(specs []string) error {
	c := cron.New(
		cron.WithLocation(r.cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(r.logger)))),
	)
	ctx := context.WithoutCancel(r.parent)
	freqs := []model.Frequency{model.FrequencyDaily, model.FrequencyWeekly}
	for i, spec := range specs {
		freq := freqs[i]
		if _, err := c.AddFunc(spec, func() { r.digest(ctx, freq) }); err != nil {
			return fmt.Errorf("registering %s digest %q: %w", freq, spec, err)
		}
	}
	c.Start()
	r.cron = c
	r.specs = specs
	return nil
}

func (r *Runner) stopCronLocked() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
	r.specs = nil
}

func (r *Runner) digest(ctx context.Context, freq model.Frequency) {
	report, err := r.digests.RunDigest(ctx, freq)
	if err != nil {
		r.logger.Error("Digest run failed", zap.String("frequency", string(freq)), zap.Error(err))
		return
	}
	r.logger.Info("Digest run finished",
		zap.String("frequency", string(freq)),
		zap.Int("events", report.Events),
		zap.Int("delivered", report.Delivered),
		zap.Int("suppressed", report.Suppressed),
	)
}

// DigestSpecs returns the daily and weekly cron specs for settings.
func DigestSpecs(s model.NotificationSettings) ([]string, error) {
	hour, minute, err := model.ParseClock(s.DigestTime)
	if err != nil {
		return nil, err
	}
	day, err := model.ParseWeekday(s.DigestDay)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("%d %d * * *", minute, hour),
		fmt.Sprintf("%d %d * * %d", minute, hour, int(day)),
	}, nil
}

func sameSpecs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
