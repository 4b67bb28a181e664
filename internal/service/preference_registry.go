package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/repository"
)

// errUnchanged lets a mutation report that nothing needs saving.
var errUnchanged = errors.New("settings unchanged")

// SettingsListener is told about every successful settings change.
type SettingsListener func(model.NotificationSettings)

// PreferenceRegistry owns the notification settings singleton and the
// per-category preferences.
type PreferenceRegistry struct {
	repo      repository.SettingsRepository
	seed      model.NotificationSettings
	mu        sync.Mutex
	listeners []SettingsListener
	// notifyMu orders listener delivery. It is taken before mu is
	// released so listeners see changes in the order they were saved.
	notifyMu sync.Mutex
	logger    *zap.Logger
}

func NewPreferenceRegistry(repo repository.SettingsRepository, seed model.NotificationSettings, logger *zap.Logger) *PreferenceRegistry {
	return &PreferenceRegistry{repo: repo, seed: seed.Clone(), logger: logger}
}

// Init stores the seed settings and default preferences when the backend
// has none yet. Existing rows are left alone.
func (r *PreferenceRegistry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.repo.LoadSettings(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		seed := r.seed.Clone()
		seed.Normalize()
		if err := seed.Validate(); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
		if err := r.repo.SaveSettings(ctx, seed); err != nil {
			return err
		}
		r.logger.Info("Seeded notification settings", zap.Int("recipients", len(seed.EmailRecipients)))
	case err != nil:
		return err
	}

	existing, err := r.repo.ListPreferences(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.ID] = true
	}
	for _, p := range model.DefaultPreferences() {
		if have[p.ID] {
			continue
		}
		if err := r.repo.SavePreference(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *PreferenceRegistry) OnChange(fn SettingsListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *PreferenceRegistry) Settings(ctx context.Context) (model.NotificationSettings, error) {
	s, err := r.repo.LoadSettings(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return r.seed.Clone(), nil
	}
	return s, err
}

func (r *PreferenceRegistry) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.NotificationSettings, error) {
	return r.mutate(ctx, func(s *model.NotificationSettings) error {
		s.Apply(patch)
		return nil
	})
}

// AddRecipient appends addr to the recipient list. Matching is case
// insensitive.
func (r *PreferenceRegistry) AddRecipient(ctx context.Context, addr string) (model.NotificationSettings, error) {
	addr = strings.TrimSpace(addr)
	if err := model.ValidateEmail(addr); err != nil {
		return model.NotificationSettings{}, err
	}
	return r.mutate(ctx, func(s *model.NotificationSettings) error {
		if s.HasRecipient(addr) {
			return &model.DuplicateError{Kind: "recipient", Value: addr}
		}
		s.EmailRecipients = append(s.EmailRecipients, addr)
		return nil
	})
}

// RemoveRecipient drops addr from the recipient list. Removing an address
// that is not on the list leaves the settings untouched.
func (r *PreferenceRegistry) RemoveRecipient(ctx context.Context, addr string) (model.NotificationSettings, error) {
	addr = strings.TrimSpace(addr)
	return r.mutate(ctx, func(s *model.NotificationSettings) error {
		kept := s.EmailRecipients[:0:0]
		for _, existing := range s.EmailRecipients {
			if !strings.EqualFold(existing, addr) {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(s.EmailRecipients) {
			return errUnchanged
		}
		s.EmailRecipients = kept
		return nil
	})
}

func (r *PreferenceRegistry) mutate(ctx context.Context, fn func(*model.NotificationSettings) error) (model.NotificationSettings, error) {
	r.mu.Lock()
	cur, err := r.Settings(ctx)
	if err != nil {
		r.mu.Unlock()
		return model.NotificationSettings{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		r.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return cur, nil
		}
		return model.NotificationSettings{}, err
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		r.mu.Unlock()
		return model.NotificationSettings{}, err
	}
	if err := r.repo.SaveSettings(ctx, next); err != nil {
		r.mu.Unlock()
		return model.NotificationSettings{}, err
	}
	listeners := append([]SettingsListener(nil), r.listeners...)
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	r.logger.Info("Notification settings updated",
		zap.Bool("enabled", next.Enabled),
		zap.Ints("reminder_days", next.ReminderDays),
		zap.Int("recipients", len(next.EmailRecipients)),
	)
	for _, l := range listeners {
		l(next.Clone())
	}
	return next, nil
}

func (r *PreferenceRegistry) Preferences(ctx context.Context) ([]model.NotificationPreference, error) {
	return r.repo.ListPreferences(ctx)
}

func (r *PreferenceRegistry) Preference(ctx context.Context, id string) (model.NotificationPreference, error) {
	prefs, err := r.repo.ListPreferences(ctx)
	if err != nil {
		return model.NotificationPreference{}, err
	}
	for _, p := range prefs {
		if p.ID == id {
			return p, nil
		}
	}
	return model.NotificationPreference{}, model.NewNotFoundError("preference", id)
}

func (r *PreferenceRegistry) UpdatePreference(ctx context.Context, id string, patch model.PreferencePatch) (model.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.Preference(ctx, id)
	if err != nil {
		return model.NotificationPreference{}, err
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.Frequency != nil {
		if !patch.Frequency.Valid() {
			return model.NotificationPreference{}, model.NewValidationError("frequency", "must be one of instant, daily, weekly, never")
		}
		p.Frequency = *patch.Frequency
	}
	if err := r.repo.SavePreference(ctx, p); err != nil {
		return model.NotificationPreference{}, err
	}
	r.logger.Info("Notification preference updated",
		zap.String("preference", p.ID),
		zap.Bool("enabled", p.Enabled),
		zap.String("frequency", string(p.Frequency)),
	)
	return p, nil
}
