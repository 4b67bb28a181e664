package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"admincore/internal/model"
)

// MemoryStore keeps everything in maps guarded by one mutex.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	tasks        map[int64]model.Task
	deadlines    map[int64]model.Deadline
	nextTaskID   int64
	nextDeadline int64

	settings    *model.NotificationSettings
	preferences map[string]model.NotificationPreference
	prefOrder   []string

	records    []model.ReminderRecord
	nextRecord int64

	logger *zap.Logger
}

func NewMemoryStore(now func() time.Time, logger *zap.Logger) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:         now,
		tasks:       make(map[int64]model.Task),
		deadlines:   make(map[int64]model.Deadline),
		preferences: make(map[string]model.NotificationPreference),
		logger:      logger,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func (s *MemoryStore) CreateTask(_ context.Context, t model.Task) (model.Task, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTaskID++
	now := s.now()
	t.ID = s.nextTaskID
	t.CreatedAt, t.UpdatedAt = now, now
	s.tasks[t.ID] = t.Clone()
	s.logger.Debug("Task created", zap.Int64("task_id", t.ID))
	return t, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, id int64, mutate TaskMutator) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.NewNotFoundError("task", id)
	}
	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return model.Task{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = laterOf(s.now(), cur.CreatedAt)
	s.tasks[id] = next.Clone()
	return next, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return model.NewNotFoundError("task", id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, model.NewNotFoundError("task", id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ListTasks(context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b model.Task) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) CreateDeadline(_ context.Context, d model.Deadline) (model.Deadline, error) {
	d.ReminderSent, d.ReminderDate = false, nil
	d.Normalize()
	if err := d.Validate(); err != nil {
		return model.Deadline{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDeadline++
	now := s.now()
	d.ID = s.nextDeadline
	d.CreatedAt, d.UpdatedAt = now, now
	s.deadlines[d.ID] = d.Clone()
	s.logger.Debug("Deadline created", zap.Int64("deadline_id", d.ID))
	return d, nil
}

func (s *MemoryStore) UpdateDeadline(_ context.Context, id int64, mutate DeadlineMutator) (model.Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.deadlines[id]
	if !ok {
		return model.Deadline{}, model.NewNotFoundError("deadline", id)
	}
	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return model.Deadline{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = laterOf(s.now(), cur.CreatedAt)
	s.deadlines[id] = next.Clone()
	return next, nil
}

func (s *MemoryStore) DeleteDeadline(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deadlines[id]; !ok {
		return model.NewNotFoundError("deadline", id)
	}
	delete(s.deadlines, id)
	return nil
}

func (s *MemoryStore) GetDeadline(_ context.Context, id int64) (model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deadlines[id]
	if !ok {
		return model.Deadline{}, model.NewNotFoundError("deadline", id)
	}
	return d.Clone(), nil
}

func (s *MemoryStore) ListDeadlines(context.Context) ([]model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Deadline, 0, len(s.deadlines))
	for _, d := range s.deadlines {
		out = append(out, d.Clone())
	}
	slices.SortFunc(out, func(a, b model.Deadline) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) MarkReminded(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[id]
	if !ok {
		return model.NewNotFoundError("deadline", id)
	}
	if err := markable(d); err != nil {
		return err
	}
	d.ReminderSent = true
	d.ReminderDate = &at
	s.deadlines[id] = d
	return nil
}

func (s *MemoryStore) ClearReminders(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for id, d := range s.deadlines {
		if d.ReminderSent || d.ReminderDate != nil {
			cleared++
		}
		d.ReminderSent, d.ReminderDate = false, nil
		s.deadlines[id] = d
	}
	return cleared, nil
}

func (s *MemoryStore) LoadSettings(context.Context) (model.NotificationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return model.NotificationSettings{}, model.NewNotFoundError("settings", "notification")
	}
	return s.settings.Clone(), nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, settings model.NotificationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := settings.Clone()
	s.settings = &c
	return nil
}

func (s *MemoryStore) ListPreferences(context.Context) ([]model.NotificationPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.NotificationPreference, 0, len(s.prefOrder))
	for _, id := range s.prefOrder {
		out = append(out, s.preferences[id])
	}
	return out, nil
}

func (s *MemoryStore) SavePreference(_ context.Context, p model.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.preferences[p.ID]; !ok {
		s.prefOrder = append(s.prefOrder, p.ID)
	}
	s.preferences[p.ID] = p
	return nil
}

func (s *MemoryStore) HasLive(_ context.Context, kind model.EntityKind, id int64, threshold int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ResetAt == nil && r.Kind == kind && r.EntityID == id && r.Threshold == threshold {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Record(_ context.Context, r model.ReminderRecord) (model.ReminderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRecord++
	r.ID = s.nextRecord
	s.records = append(s.records, r)
	return r, nil
}

func (s *MemoryStore) ResetLive(_ context.Context, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.records {
		if s.records[i].ResetAt == nil {
			stamp := at
			s.records[i].ResetAt = &stamp
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) History(_ context.Context, f HistoryFilter) ([]model.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.ReminderRecord{}
	for i := len(s.records) - 1; i >= 0 && len(out) < f.limit(); i-- {
		if f.match(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// laterOf keeps updated_at from going behind created_at when the clock
// steps backwards.
func laterOf(now, floor time.Time) time.Time {
	if now.Before(floor) {
		return floor
	}
	return now
}
