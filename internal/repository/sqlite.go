package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"admincore/internal/model"
)

// SQLiteStore is the embedded backend. All access goes through one
// connection, so write transactions never contend.
type SQLiteStore struct {
	db     *sqlx.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path, enables WAL and
// applies outstanding migrations. Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string, now func() time.Time, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if now == nil {
		now = time.Now
	}
	s := &SQLiteStore{db: db, now: now, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

// Migrate applies every migration newer than the recorded schema version.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	current := 0
	var tables int
	err := s.db.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tables > 0 {
		if err := s.db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}
	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.Info("Applied sqlite migration", zap.Int("version", m.version))
	}
	return nil
}

type taskRow struct {
	model.Task
	DetailsJSON string `db:"details"`
}

type deadlineRow struct {
	model.Deadline
	DetailsJSON string `db:"details"`
}

const (
	taskColumns = `id, title, description, category, priority, status, due_date,
		assigned_to, department, pending_item_count, details, created_at, updated_at`
	deadlineColumns = `id, title, description, type, priority, status, due_date,
		assigned_to, department, pending_item_count, details, reminder_sent,
		reminder_date, created_at, updated_at`
)

func (r taskRow) toModel() (model.Task, error) {
	t := r.Task
	if err := decodeList(r.DetailsJSON, &t.Details); err != nil {
		return model.Task{}, fmt.Errorf("decoding details of task %d: %w", t.ID, err)
	}
	return t, nil
}

func (r deadlineRow) toModel() (model.Deadline, error) {
	d := r.Deadline
	if err := decodeList(r.DetailsJSON, &d.Details); err != nil {
		return model.Deadline{}, fmt.Errorf("decoding details of deadline %d: %w", d.ID, err)
	}
	return d, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	details, err := json.Marshal(t.Details)
	if err != nil {
		return model.Task{}, fmt.Errorf("encoding details: %w", err)
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, category, priority, status, due_date,
			assigned_to, department, pending_item_count, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate,
		t.AssignedTo, t.Department, t.PendingItemCount, string(details), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return model.Task{}, fmt.Errorf("reading task id: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id int64, mutate TaskMutator) (model.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Task{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getTask(ctx, tx, id)
	if err != nil {
		return model.Task{}, err
	}
	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return model.Task{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = laterOf(s.now().UTC(), cur.CreatedAt)
	details, err := json.Marshal(next.Details)
	if err != nil {
		return model.Task{}, fmt.Errorf("encoding details: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, category = ?, priority = ?, status = ?,
			due_date = ?, assigned_to = ?, department = ?, pending_item_count = ?,
			details = ?, updated_at = ?
		WHERE id = ?`,
		next.Title, next.Description, next.Category, next.Priority, next.Status,
		next.DueDate, next.AssignedTo, next.Department, next.PendingItemCount,
		string(details), next.UpdatedAt, id,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, fmt.Errorf("committing task %d: %w", id, err)
	}
	return next, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "tasks", "task", id)
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+taskColumns+" FROM tasks ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id int64) (model.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, model.NewNotFoundError("task", id)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	return row.toModel()
}

func (s *SQLiteStore) CreateDeadline(ctx context.Context, d model.Deadline) (model.Deadline, error) {
	d.ReminderSent, d.ReminderDate = false, nil
	d.Normalize()
	if err := d.Validate(); err != nil {
		return model.Deadline{}, err
	}
	details, err := json.Marshal(d.Details)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("encoding details: %w", err)
	}
	now := s.now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deadlines (title, description, type, priority, status, due_date,
			assigned_to, department, pending_item_count, details, reminder_sent,
			reminder_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		d.Title, d.Description, d.Type, d.Priority, d.Status, d.DueDate,
		d.AssignedTo, d.Department, d.PendingItemCount, string(details), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("creating deadline: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return model.Deadline{}, fmt.Errorf("reading deadline id: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) UpdateDeadline(ctx context.Context, id int64, mutate DeadlineMutator) (model.Deadline, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getDeadline(ctx, tx, id)
	if err != nil {
		return model.Deadline{}, err
	}
	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return model.Deadline{}, err
	}
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = laterOf(s.now().UTC(), cur.CreatedAt)
	details, err := json.Marshal(next.Details)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("encoding details: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE deadlines SET title = ?, description = ?, type = ?, priority = ?, status = ?,
			due_date = ?, assigned_to = ?, department = ?, pending_item_count = ?,
			details = ?, reminder_sent = ?, reminder_date = ?, updated_at = ?
		WHERE id = ?`,
		next.Title, next.Description, next.Type, next.Priority, next.Status,
		next.DueDate, next.AssignedTo, next.Department, next.PendingItemCount,
		string(details), next.ReminderSent, next.ReminderDate, next.UpdatedAt, id,
	)
	if err != nil {
		return model.Deadline{}, fmt.Errorf("updating deadline %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Deadline{}, fmt.Errorf("committing deadline %d: %w", id, err)
	}
	return next, nil
}

func (s *SQLiteStore) DeleteDeadline(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "deadlines", "deadline", id)
}

func (s *SQLiteStore) GetDeadline(ctx context.Context, id int64) (model.Deadline, error) {
	return getDeadline(ctx, s.db, id)
}

func (s *SQLiteStore) ListDeadlines(ctx context.Context) ([]model.Deadline, error) {
	var rows []deadlineRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+deadlineColumns+" FROM deadlines ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing deadlines: %w", err)
	}
	out := make([]model.Deadline, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func getDeadline(ctx context.Context, q sqlx.QueryerContext, id int64) (model.Deadline, error) {
	var row deadlineRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+deadlineColumns+" FROM deadlines WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Deadline{}, model.NewNotFoundError("deadline", id)
	}
	if err != nil {
		return model.Deadline{}, fmt.Errorf("getting deadline %d: %w", id, err)
	}
	return row.toModel()
}

func (s *SQLiteStore) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := getDeadline(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := markable(d); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE deadlines SET reminder_sent = 1, reminder_date = ? WHERE id = ?", at.UTC(), id); err != nil {
		return fmt.Errorf("marking deadline %d reminded: %w", id, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClearReminders(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deadlines SET reminder_sent = 0, reminder_date = NULL WHERE reminder_sent = 1 OR reminder_date IS NOT NULL")
	if err != nil {
		return 0, fmt.Errorf("clearing reminders: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, kind string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError(kind, id)
	}
	return nil
}

type settingsRow struct {
	Enabled         bool   `db:"enabled"`
	ReminderDays    string `db:"reminder_days"`
	EmailRecipients string `db:"email_recipients"`
	NotifyOnUrgent  bool   `db:"notify_on_urgent"`
	NotifyOnOverdue bool   `db:"notify_on_overdue"`
	DailyDigest     bool   `db:"daily_digest"`
	DigestTime      string `db:"digest_time"`
	DigestDay       string `db:"digest_day"`
}

func newSettingsRow(st model.NotificationSettings) (settingsRow, error) {
	days, err := json.Marshal(st.ReminderDays)
	if err != nil {
		return settingsRow{}, fmt.Errorf("encoding reminder_days: %w", err)
	}
	recipients, err := json.Marshal(st.EmailRecipients)
	if err != nil {
		return settingsRow{}, fmt.Errorf("encoding email_recipients: %w", err)
	}
	return settingsRow{
		Enabled:         st.Enabled,
		ReminderDays:    string(days),
		EmailRecipients: string(recipients),
		NotifyOnUrgent:  st.NotifyOnUrgent,
		NotifyOnOverdue: st.NotifyOnOverdue,
		DailyDigest:     st.DailyDigest,
		DigestTime:      st.DigestTime,
		DigestDay:       st.DigestDay,
	}, nil
}

func (r settingsRow) toModel() (model.NotificationSettings, error) {
	st := model.NotificationSettings{
		Enabled:         r.Enabled,
		NotifyOnUrgent:  r.NotifyOnUrgent,
		NotifyOnOverdue: r.NotifyOnOverdue,
		DailyDigest:     r.DailyDigest,
		DigestTime:      r.DigestTime,
		DigestDay:       r.DigestDay,
	}
	if err := decodeList(r.ReminderDays, &st.ReminderDays); err != nil {
		return st, fmt.Errorf("decoding reminder_days: %w", err)
	}
	if err := decodeList(r.EmailRecipients, &st.EmailRecipients); err != nil {
		return st, fmt.Errorf("decoding email_recipients: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (model.NotificationSettings, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT enabled, reminder_days, email_recipients, notify_on_urgent,
			notify_on_overdue, daily_digest, digest_time, digest_day
		FROM notification_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotificationSettings{}, model.NewNotFoundError("settings", "notification")
	}
	if err != nil {
		return model.NotificationSettings{}, fmt.Errorf("loading settings: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st model.NotificationSettings) error {
	row, err := newSettingsRow(st)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO notification_settings (id, enabled, reminder_days, email_recipients,
			notify_on_urgent, notify_on_overdue, daily_digest, digest_time, digest_day)
		VALUES (1, :enabled, :reminder_days, :email_recipients, :notify_on_urgent,
			:notify_on_overdue, :daily_digest, :digest_time, :digest_day)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			reminder_days = excluded.reminder_days,
			email_recipients = excluded.email_recipients,
			notify_on_urgent = excluded.notify_on_urgent,
			notify_on_overdue = excluded.notify_on_overdue,
			daily_digest = excluded.daily_digest,
			digest_time = excluded.digest_time,
			digest_day = excluded.digest_day`, row)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPreferences(ctx context.Context) ([]model.NotificationPreference, error) {
	out := []model.NotificationPreference{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, category, label, description, enabled, frequency
		FROM notification_preferences ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SavePreference(ctx context.Context, p model.NotificationPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (id, position, category, label, description, enabled, frequency)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM notification_preferences), ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			label = excluded.label,
			description = excluded.description,
			enabled = excluded.enabled,
			frequency = excluded.frequency`,
		p.ID, p.Category, p.Label, p.Description, p.Enabled, p.Frequency,
	)
	if err != nil {
		return fmt.Errorf("saving preference %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) HasLive(ctx context.Context, kind model.EntityKind, id int64, threshold int) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM reminder_records
		WHERE kind = ? AND entity_id = ? AND threshold = ? AND reset_at IS NULL`,
		kind, id, threshold)
	if err != nil {
		return false, fmt.Errorf("checking reminder ledger: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Record(ctx context.Context, r model.ReminderRecord) (model.ReminderRecord, error) {
	r.SentAt = r.SentAt.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_records (kind, entity_id, threshold, trigger_kind, recipient, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Kind, r.EntityID, r.Threshold, r.Trigger, r.Recipient, r.SentAt)
	if err != nil {
		return r, fmt.Errorf("recording reminder %s: %w", r.Key(), err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return r, fmt.Errorf("reading reminder id: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ResetLive(ctx context.Context, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE reminder_records SET reset_at = ? WHERE reset_at IS NULL", at.UTC())
	if err != nil {
		return 0, fmt.Errorf("resetting reminder ledger: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) History(ctx context.Context, f HistoryFilter) ([]model.ReminderRecord, error) {
	query := `SELECT id, kind, entity_id, threshold, trigger_kind, recipient, sent_at, reset_at
		FROM reminder_records WHERE 1 = 1`
	var args []any
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.EntityID != 0 {
		query += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, f.limit())

	out := []model.ReminderRecord{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("reading reminder history: %w", err)
	}
	return out, nil
}

func decodeList[T any](raw string, out *[]T) error {
	*out = []T{}
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
