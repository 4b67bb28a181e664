package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"admincore/internal/model"
)

// PostgresStore is the server backend. Single-entity updates lock the row
// with SELECT ... FOR UPDATE inside a transaction.
type PostgresStore struct {
	db     *pgxpool.Pool
	now    func() time.Time
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, now func() time.Time, logger *zap.Logger) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now, logger: logger}
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Migrate applies outstanding migrations, each in its own transaction.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}
	var current int
	if err := s.db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for _, m := range postgresMigrations {
		if m.version <= current {
			continue
		}
		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.Info("Applied postgres migration", zap.Int("version", m.version))
	}
	return nil
}

const (
	pgTaskColumns = `id, title, description, category, priority, status, due_date,
		assigned_to, department, pending_item_count, details, created_at, updated_at`
	pgDeadlineColumns = `id, title, description, type, priority, status, due_date,
		assigned_to, department, pending_item_count, details, reminder_sent,
		reminder_date, created_at, updated_at`
)

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status, &t.DueDate,
		&t.AssignedTo, &t.Department, &t.PendingItemCount, &t.Details, &t.CreatedAt, &t.UpdatedAt,
	)
	if t.Details == nil {
		t.Details = []string{}
	}
	return t, err
}

func scanDeadline(row pgx.Row) (model.Deadline, error) {
	var d model.Deadline
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.Type, &d.Priority, &d.Status, &d.DueDate,
		&d.AssignedTo, &d.Department, &d.PendingItemCount, &d.Details, &d.ReminderSent,
		&d.ReminderDate, &d.CreatedAt, &d.UpdatedAt,
	)
	if d.Details == nil {
		d.Details = []string{}
	}
	return d, err
}

func (s *PostgresStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now

	s.logger.Debug("Inserting task", zap.String("title", t.Title), zap.String("category", string(t.Category)))
	err := s.db.QueryRow(ctx, `
		INSERT INTO tasks (title, description, category, priority, status, due_date,
			assigned_to, department, pending_item_count, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate,
		t.AssignedTo, t.Department, t.PendingItemCount, t.Details, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		s.logger.Error("Failed to insert task", zap.Error(err))
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id int64, mutate TaskMutator) (model.Task, error) {
	var next model.Task
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := scanTask(tx.QueryRow(ctx, "SELECT "+pgTaskColumns+" FROM tasks WHERE id = $1 FOR UPDATE", id))
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewNotFoundError("task", id)
		}
		if err != nil {
			return fmt.Errorf("locking task %d: %w", id, err)
		}
		next = cur.Clone()
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
		next.UpdatedAt = laterOf(s.now(), cur.CreatedAt)
		_, err = tx.Exec(ctx, `
			UPDATE tasks SET title = $1, description = $2, category = $3, priority = $4, status = $5,
				due_date = $6, assigned_to = $7, department = $8, pending_item_count = $9,
				details = $10, updated_at = $11
			WHERE id = $12`,
			next.Title, next.Description, next.Category, next.Priority, next.Status,
			next.DueDate, next.AssignedTo, next.Department, next.PendingItemCount,
			next.Details, next.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("updating task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return next, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "tasks", "task", id)
}

func (s *PostgresStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, "SELECT "+pgTaskColumns+" FROM tasks WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, model.NewNotFoundError("task", id)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("getting task %d: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.Query(ctx, "SELECT "+pgTaskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) CreateDeadline(ctx context.Context, d model.Deadline) (model.Deadline, error) {
	d.ReminderSent, d.ReminderDate = false, nil
	d.Normalize()
	if err := d.Validate(); err != nil {
		return model.Deadline{}, err
	}
	now := s.now()
	d.CreatedAt, d.UpdatedAt = now, now

	s.logger.Debug("Inserting deadline", zap.String("title", d.Title), zap.String("type", string(d.Type)))
	err := s.db.QueryRow(ctx, `
		INSERT INTO deadlines (title, description, type, priority, status, due_date,
			assigned_to, department, pending_item_count, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		d.Title, d.Description, d.Type, d.Priority, d.Status, d.DueDate,
		d.AssignedTo, d.Department, d.PendingItemCount, d.Details, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		s.logger.Error("Failed to insert deadline", zap.Error(err))
		return model.Deadline{}, fmt.Errorf("creating deadline: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDeadline(ctx context.Context, id int64, mutate DeadlineMutator) (model.Deadline, error) {
	var next model.Deadline
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := s.lockDeadline(ctx, tx, id)
		if err != nil {
			return err
		}
		next = cur.Clone()
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
		next.UpdatedAt = laterOf(s.now(), cur.CreatedAt)
		_, err = tx.Exec(ctx, `
			UPDATE deadlines SET title = $1, description = $2, type = $3, priority = $4, status = $5,
				due_date = $6, assigned_to = $7, department = $8, pending_item_count = $9,
				details = $10, reminder_sent = $11, reminder_date = $12, updated_at = $13
			WHERE id = $14`,
			next.Title, next.Description, next.Type, next.Priority, next.Status,
			next.DueDate, next.AssignedTo, next.Department, next.PendingItemCount,
			next.Details, next.ReminderSent, next.ReminderDate, next.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("updating deadline %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Deadline{}, err
	}
	return next, nil
}

func (s *PostgresStore) lockDeadline(ctx context.Context, tx pgx.Tx, id int64) (model.Deadline, error) {
	d, err := scanDeadline(tx.QueryRow(ctx, "SELECT "+pgDeadlineColumns+" FROM deadlines WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Deadline{}, model.NewNotFoundError("deadline", id)
	}
	if err != nil {
		return model.Deadline{}, fmt.Errorf("locking deadline %d: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) DeleteDeadline(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "deadlines", "deadline", id)
}

func (s *PostgresStore) GetDeadline(ctx context.Context, id int64) (model.Deadline, error) {
	d, err := scanDeadline(s.db.QueryRow(ctx, "SELECT "+pgDeadlineColumns+" FROM deadlines WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Deadline{}, model.NewNotFoundError("deadline", id)
	}
	if err != nil {
		return model.Deadline{}, fmt.Errorf("getting deadline %d: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) ListDeadlines(ctx context.Context) ([]model.Deadline, error) {
	rows, err := s.db.Query(ctx, "SELECT "+pgDeadlineColumns+" FROM deadlines ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing deadlines: %w", err)
	}
	defer rows.Close()

	deadlines := []model.Deadline{}
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deadline row: %w", err)
		}
		deadlines = append(deadlines, d)
	}
	return deadlines, rows.Err()
}

func (s *PostgresStore) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		d, err := s.lockDeadline(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := markable(d); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE deadlines SET reminder_sent = TRUE, reminder_date = $1 WHERE id = $2", at, id)
		if err != nil {
			return fmt.Errorf("marking deadline %d reminded: %w", id, err)
		}
		return nil
	})
}

func (s *PostgresStore) ClearReminders(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE deadlines SET reminder_sent = FALSE, reminder_date = NULL
		WHERE reminder_sent OR reminder_date IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clearing reminders: %w", err)
	}
	s.logger.Info("Cleared deadline reminders", zap.Int64("rows_affected", tag.RowsAffected()))
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) deleteByID(ctx context.Context, table, kind string, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(kind, id)
	}
	return nil
}

func (s *PostgresStore) LoadSettings(ctx context.Context) (model.NotificationSettings, error) {
	var st model.NotificationSettings
	err := s.db.QueryRow(ctx, `
		SELECT enabled, reminder_days, email_recipients, notify_on_urgent,
			notify_on_overdue, daily_digest, digest_time, digest_day
		FROM notification_settings WHERE id = 1`).Scan(
		&st.Enabled, &st.ReminderDays, &st.EmailRecipients, &st.NotifyOnUrgent,
		&st.NotifyOnOverdue, &st.DailyDigest, &st.DigestTime, &st.DigestDay,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotificationSettings{}, model.NewNotFoundError("settings", "notification")
	}
	if err != nil {
		return model.NotificationSettings{}, fmt.Errorf("loading settings: %w", err)
	}
	return st.Clone(), nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, st model.NotificationSettings) error {
	st = st.Clone()
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_settings (id, enabled, reminder_days, email_recipients,
			notify_on_urgent, notify_on_overdue, daily_digest, digest_time, digest_day)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			reminder_days = EXCLUDED.reminder_days,
			email_recipients = EXCLUDED.email_recipients,
			notify_on_urgent = EXCLUDED.notify_on_urgent,
			notify_on_overdue = EXCLUDED.notify_on_overdue,
			daily_digest = EXCLUDED.daily_digest,
			digest_time = EXCLUDED.digest_time,
			digest_day = EXCLUDED.digest_day`,
		st.Enabled, st.ReminderDays, st.EmailRecipients, st.NotifyOnUrgent,
		st.NotifyOnOverdue, st.DailyDigest, st.DigestTime, st.DigestDay,
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPreferences(ctx context.Context) ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, label, description, enabled, frequency
		FROM notification_preferences ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	prefs, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.NotificationPreference])
	if err != nil {
		return nil, fmt.Errorf("scanning preferences: %w", err)
	}
	return prefs, nil
}

func (s *PostgresStore) SavePreference(ctx context.Context, p model.NotificationPreference) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences (id, category, label, description, enabled, frequency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			label = EXCLUDED.label,
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			frequency = EXCLUDED.frequency`,
		p.ID, p.Category, p.Label, p.Description, p.Enabled, p.Frequency,
	)
	if err != nil {
		return fmt.Errorf("saving preference %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) HasLive(ctx context.Context, kind model.EntityKind, id int64, threshold int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminder_records
			WHERE kind = $1 AND entity_id = $2 AND threshold = $3 AND reset_at IS NULL
		)`, kind, id, threshold).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking reminder ledger: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Record(ctx context.Context, r model.ReminderRecord) (model.ReminderRecord, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO reminder_records (kind, entity_id, threshold, trigger_kind, recipient, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.Kind, r.EntityID, r.Threshold, r.Trigger, r.Recipient, r.SentAt,
	).Scan(&r.ID)
	if err != nil {
		return r, fmt.Errorf("recording reminder %s: %w", r.Key(), err)
	}
	return r, nil
}

func (s *PostgresStore) ResetLive(ctx context.Context, at time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, "UPDATE reminder_records SET reset_at = $1 WHERE reset_at IS NULL", at)
	if err != nil {
		return 0, fmt.Errorf("resetting reminder ledger: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) History(ctx context.Context, f HistoryFilter) ([]model.ReminderRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, entity_id, threshold, trigger_kind, recipient, sent_at, reset_at
		FROM reminder_records
		WHERE ($1 = '' OR kind = $1) AND ($2 = 0 OR entity_id = $2)
		ORDER BY id DESC
		LIMIT $3`, string(f.Kind), f.EntityID, f.limit())
	if err != nil {
		return nil, fmt.Errorf("reading reminder history: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ReminderRecord])
	if err != nil {
		return nil, fmt.Errorf("scanning reminder history: %w", err)
	}
	return records, nil
}
