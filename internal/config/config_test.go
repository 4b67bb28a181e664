package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadMergesEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
storage:
  driver: sqlite
  sqlite_path: /var/lib/admincore.db
scheduler:
  interval: 1h
notifications:
  reminder_days: [7, 1, 3, 3]
  email_recipients: ["${OPS_EMAIL}"]
  digest_time: "08:15"
`)
	writeFile(t, dir, "staging.yaml", `
scheduler:
  interval: 10m
  remind_tasks: true
`)
	writeFile(t, dir, "secrets.env", "OPS_EMAIL=ops@example.com\n")

	cfg, err := Load("staging", dir)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.RemindTasks)
	assert.Equal(t, []int{1, 3, 7}, cfg.Notifications.ReminderDays)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Notifications.EmailRecipients)
	assert.Equal(t, "08:15", cfg.Notifications.DigestTime)
	assert.Equal(t, "monday", cfg.Notifications.DigestDay)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.MQEnabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "storage:\n  driver: memory\n")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load("local", dir)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "admincore", cfg.Redis.Namespace)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "storage:\n  driver: mongo\n",
		"short interval": "scheduler:\n  interval: 10ms\n",
		"bad timezone":   "scheduler:\n  timezone: Mars/Olympus\n",
		"bad digest":     "notifications:\n  digest_time: noon\n",
		"bad recipient":  "notifications:\n  email_recipients: [nobody]\n",
		"bad sender":     "mail:\n  from: not-an-address\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "base.yaml", body)
			_, err := Load("", dir)
			assert.Error(t, err)
		})
	}
}

func TestRepositoryConfigFilesLoad(t *testing.T) {
	for _, env := range []string{"local", "base"} {
		cfg, err := Load(env, filepath.Join("..", "..", "config"))
		require.NoError(t, err, env)
		assert.NotEmpty(t, cfg.Storage.Driver)
	}
}
