package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		bulkDaysFlag, resetFlag = -1, false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDigestCommandCallsServer(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/digest", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"frequency":"weekly","events":2}`))
	}))
	defer srv.Close()

	out, err := execute(t, "digest", "--frequency", "Weekly", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "weekly", got["frequency"])
	assert.Contains(t, out, `"events":2`)
}

func TestDigestCommandRejectsUnknownFrequency(t *testing.T) {
	_, err := execute(t, "digest", "--frequency", "hourly")
	assert.ErrorContains(t, err, "daily or weekly")
}

func TestRemindCommandRunsAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	base := "logger:\n  level: error\nstorage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "data", "admin.db") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o644))

	_, err := execute(t, "migrate", "--env", "base", "--config-dir", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "data", "admin.db"))

	out, err := execute(t, "remind", "--env", "base", "--config-dir", dir)
	require.NoError(t, err)
	var report struct {
		Candidates int `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Candidates)
}
