package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/internal/handler"
	"admincore/internal/model"
	"admincore/internal/repository"
	"admincore/internal/service"
	"admincore/internal/testutil"
	"admincore/pkg/trace"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	router    *Router
	transport *testutil.Transport
	store     *repository.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := testutil.NewClock(now)
	logger := zap.NewNop()
	store := repository.NewMemoryStore(clock.Now, logger)

	seed := model.DefaultSettings()
	seed.EmailRecipients = []string{"ops@example.com"}
	registry := service.NewPreferenceRegistry(store, seed, logger)
	require.NoError(t, registry.Init(context.Background()))

	transport := testutil.NewTransport()
	reminders := service.NewReminderScheduler(store, store, store, registry, transport, service.SchedulerOptions{}, clock.Now, logger)
	dispatcher := service.NewNotificationDispatcher(registry, transport, clock.Now, logger)

	h := Handlers{
		Tasks:         handler.NewTaskHandler(service.NewTaskService(store, clock.Now, logger), logger),
		Deadlines:     handler.NewDeadlineHandler(service.NewDeadlineService(store, clock.Now, logger), reminders, logger),
		Reminders:     handler.NewReminderHandler(reminders, logger),
		Settings:      handler.NewSettingsHandler(registry, logger),
		Notifications: handler.NewNotificationHandler(dispatcher, logger),
	}
	return &fixture{router: NewRouter(h, store, logger), transport: transport, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Renew insurance", "category": "finance", "priority": "high",
		"due_date": "2026-03-12", "assigned_to": "Jane Doe", "department": "Finance",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.TaskView](t, w)
	assert.Equal(t, model.TaskPending, created.Status)
	assert.Equal(t, 2, created.DaysLeft)
	assert.Equal(t, model.UrgencyUrgent, created.Urgency)

	w = f.do(t, http.MethodPost, "/api/tasks/1/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.TaskInProgress, decode[model.TaskView](t, w).Status)

	w = f.do(t, http.MethodPatch, "/api/tasks/1", map[string]any{"due_date": "2026-03-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.TaskOverdue, decode[model.TaskView](t, w).DisplayStatus)

	w = f.do(t, http.MethodPost, "/api/tasks/1/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.TaskCompleted, decode[model.TaskView](t, w).Status)

	w = f.do(t, http.MethodDelete, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": "No owner", "category": "hr", "due_date": "2026-03-12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, errorBody(t, w))

	w = f.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Bad date", "category": "hr", "due_date": "12/03/2026",
		"assigned_to": "Jane", "department": "HR",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "due_date")

	w = f.do(t, http.MethodGet, "/api/tasks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasksQuery(t *testing.T) {
	f := newFixture(t)
	for i, cat := range []string{"hr", "finance", "hr"} {
		w := f.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"title": "Task", "category": cat, "due_date": now.AddDate(0, 0, i+1).Format(time.DateOnly),
			"assigned_to": "Jane", "department": "Ops",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/tasks?category=hr&sort_by=due_date&order=desc&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[struct {
		Items      []model.TaskView `json:"items"`
		Total      int              `json:"total"`
		TotalPages int              `json:"total_pages"`
	}](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(3), page.Items[0].ID)

	w = f.do(t, http.MethodGet, "/api/tasks?colour=red", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks?page_size=501", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks?page=4294967297&page_size=500", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[struct {
		Items []model.TaskView `json:"items"`
	}](t, w).Items)
}

func TestDeadlineRemind(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/deadlines", map[string]any{
		"title": "Road works tender", "type": "Tender", "due_date": "2026-03-12",
		"assigned_to": "Procurement desk", "department": "Procurement",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/deadlines/1/remind", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.Dispatch](t, w)
	assert.Equal(t, "ops@example.com", res.Recipient)
	require.Len(t, f.transport.Messages(), 1)

	w = f.do(t, http.MethodGet, "/api/deadlines/1", nil)
	assert.True(t, decode[model.DeadlineView](t, w).ReminderSent)

	f.transport.FailFor("lead@example.com")
	w = f.do(t, http.MethodPost, "/api/deadlines/1/remind", map[string]string{"recipient": "lead@example.com"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = f.do(t, http.MethodPost, "/api/deadlines/1/remind", map[string]string{"recipient": "not-an-address"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/api/reminders/history?kind=deadline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]model.ReminderRecord](t, w)["records"], 1)

	w = f.do(t, http.MethodPost, "/api/reminders/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[service.ResetReport](t, w).Deadlines)
}

func TestBulkReminderThreshold(t *testing.T) {
	f := newFixture(t)
	for _, due := range []string{"2026-03-10", "2026-03-11"} {
		w := f.do(t, http.MethodPost, "/api/deadlines", map[string]any{
			"title": "Tender " + due, "type": "Tender", "due_date": due,
			"assigned_to": "Procurement desk", "department": "Procurement",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodPost, "/api/reminders/bulk", map[string]int{"threshold_days": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[service.RunReport](t, w).Dispatched, 1, "zero days takes only the deadline due today")

	w = f.do(t, http.MethodPost, "/api/reminders/bulk", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[service.RunReport](t, w).Dispatched, 1, "default window picks up tomorrow")

	w = f.do(t, http.MethodPost, "/api/reminders/bulk", map[string]int{"threshold_days": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/settings/recipients", map[string]string{"email": "OPS@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/settings/recipients", map[string]string{"email": "lead@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, decode[model.NotificationSettings](t, w).EmailRecipients)

	w = f.do(t, http.MethodDelete, "/api/settings/recipients/nobody@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, decode[model.NotificationSettings](t, w).EmailRecipients)

	w = f.do(t, http.MethodPatch, "/api/settings", map[string]any{"reminder_days": []int{0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/api/settings", map[string]any{"digest_time": "18:30"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "18:30", decode[model.NotificationSettings](t, w).DigestTime)

	w = f.do(t, http.MethodPatch, "/api/preferences/content_published", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[model.NotificationPreference](t, w).Enabled)

	w = f.do(t, http.MethodPatch, "/api/preferences/unknown", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]model.NotificationPreference](t, w)["preferences"], len(model.DefaultPreferences()))
}

func TestNotificationEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/notifications/events", map[string]string{"type": "new_inquiry", "title": "Quote request"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "instant", decode[map[string]string](t, w)["path"])

	w = f.do(t, http.MethodPost, "/api/notifications/events", map[string]string{"type": "inquiry_reply", "title": "Re: quote"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "digest", decode[map[string]string](t, w)["path"])

	w = f.do(t, http.MethodPost, "/api/notifications/events", map[string]string{"type": "bogus", "title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.transport.Reset()
	w = f.do(t, http.MethodPost, "/api/notifications/digest", map[string]string{"frequency": "daily"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[service.DigestReport](t, w).Events)
	assert.Len(t, f.transport.Messages(), 1)
}

func TestProbesAndTrace(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName(), "trace-123")
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-123", w.Header().Get(trace.HeaderName()))

	w = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName()))

	down := NewRouter(Handlers{
		Tasks: &handler.TaskHandler{}, Deadlines: &handler.DeadlineHandler{}, Reminders: &handler.ReminderHandler{},
		Settings: &handler.SettingsHandler{}, Notifications: &handler.NotificationHandler{},
	}, downStore{}, zap.NewNop())
	w = httptest.NewRecorder()
	down.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
