package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"admincore/internal/handler"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Tasks         *handler.TaskHandler
	Deadlines     *handler.DeadlineHandler
	Reminders     *handler.ReminderHandler
	Settings      *handler.SettingsHandler
	Notifications *handler.NotificationHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, store Pinger, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), MetricsMiddleware(), AccessLogMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		tasks := api.Group("/tasks")
		tasks.GET("", h.Tasks.List)
		tasks.POST("", h.Tasks.Create)
		tasks.GET("/:id", h.Tasks.Get)
		tasks.PATCH("/:id", h.Tasks.Update)
		tasks.DELETE("/:id", h.Tasks.Delete)
		tasks.POST("/:id/toggle", h.Tasks.Toggle)
		tasks.POST("/:id/complete", h.Tasks.Complete)

		deadlines := api.Group("/deadlines")
		deadlines.GET("", h.Deadlines.List)
		deadlines.POST("", h.Deadlines.Create)
		deadlines.GET("/:id", h.Deadlines.Get)
		deadlines.PATCH("/:id", h.Deadlines.Update)
		deadlines.DELETE("/:id", h.Deadlines.Delete)
		deadlines.POST("/:id/toggle", h.Deadlines.Toggle)
		deadlines.POST("/:id/complete", h.Deadlines.Complete)
		deadlines.POST("/:id/remind", h.Deadlines.Remind)

		reminders := api.Group("/reminders")
		reminders.POST("/bulk", h.Reminders.Bulk)
		reminders.POST("/reset", h.Reminders.Reset)
		reminders.POST("/run", h.Reminders.Run)
		reminders.GET("/history", h.Reminders.History)

		api.GET("/settings", h.Settings.Get)
		api.PATCH("/settings", h.Settings.Update)
		api.POST("/settings/recipients", h.Settings.AddRecipient)
		api.DELETE("/settings/recipients/:email", h.Settings.RemoveRecipient)
		api.GET("/preferences", h.Settings.ListPreferences)
		api.PATCH("/preferences/:id", h.Settings.UpdatePreference)

		api.POST("/notifications/events", h.Notifications.Ingest)
		api.POST("/notifications/digest", h.Notifications.RunDigest)
	}

	return &Router{Engine: r}
}

// Server wraps the router in an http.Server so it can be shut down
// gracefully.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
