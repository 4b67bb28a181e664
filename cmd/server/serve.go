package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"admincore/internal/handler"
	"admincore/internal/httpserver"
	"admincore/internal/model"
	"admincore/internal/scheduler"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting admincore...",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.RedisEnabled()),
		zap.Bool("mq", cfg.MQEnabled()),
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(httpserver.Handlers{
		Tasks:         handler.NewTaskHandler(a.tasks, log),
		Deadlines:     handler.NewDeadlineHandler(a.deadlines, a.scheduler, log),
		Reminders:     handler.NewReminderHandler(a.scheduler, log),
		Settings:      handler.NewSettingsHandler(a.registry, log),
		Notifications: handler.NewNotificationHandler(a.dispatcher, log),
	}, a, log)
	srv := router.Server(cfg.Server.Port)

	consumer, err := a.eventConsumer()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	loc, _ := cfg.Location()
	runner := scheduler.NewRunner(a.scheduler, a.dispatcher, scheduler.Config{
		Interval: cfg.Scheduler.Interval,
		Location: loc,
	}, log)
	a.registry.OnChange(func(s model.NotificationSettings) {
		if err := runner.Apply(s); err != nil {
			log.Error("Failed to apply notification settings to scheduler", zap.Error(err))
		}
	})
	settings, err := a.registry.Settings(gctx)
	if err != nil {
		return err
	}
	if err := runner.Start(gctx, settings); err != nil {
		return err
	}
	defer runner.Stop()

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server...")
		return srv.Shutdown(shutdownCtx)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.StartConsuming(gctx)
		})
	}

	err = g.Wait()
	log.Info("admincore stopped")
	return err
}
