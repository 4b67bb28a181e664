package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admincore/internal/config"
	"admincore/internal/mqhandler"
	"admincore/internal/notify"
	"admincore/internal/repository"
	"admincore/internal/service"
	"admincore/pkg/circuitbreaker"
	"admincore/pkg/db"
	"admincore/pkg/logger"
	"admincore/pkg/mq"
	"admincore/pkg/redis"
	"admincore/pkg/util"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time

	store     repository.Store
	rdb       *goredis.Client
	publisher *mq.Publisher

	registry   *service.PreferenceRegistry
	tasks      *service.TaskService
	deadlines  *service.DeadlineService
	scheduler  *service.ReminderScheduler
	dispatcher *service.NotificationDispatcher

	closers []func()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFlag, configDirFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.NewLoggerWithConfig(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().In(loc) },
	}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	var ledger repository.ReminderLedger = store
	opts := service.SchedulerOptions{RemindTasks: a.cfg.Scheduler.RemindTasks}
	if a.cfg.RedisEnabled() {
		rdb, err := redis.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		a.rdb = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		ledger = repository.NewRedisReminderLedger(rdb, a.cfg.Redis.Namespace, a.logger)
		opts.Locker = redis.NewLocker(rdb, a.cfg.Redis.Namespace+":scheduler:lock", a.cfg.Scheduler.LockTTL)
		a.logger.Info("Redis enabled", zap.String("addr", a.cfg.Redis.Addr))
	}

	var transport notify.Transport = notify.NewLogTransport(a.logger)
	if a.cfg.MQEnabled() {
		pub, err := mq.NewPublisher(a.cfg.MQ.URL)
		if err != nil {
			return fmt.Errorf("connecting publisher: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
		transport = notify.NewAMQPTransport(pub, a.cfg.Mail.From, a.now, a.logger)
		a.logger.Info("Email commands published over AMQP", zap.String("routing_key", notify.RoutingKeyEmailSend))
	}
	transport = notify.NewBreakerTransport(transport, circuitbreaker.NewCircuitBreaker(a.cfg.CircuitBreaker))

	a.registry = service.NewPreferenceRegistry(store, a.cfg.Notifications, a.logger)
	if err := a.registry.Init(ctx); err != nil {
		return fmt.Errorf("seeding notification settings: %w", err)
	}
	a.tasks = service.NewTaskService(store, a.now, a.logger)
	a.deadlines = service.NewDeadlineService(store, a.now, a.logger)
	a.scheduler = service.NewReminderScheduler(store, store, ledger, a.registry, transport, opts, a.now, a.logger)
	a.dispatcher = service.NewNotificationDispatcher(a.registry, transport, a.now, a.logger)
	return nil
}

func (a *app) openStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(a.cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		return repository.NewSQLiteStore(a.cfg.Storage.SQLitePath, a.now, a.logger)
	case config.DriverPostgres:
		pool, err := db.NewConnection(ctx, a.cfg.DB, a.logger)
		if err != nil {
			return nil, err
		}
		store := repository.NewPostgresStore(pool, a.now, a.logger)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		a.logger.Warn("Using in-memory storage, data is lost on exit")
		return repository.NewMemoryStore(a.now, a.logger), nil
	}
}

// eventConsumer builds the notification event consumer, or nil when the
// broker is not configured.
func (a *app) eventConsumer() (*mq.Consumer, error) {
	if !a.cfg.MQEnabled() {
		return nil, nil
	}
	consumer, err := mq.NewConsumer(a.cfg.MQ.URL, mqhandler.RoutingKeyNotificationEvent+".q", mqhandler.RoutingKeyNotificationEvent, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, consumer.Close)

	var (
		deduper mqhandler.Deduper
		retries mqhandler.RetryCounter
	)
	if a.rdb != nil {
		deduper = util.NewDeduper(a.rdb, a.cfg.Redis.Namespace+":dedup", 24*time.Hour, a.logger)
		retries = util.NewRetryCounter(a.rdb, time.Hour)
	}
	h := mqhandler.NewNotificationEventHandler(a.dispatcher, deduper, retries, a.publisher, a.logger)
	consumer.SetHandler(h.HandleEvent)
	consumer.SetFailurePolicy(h.FailurePolicy)
	return consumer, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Ping reports readiness: the store must answer, and so must Redis and the
// broker when they are configured.
func (a *app) Ping(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.publisher != nil && !a.publisher.IsConnected() {
		return fmt.Errorf("mq: publisher connection closed")
	}
	return nil
}
