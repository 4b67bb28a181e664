// Package config assembles the typed process configuration from the
// layered YAML files in config/ and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"admincore/internal/model"
	"admincore/pkg/circuitbreaker"
	pkgconfig "admincore/pkg/config"
	"admincore/pkg/logger"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type SchedulerConfig struct {
	// Interval between reminder scans.
	Interval time.Duration `yaml:"interval"`
	// RemindTasks includes tasks, not only deadlines, in scans.
	RemindTasks bool `yaml:"remind_tasks"`
	// Timezone the calendar is evaluated in.
	Timezone string `yaml:"timezone"`
	// LockTTL bounds the cross-process run lock when Redis is enabled.
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type MailConfig struct {
	From string `yaml:"from"`
}

type Config struct {
	Env            string                     `yaml:"-"`
	Server         pkgconfig.ServerConfig     `yaml:"server"`
	Logger         logger.Config              `yaml:"logger"`
	Storage        StorageConfig              `yaml:"storage"`
	DB             pkgconfig.DBConfig         `yaml:"db"`
	Redis          pkgconfig.RedisConfig      `yaml:"redis"`
	MQ             pkgconfig.MQConfig         `yaml:"mq"`
	Mail           MailConfig                 `yaml:"mail"`
	Scheduler      SchedulerConfig            `yaml:"scheduler"`
	CircuitBreaker circuitbreaker.Config      `yaml:"circuit_breaker"`
	Notifications  model.NotificationSettings `yaml:"notifications"`
}

// Default is the configuration used for keys the files leave out.
func Default() Config {
	return Config{
		Server:  pkgconfig.ServerConfig{Port: ":8080"},
		Logger:  logger.Config{Level: "info"},
		Storage: StorageConfig{Driver: DriverMemory, SQLitePath: "data/admincore.db"},
		Redis:   pkgconfig.RedisConfig{Namespace: "admincore"},
		Mail:    MailConfig{From: "noreply@admincore.local"},
		Scheduler: SchedulerConfig{
			Interval: time.Hour,
			Timezone: "UTC",
			LockTTL:  5 * time.Minute,
		},
		CircuitBreaker: circuitbreaker.DefaultConfig(),
		Notifications:  model.DefaultSettings(),
	}
}

// Load reads config/base.yaml overlaid by config/<env>.yaml, applies the
// environment overrides and validates the result.
func Load(env, dir string) (*Config, error) {
	merged, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := pkgconfig.Decode(merged, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.Storage.SQLitePath = path
	}

	cfg.Notifications.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver %q: must be memory, sqlite or postgres", c.Storage.Driver)
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler.interval %s: must be at least 1s", c.Scheduler.Interval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Mail.From != "" {
		if err := model.ValidateEmail(c.Mail.From); err != nil {
			return fmt.Errorf("mail.from: %w", err)
		}
	}
	if err := c.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

func (c *Config) MQEnabled() bool { return c.MQ.URL != "" }
