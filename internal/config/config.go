package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "DEVSCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	redisPasswordEnv  = "REDIS_PASSWORD"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	metricsAddrEnv    = "METRICS_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Queue         QueueConfig        `yaml:"queue"`
	Crawler       CrawlerConfig      `yaml:"crawler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Sources       []SourceConfig     `yaml:"sources"`
	Areas         []AreaConfig       `yaml:"areas"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory repositories.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig locates the job store. An empty address keeps jobs in memory.
type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	JobTTL    time.Duration `yaml:"jobTtl"`
}

// SchedulerConfig defines when the daily crawl should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// QueueConfig tunes the crawl worker pool.
type QueueConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	JobTimeout    time.Duration `yaml:"jobTimeout"`
	MaxAttempts   int           `yaml:"maxAttempts"`
	BackoffBase   time.Duration `yaml:"backoffBase"`
	KeepCompleted int           `yaml:"keepCompleted"`
	KeepFailed    int           `yaml:"keepFailed"`
}

// CrawlerConfig bounds source fetches.
type CrawlerConfig struct {
	SourceTimeout  time.Duration `yaml:"sourceTimeout"`
	LookbackMonths int           `yaml:"lookbackMonths"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig sets the Prometheus listen address; empty disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// SourceConfig describes one article source.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Path    string            `yaml:"path"`
	Options map[string]string `yaml:"options"`
}

// AreaConfig seeds an area and opts it into the daily crawl.
type AreaConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	District    string   `yaml:"district"`
	Latitude    float64  `yaml:"latitude"`
	Longitude   float64  `yaml:"longitude"`
	PostalCodes []string `yaml:"postalCodes"`
}

// Load reads .env, the YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Address = v
	}

	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.Redis.Password = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Address = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Redis.Address != "" {
		base.Redis.Address = override.Redis.Address
		base.Redis.Password = override.Redis.Password
		base.Redis.DB = override.Redis.DB
	}
	if override.Redis.KeyPrefix != "" {
		base.Redis.KeyPrefix = override.Redis.KeyPrefix
	}
	if override.Redis.JobTTL > 0 {
		base.Redis.JobTTL = override.Redis.JobTTL
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Queue.Concurrency > 0 {
		base.Queue.Concurrency = override.Queue.Concurrency
	}
	if override.Queue.JobTimeout > 0 {
		base.Queue.JobTimeout = override.Queue.JobTimeout
	}
	if override.Queue.MaxAttempts > 0 {
		base.Queue.MaxAttempts = override.Queue.MaxAttempts
	}
	if override.Queue.BackoffBase > 0 {
		base.Queue.BackoffBase = override.Queue.BackoffBase
	}
	if override.Queue.KeepCompleted > 0 {
		base.Queue.KeepCompleted = override.Queue.KeepCompleted
	}
	if override.Queue.KeepFailed > 0 {
		base.Queue.KeepFailed = override.Queue.KeepFailed
	}

	if override.Crawler.SourceTimeout > 0 {
		base.Crawler.SourceTimeout = override.Crawler.SourceTimeout
	}
	if override.Crawler.LookbackMonths > 0 {
		base.Crawler.LookbackMonths = override.Crawler.LookbackMonths
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Metrics.Address != "" {
		base.Metrics.Address = override.Metrics.Address
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if len(override.Areas) > 0 {
		base.Areas = override.Areas
	}

	return base
}

// Default returns the built-in configuration without reading files or environment.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Redis:     RedisConfig{KeyPrefix: "devscanner", JobTTL: 7 * 24 * time.Hour},
		Scheduler: SchedulerConfig{CronExpression: "0 2 * * *", Timezone: defaultTimezone, location: tz},
		Queue: QueueConfig{
			Concurrency:   3,
			JobTimeout:    60 * time.Second,
			MaxAttempts:   3,
			BackoffBase:   2 * time.Second,
			KeepCompleted: 10,
			KeepFailed:    5,
		},
		Crawler: CrawlerConfig{SourceTimeout: 20 * time.Second, LookbackMonths: 12},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
