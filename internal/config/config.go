package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// Config holds all application settings
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	CAT       entity.CATConfig `mapstructure:"cat"`
	Sessions  SessionsConfig   `mapstructure:"sessions"`
	Events    EventsConfig     `mapstructure:"events"`
	Log       LogConfig        `mapstructure:"log"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int      `mapstructure:"write_timeout"` // seconds
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig holds PostgreSQL settings. When disabled, calibrations and
// results live in memory only.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis settings. Supported modes: single, sentinel, cluster.
// When disabled, exposure counters are process-local.
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Mode string `mapstructure:"mode"`

	// Addrs is used by every mode; Addr is the single-node shorthand
	Addrs []string `mapstructure:"addrs"`
	Addr  string   `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName is required in sentinel mode
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // ms
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // ms
}

// SessionsConfig controls the retention of finished sessions in memory
type SessionsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// EventsConfig configures the lifecycle event bus
type EventsConfig struct {
	QueueSize int    `mapstructure:"queue_size"`
	Topic     string `mapstructure:"topic"`
	NATSURL   string `mapstructure:"nats_url"` // empty disables forwarding
}

// LogConfig configures the logger
type LogConfig struct {
	Mode     string `mapstructure:"mode"`
	FilePath string `mapstructure:"file_path"`
}

// RateLimitConfig configures the per-client request limiter
type RateLimitConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxRequests int  `mapstructure:"max_requests"`
	WindowSec   int  `mapstructure:"window_sec"`
}

// PostgresConnectionString builds the PostgreSQL DSN
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL builds the URL form used by golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func setDefaults(vip *viper.Viper) {
	def := entity.DefaultCATConfig()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.allow_origins", []string{"*"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("cat.model", string(def.Model))
	vip.SetDefault("cat.estimation", string(def.Estimation))
	vip.SetDefault("cat.selection", string(def.Selection))
	vip.SetDefault("cat.exposure", string(def.Exposure))
	vip.SetDefault("cat.starting_ability", def.StartingAbility)
	vip.SetDefault("cat.stopping.min_questions", def.Stopping.MinQuestions)
	vip.SetDefault("cat.stopping.max_questions", def.Stopping.MaxQuestions)
	vip.SetDefault("cat.stopping.max_sem", def.Stopping.MaxSEM)
	vip.SetDefault("cat.stopping.min_reliability", def.Stopping.MinReliability)
	vip.SetDefault("cat.stopping.time_limit", "0s")
	vip.SetDefault("cat.max_exposure_rate", def.MaxExposureRate)
	vip.SetDefault("cat.randomesque_size", def.RandomesqueSize)
	vip.SetDefault("cat.exposure_min_sessions", def.ExposureMinSessions)

	vip.SetDefault("sessions.retention", "1h")
	vip.SetDefault("sessions.purge_interval", "5m")

	vip.SetDefault("events.queue_size", 1024)
	vip.SetDefault("events.topic", "cat.events")

	vip.SetDefault("log.mode", "development")

	vip.SetDefault("rate_limit.max_requests", 120)
	vip.SetDefault("rate_limit.window_sec", 60)
}

func bindEnv(vip *viper.Viper) {
	bindings := map[string]string{
		"server.port": "SERVER_PORT",

		"database.enabled":  "DATABASE_ENABLED",
		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.dbname":   "DATABASE_DBNAME",
		"database.sslmode":  "DATABASE_SSLMODE",

		"redis.enabled":     "REDIS_ENABLED",
		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"cat.model":                    "CAT_MODEL",
		"cat.estimation":               "CAT_ESTIMATION",
		"cat.selection":                "CAT_SELECTION",
		"cat.exposure":                 "CAT_EXPOSURE",
		"cat.stopping.min_questions":   "CAT_MIN_QUESTIONS",
		"cat.stopping.max_questions":   "CAT_MAX_QUESTIONS",
		"cat.stopping.max_sem":         "CAT_MAX_SEM",
		"cat.stopping.min_reliability": "CAT_MIN_RELIABILITY",
		"cat.stopping.time_limit":      "CAT_TIME_LIMIT",

		"events.nats_url": "NATS_URL",

		"log.mode":      "LOG_MODE",
		"log.file_path": "LOG_FILE_PATH",

		"rate_limit.enabled": "RATE_LIMIT_ENABLED",
	}
	for key, env := range bindings {
		_ = vip.BindEnv(key, env)
	}
}

// Load reads the configuration from an optional YAML file and the environment
func Load(configPath string) (*Config, error) {
	vip := viper.New()
	setDefaults(vip)
	bindEnv(vip)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.Database.Enabled && (c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "") {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER)")
	}
	if c.Redis.Enabled && len(c.Redis.Addrs) == 0 && c.Redis.Addr == "" {
		return fmt.Errorf("redis is enabled but no address is set (check REDIS_ADDR or REDIS_ADDRS)")
	}
	c.CAT = c.CAT.WithDefaults()
	if err := c.CAT.Validate(); err != nil {
		return fmt.Errorf("invalid cat configuration: %w", err)
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests <= 0 || c.RateLimit.WindowSec <= 0) {
		return fmt.Errorf("rate limit requires positive max_requests and window_sec")
	}
	return nil
}
