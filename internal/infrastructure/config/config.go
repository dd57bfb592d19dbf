package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	Backend      BackendConfig
	Session      SessionConfig
	Cache        CacheConfig
	Redis        RedisConfig
	Queue        QueueConfig
	Scheduler    SchedulerConfig
	HTTP         HTTPConfig
	Connectivity ConnectivityConfig
	Store        StoreConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// BackendConfig holds backend SDK boundary settings
type BackendConfig struct {
	BaseURL        string
	HealthPath     string
	RequestTimeout time.Duration
}

// SessionConfig holds session validation settings
type SessionConfig struct {
	ValidateTimeout time.Duration // bound on a single identity check
	ReadyCeiling    time.Duration // hard ceiling before degraded fallback
	RefreshWindow   time.Duration // refresh when token expires within this
	EntryPath       string        // unauthenticated entry page
	// RetryOnRouteMissing controls whether a 404 on the identity route
	// triggers a remount-and-retry before escalating to an auth failure.
	RetryOnRouteMissing bool
}

// CacheConfig holds user-scoped cache settings
type CacheConfig struct {
	Backend         string // memory or redis
	DefaultTTL      time.Duration
	JanitorInterval time.Duration
}

// RedisConfig holds Redis connection settings for the redis cache backend
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds offline action queue settings
type QueueConfig struct {
	MaxAttempts    int
	PruneBatchSize int
}

// SchedulerConfig holds sync scheduler settings
type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration // safety-net cycle interval
	SettleDelay time.Duration // delay after an online transition
	BatchSize   int           // UI notification batch size
	BatchDelay  time.Duration // pause between notification batches
}

// HTTPConfig holds the local UI-facing API server settings
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConnectivityConfig holds health probe settings
type ConnectivityConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// StoreConfig holds the durable local store settings
type StoreConfig struct {
	Path string // sqlite file, or :memory:
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_BACKEND_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.wavechat")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Backend: BackendConfig{
			BaseURL:        v.GetString("backend.base_url"),
			HealthPath:     v.GetString("backend.health_path"),
			RequestTimeout: v.GetDuration("backend.request_timeout"),
		},
		Session: SessionConfig{
			ValidateTimeout:     v.GetDuration("session.validate_timeout"),
			ReadyCeiling:        v.GetDuration("session.ready_ceiling"),
			RefreshWindow:       v.GetDuration("session.refresh_window"),
			EntryPath:           v.GetString("session.entry_path"),
			RetryOnRouteMissing: v.GetBool("session.retry_on_route_missing"),
		},
		Cache: CacheConfig{
			Backend:         v.GetString("cache.backend"),
			DefaultTTL:      v.GetDuration("cache.default_ttl"),
			JanitorInterval: v.GetDuration("cache.janitor_interval"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Queue: QueueConfig{
			MaxAttempts:    v.GetInt("queue.max_attempts"),
			PruneBatchSize: v.GetInt("queue.prune_batch_size"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("scheduler.enabled"),
			Interval:    v.GetDuration("scheduler.interval"),
			SettleDelay: v.GetDuration("scheduler.settle_delay"),
			BatchSize:   v.GetInt("scheduler.batch_size"),
			BatchDelay:  v.GetDuration("scheduler.batch_delay"),
		},
		HTTP: HTTPConfig{
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: v.GetDuration("connectivity.probe_interval"),
			ProbeTimeout:  v.GetDuration("connectivity.probe_timeout"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wavechat-sync")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.health_path", "/health")
	v.SetDefault("backend.request_timeout", 8*time.Second)

	v.SetDefault("session.validate_timeout", 8*time.Second)
	v.SetDefault("session.ready_ceiling", 10*time.Second)
	v.SetDefault("session.refresh_window", 10*time.Minute)
	v.SetDefault("session.entry_path", "/login")
	v.SetDefault("session.retry_on_route_missing", true)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.janitor_interval", time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.prune_batch_size", 100)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("scheduler.settle_delay", 2*time.Second)
	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.batch_delay", 25*time.Millisecond)

	v.SetDefault("http.addr", "127.0.0.1:7745")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)

	v.SetDefault("connectivity.probe_interval", 30*time.Second)
	v.SetDefault("connectivity.probe_timeout", 5*time.Second)

	v.SetDefault("store.path", "wavechat.db")
}

// Validate checks the configuration for obvious misconfiguration
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid backend.base_url %q: %w", c.Backend.BaseURL, err)
	}
	if !strings.HasPrefix(c.Backend.HealthPath, "/") {
		return fmt.Errorf("backend.health_path must start with /")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}
	if c.Connectivity.ProbeTimeout >= c.Connectivity.ProbeInterval {
		return fmt.Errorf("connectivity.probe_timeout must be shorter than probe_interval")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	return nil
}

// IsProduction reports whether the client runs with the production profile
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// RedisAddr returns the host:port address for the redis cache backend
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
