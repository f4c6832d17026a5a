package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the merchlab binaries.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL    string `json:"database_url"`
	DatabaseDriver string `json:"database_driver"`
	RedisAddr      string `json:"redis_addr,omitempty"`
	HTTPAddr       string `json:"http_addr"`

	// PublicBaseURL prefixes relative catalog thumbnails. Empty means the
	// request's own scheme and host are used.
	PublicBaseURL string `json:"public_base_url,omitempty"`
	CookieSecure  bool   `json:"cookie_secure"`

	ZakekeClientID     string        `json:"zakeke_client_id"`
	ZakekeClientSecret string        `json:"zakeke_client_secret"`
	ZakekeTokenURL     string        `json:"zakeke_token_url"`
	ZakekeAPIURL       string        `json:"zakeke_api_url"`
	ZakekeSellerID     string        `json:"zakeke_seller_id"`
	ZakekeTimeout      time.Duration `json:"-"`
	ZakekeTimeoutStr   string        `json:"zakeke_timeout"`

	DesignPollMaxAttempts int           `json:"design_poll_max_attempts"`
	DesignPollDelay       time.Duration `json:"-"`
	DesignPollDelayStr    string        `json:"design_poll_delay"`

	TokenCacheEnabled bool `json:"token_cache_enabled"`

	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	DefaultCurrency string `json:"default_currency"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout      time.Duration `json:"-"`
	HTTPShutdownTimeoutStr   string        `json:"http_shutdown_timeout"`
	RegistrarDrainTimeout    time.Duration `json:"-"`
	RegistrarDrainTimeoutStr string        `json:"registrar_drain_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	ReconcileEnabled  bool   `json:"reconcile_enabled"`
	ReconcileSchedule string `json:"reconcile_schedule"`

	// ReconcileThreshold must exceed RegistrarBudget(ZakekeTimeout), 22m30s at the 30s default.
	ReconcileThreshold    time.Duration `json:"-"`
	ReconcileThresholdStr string        `json:"reconcile_threshold"`

	ReconcileBatchSize int `json:"reconcile_batch_size"`
	EventBusBufferSize int `json:"eventbus_buffer_size"`
	RegistrarWorkers   int `json:"registrar_workers"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DatabaseDriver:     envOr("DATABASE_DRIVER", "postgres"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		CookieSecure:       os.Getenv("SESSION_COOKIE_SECURE") == "true",
		ZakekeClientID:     os.Getenv("ZAKEKE_CLIENT_ID"),
		ZakekeClientSecret: os.Getenv("ZAKEKE_CLIENT_SECRET"),
		ZakekeTokenURL:     envOr("ZAKEKE_TOKEN_URL", "https://api.zakeke.com/token"),
		ZakekeAPIURL:       envOr("ZAKEKE_API_URL", "https://api.zakeke.com"),
		ZakekeSellerID:     envOr("ZAKEKE_SELLER_ID", "288274"),
		TokenCacheEnabled:  os.Getenv("TOKEN_CACHE_ENABLED") == "true",
		DefaultCurrency:    strings.ToUpper(envOr("DEFAULT_CURRENCY", "COP")),
		MetricsEnabled:     os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:        envOr("METRICS_PATH", "/metrics"),
		MetricsPort:        envOr("METRICS_PORT", "9090"),
		ReconcileEnabled:   os.Getenv("RECONCILE_ENABLED") == "true",
		ReconcileSchedule:  envOr("RECONCILE_SCHEDULE", "@every 5m"),

		ZakekeTimeoutStr:           envOr("ZAKEKE_TIMEOUT", "30s"),
		DesignPollDelayStr:         envOr("DESIGN_POLL_DELAY", "3s"),
		AnalyticsRetentionStr:      envOr("ANALYTICS_RETENTION", "720h"),
		DBOpTimeoutStr:             envOr("DB_OP_TIMEOUT", "5s"),
		DBConnMaxLifetimeStr:       envOr("DB_CONN_MAX_LIFETIME", "30m"),
		DBConnMaxIdleTimeStr:       envOr("DB_CONN_MAX_IDLE_TIME", "5m"),
		HTTPShutdownTimeoutStr:     envOr("HTTP_SHUTDOWN_TIMEOUT", "10s"),
		RegistrarDrainTimeoutStr:   envOr("REGISTRAR_DRAIN_TIMEOUT", "30s"),
		ReconcileThresholdStr:      envOr("RECONCILE_THRESHOLD", "30m"),
		CircuitBreakerCooldownStr:  envOr("CIRCUIT_BREAKER_COOLDOWN", "2m"),
		LeaderRetryIntervalStr:     envOr("LEADER_RETRY_INTERVAL", "5s"),
		LeaderHeartbeatIntervalStr: envOr("LEADER_HEARTBEAT_INTERVAL", "2s"),
	}

	cfg.DesignPollMaxAttempts = positiveInt("DESIGN_POLL_MAX_ATTEMPTS", 5)
	cfg.ReconcileBatchSize = positiveInt("RECONCILE_BATCH_SIZE", 100)
	cfg.EventBusBufferSize = positiveInt("EVENTBUS_BUFFER_SIZE", 100)
	cfg.RegistrarWorkers = positiveInt("REGISTRAR_WORKERS", 1)
	cfg.DBMaxOpenConns = positiveInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = positiveInt("DB_MAX_IDLE_CONNS", 5)
	cfg.LeaderLockKey = int64(positiveInt("LEADER_LOCK_KEY", 728380))

	// Zero is meaningful here: it disables the breaker.
	cfg.CircuitBreakerThreshold = 5
	if s := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", s)
		}
	}

	// Support the platform's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}

	// Parse durations; validation is handled separately by Validate().
	cfg.ZakekeTimeout = parseDuration(cfg.ZakekeTimeoutStr)
	cfg.DesignPollDelay = parseDuration(cfg.DesignPollDelayStr)
	cfg.AnalyticsRetention = parseDuration(cfg.AnalyticsRetentionStr)
	cfg.DBOpTimeout = parseDuration(cfg.DBOpTimeoutStr)
	cfg.DBConnMaxLifetime = parseDuration(cfg.DBConnMaxLifetimeStr)
	cfg.DBConnMaxIdleTime = parseDuration(cfg.DBConnMaxIdleTimeStr)
	cfg.HTTPShutdownTimeout = parseDuration(cfg.HTTPShutdownTimeoutStr)
	cfg.RegistrarDrainTimeout = parseDuration(cfg.RegistrarDrainTimeoutStr)
	cfg.ReconcileThreshold = parseDuration(cfg.ReconcileThresholdStr)
	cfg.CircuitBreakerCooldown = parseDuration(cfg.CircuitBreakerCooldownStr)
	cfg.LeaderRetryInterval = parseDuration(cfg.LeaderRetryIntervalStr)
	cfg.LeaderHeartbeatInterval = parseDuration(cfg.LeaderHeartbeatIntervalStr)

	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// positiveInt reads key as a positive integer, logging and falling back to
// def when the value is malformed.
func positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s %q (must be a positive integer), using default %d", key, s, def)
		return def
	}
	return n
}

// parseDuration returns 0 for malformed input; Validate reports it.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// UsesPostgres reports whether the configured driver supports advisory
// locks and the other Postgres-only features.
func (c Config) UsesPostgres() bool {
	return c.DatabaseDriver == "postgres"
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.ZakekeClientID = maskSecret(c.ZakekeClientID)
	masked.ZakekeClientSecret = maskSecret(c.ZakekeClientSecret)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://", "file:"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
