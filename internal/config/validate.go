package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/cron"
)

// RegistrarRetryWindow is the sum of the registrar's backoff schedule.
const RegistrarRetryWindow = 12*time.Minute + 30*time.Second

const (
	// RegistrarMaxAttempts is how many times the registrar posts one order.
	RegistrarMaxAttempts = 4

	// RegistrarCallsPerAttempt bounds the vendor calls in one attempt: every
	// token strategy plus the order POST.
	RegistrarCallsPerAttempt = 5
)

// RegistrarBudget is the longest a registrar can hold one order when every
// vendor call runs to callTimeout. Reconciling sooner would race it.
func RegistrarBudget(callTimeout time.Duration) time.Duration {
	return RegistrarRetryWindow + time.Duration(RegistrarMaxAttempts*RegistrarCallsPerAttempt)*callTimeout
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.DatabaseURL == "" {
		add("DATABASE_URL", "required")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		add("DATABASE_DRIVER", "must be 'postgres' or 'sqlite', got %q", cfg.DatabaseDriver)
	}

	if cfg.ZakekeClientID == "" {
		add("ZAKEKE_CLIENT_ID", "required")
	}
	if cfg.ZakekeClientSecret == "" {
		add("ZAKEKE_CLIENT_SECRET", "required")
	}
	for field, raw := range map[string]string{
		"ZAKEKE_TOKEN_URL": cfg.ZakekeTokenURL,
		"ZAKEKE_API_URL":   cfg.ZakekeAPIURL,
	} {
		if msg := checkURL(raw); msg != "" {
			add(field, "%s", msg)
		}
	}
	if cfg.PublicBaseURL != "" {
		if msg := checkURL(cfg.PublicBaseURL); msg != "" {
			add("PUBLIC_BASE_URL", "%s", msg)
		}
	}
	if cfg.ZakekeSellerID == "" {
		add("ZAKEKE_SELLER_ID", "required")
	}

	if cfg.DesignPollMaxAttempts < 1 {
		add("DESIGN_POLL_MAX_ATTEMPTS", "must be at least 1")
	}
	if len(cfg.DefaultCurrency) != 3 {
		add("DEFAULT_CURRENCY", "must be a 3-letter ISO code, got %q", cfg.DefaultCurrency)
	}

	durations := []struct {
		field string
		raw   string
	}{
		{"ZAKEKE_TIMEOUT", cfg.ZakekeTimeoutStr},
		{"DESIGN_POLL_DELAY", cfg.DesignPollDelayStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"DB_CONN_MAX_LIFETIME", cfg.DBConnMaxLifetimeStr},
		{"DB_CONN_MAX_IDLE_TIME", cfg.DBConnMaxIdleTimeStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"REGISTRAR_DRAIN_TIMEOUT", cfg.RegistrarDrainTimeoutStr},
		{"RECONCILE_THRESHOLD", cfg.ReconcileThresholdStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			add(d.field, "invalid duration: %v", err)
		} else if v <= 0 {
			add(d.field, "must be positive")
		}
	}

	if cfg.ReconcileEnabled {
		if _, err := cron.Parse(cfg.ReconcileSchedule, ""); err != nil {
			add("RECONCILE_SCHEDULE", "invalid schedule: %v", err)
		}
		callTimeout := cfg.ZakekeTimeout
		if callTimeout <= 0 {
			callTimeout, _ = time.ParseDuration(cfg.ZakekeTimeoutStr)
		}
		if budget := RegistrarBudget(max(callTimeout, 0)); cfg.ReconcileThreshold > 0 && cfg.ReconcileThreshold <= budget {
			add("RECONCILE_THRESHOLD", "must exceed the registrar budget (%s at ZAKEKE_TIMEOUT=%s)", budget, callTimeout)
		}
	}

	if cfg.TokenCacheEnabled && cfg.RedisAddr == "" {
		add("TOKEN_CACHE_ENABLED", "requires REDIS_ADDR")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must be an http(s) URL"
	}
	if u.Host == "" {
		return "missing host"
	}
	return ""
}
