package main

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/TatisVivas/zakekeSample/internal/config"
)

// captureLogOutput calls logConfigWarnings with the given config and returns
// the captured log output as a string.
func captureLogOutput(cfg *config.Config) string {
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	logConfigWarnings(cfg)
	return buf.String()
}

func healthyConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:          "postgres",
		RedisAddr:               "localhost:6379",
		TokenCacheEnabled:       true,
		ReconcileEnabled:        true,
		MetricsEnabled:          true,
		CircuitBreakerThreshold: 5,
	}
}

func TestLogConfigWarnings_Healthy(t *testing.T) {
	output := captureLogOutput(healthyConfig())

	if strings.Contains(output, "WARNING") || strings.Contains(output, "INFO") {
		t.Error("did not expect any warnings, got:", output)
	}
}

func TestLogConfigWarnings_NoReconciler(t *testing.T) {
	cfg := healthyConfig()
	cfg.ReconcileEnabled = false
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: RECONCILE_ENABLED=false") {
		t.Error("expected no-reconciler P0 warning, got:", output)
	}
	if strings.Contains(output, "[P1]") {
		t.Error("did not expect P1 warnings, got:", output)
	}
}

func TestLogConfigWarnings_MetricsDisabled(t *testing.T) {
	cfg := healthyConfig()
	cfg.MetricsEnabled = false
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: METRICS_ENABLED=false") {
		t.Error("expected metrics P1 warning, got:", output)
	}
}

func TestLogConfigWarnings_BreakerDisabled(t *testing.T) {
	cfg := healthyConfig()
	cfg.CircuitBreakerThreshold = 0
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("expected breaker P1 warning, got:", output)
	}
}

func TestLogConfigWarnings_SQLite(t *testing.T) {
	cfg := healthyConfig()
	cfg.DatabaseDriver = "sqlite"
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: DATABASE_DRIVER=sqlite") {
		t.Error("expected sqlite INFO, got:", output)
	}
	if strings.Contains(output, "WARNING") {
		t.Error("did not expect warnings, got:", output)
	}
}

func TestLogConfigWarnings_RedisWithoutTokenCache(t *testing.T) {
	cfg := healthyConfig()
	cfg.TokenCacheEnabled = false
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: REDIS_ADDR set with TOKEN_CACHE_ENABLED=false") {
		t.Error("expected token cache INFO, got:", output)
	}

	cfg.RedisAddr = ""
	if output := captureLogOutput(cfg); strings.Contains(output, "TOKEN_CACHE_ENABLED") {
		t.Error("did not expect token cache INFO without redis, got:", output)
	}
}

func TestLogConfigWarnings_AllWarnings(t *testing.T) {
	cfg := &config.Config{DatabaseDriver: "sqlite", RedisAddr: "localhost:6379"}
	output := captureLogOutput(cfg)

	expected := []string{
		"WARNING [P0]: RECONCILE_ENABLED=false",
		"WARNING [P1]: METRICS_ENABLED=false",
		"WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0",
		"INFO: DATABASE_DRIVER=sqlite",
		"INFO: REDIS_ADDR set",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}
