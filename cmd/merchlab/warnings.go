package main

import (
	"log"

	"github.com/TatisVivas/zakekeSample/internal/config"
)

// logConfigWarnings flags valid but risky configurations at startup.
// P0 means orders can be silently left unregistered; P1 means reduced visibility.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("merchlab: WARNING [P0]: RECONCILE_ENABLED=false; orders whose registration event is lost (full buffer, crash) stay pending forever")
	}
	if !cfg.MetricsEnabled {
		log.Println("merchlab: WARNING [P1]: METRICS_ENABLED=false; vendor failures and registration backlog are only visible in logs")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("merchlab: WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0; a vendor outage is retried at full rate")
	}
	if !cfg.UsesPostgres() {
		log.Println("merchlab: INFO: DATABASE_DRIVER=sqlite; leader election is unavailable, run a single instance")
	}
	if cfg.RedisAddr != "" && !cfg.TokenCacheEnabled {
		log.Println("merchlab: INFO: REDIS_ADDR set with TOKEN_CACHE_ENABLED=false; every vendor call requests a new token")
	}
}
