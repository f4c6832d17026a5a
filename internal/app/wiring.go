// Package app wires the vendor pipeline shared by the merchlab server and
// the standalone worker.
package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/TatisVivas/zakekeSample/internal/circuitbreaker"
	"github.com/TatisVivas/zakekeSample/internal/config"
	"github.com/TatisVivas/zakekeSample/internal/cron"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/leaderelection"
	"github.com/TatisVivas/zakekeSample/internal/metrics"
	"github.com/TatisVivas/zakekeSample/internal/reconciler"
	"github.com/TatisVivas/zakekeSample/internal/registrar"
	"github.com/TatisVivas/zakekeSample/internal/vendor"
)

// Vendor groups the Zakeke collaborators built from one config.
type Vendor struct {
	Tokens vendor.TokenSource
	Client *vendor.Client
	Poller *vendor.Poller
}

// StartMetrics registers the Prometheus sink and serves it on
// METRICS_PORT. Both results are nil when metrics are disabled.
func StartMetrics(cfg config.Config, component string) (*metrics.PrometheusSink, *http.Server) {
	if !cfg.MetricsEnabled {
		log.Printf("%s: METRICS_ENABLED not set; metrics disabled", component)
		return nil, nil
	}

	sink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	srv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: mux,
	}
	go func() {
		log.Printf("%s: metrics server listening on :%s%s", component, cfg.MetricsPort, cfg.MetricsPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("%s: metrics server error: %v", component, err)
		}
	}()
	return sink, srv
}

// BuildVendor wires the Zakeke transport, client, optional token cache and
// design poller. A nil redisClient or sink disables the matching feature.
func BuildVendor(cfg config.Config, redisClient *redis.Client, sink *metrics.PrometheusSink, component string) Vendor {
	transport := vendor.NewHTTPTransport(cfg.ZakekeTimeout)
	if cfg.CircuitBreakerThreshold > 0 {
		transport = transport.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("%s: vendor circuit breaker enabled (threshold=%d, cooldown=%s)",
			component, cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}
	if sink != nil {
		transport = transport.WithMetrics(sink)
	}

	client := vendor.NewClient(vendor.Config{
		TokenURL: cfg.ZakekeTokenURL,
		APIURL:   cfg.ZakekeAPIURL,
		SellerID: cfg.ZakekeSellerID,
		Credentials: domain.Credentials{
			ClientID:     cfg.ZakekeClientID,
			ClientSecret: cfg.ZakekeClientSecret,
		},
	}, transport)
	if sink != nil {
		client = client.WithMetrics(sink)
	}

	var tokens vendor.TokenSource = client
	if cfg.TokenCacheEnabled && redisClient != nil {
		cache := vendor.NewCachedTokenSource(client, redisClient)
		if sink != nil {
			cache = cache.WithMetrics(sink)
		}
		tokens = cache
		log.Printf("%s: token cache enabled (redis=%s)", component, cfg.RedisAddr)
	}

	poller := vendor.NewPoller(client, vendor.PollerConfig{
		MaxAttempts: cfg.DesignPollMaxAttempts,
		Delay:       cfg.DesignPollDelay,
	}).WithObserver(func(q domain.DesignQuery, st domain.DesignStatus) {
		switch st.State {
		case domain.DesignStateFailed:
			log.Printf("%s: design=%s attempt=%d failed: status=%d reason=%s", component, q.DesignID, st.Attempt, st.StatusCode, st.Reason)
		case domain.DesignStateReady:
			log.Printf("%s: design=%s ready after %d attempt(s)", component, q.DesignID, st.Attempt)
		}
	})
	if sink != nil {
		poller = poller.WithMetrics(sink)
	}

	return Vendor{Tokens: tokens, Client: client, Poller: poller}
}

// BuildRegistrar sizes the claim lease from ZAKEKE_TIMEOUT so a replay never
// takes over an order whose first registrar is still within its budget.
func BuildRegistrar(cfg config.Config, store registrar.Store, v Vendor, sink *metrics.PrometheusSink) *registrar.Registrar {
	reg := registrar.New(store, v.Tokens, v.Client).
		WithCallTimeout(cfg.ZakekeTimeout).
		WithDrainTimeout(cfg.RegistrarDrainTimeout)
	if sink != nil {
		reg = reg.WithMetrics(sink)
	}
	return reg
}

func BuildReconciler(cfg config.Config, store reconciler.Store, bus reconciler.EventEmitter, sink *metrics.PrometheusSink) (*reconciler.Reconciler, error) {
	sched, err := cron.Parse(cfg.ReconcileSchedule, "")
	if err != nil {
		return nil, err
	}
	recon := reconciler.New(reconciler.Config{
		Schedule:  sched,
		Threshold: cfg.ReconcileThreshold,
		BatchSize: cfg.ReconcileBatchSize,
	}, store, bus)
	if sink != nil {
		recon = recon.WithMetrics(sink)
	}
	return recon, nil
}

// RunReconciler runs recon until ctx is cancelled. On Postgres only the
// instance holding the advisory lock reconciles; SQLite is single-instance.
func RunReconciler(ctx context.Context, cfg config.Config, db *sql.DB, recon *reconciler.Reconciler, sink *metrics.PrometheusSink) {
	if !cfg.UsesPostgres() {
		recon.Run(ctx)
		return
	}

	duty := &leaderDuty{run: recon.Run}
	elector := leaderelection.New(db, cfg.LeaderLockKey, cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval,
		duty.start, duty.stop)
	if sink != nil {
		elector = elector.WithMetrics(sink)
	}
	elector.Run(ctx)
}

// leaderDuty runs a leader-only task and lets the demotion callback block
// until the task has returned.
type leaderDuty struct {
	run func(ctx context.Context)

	mu   sync.Mutex
	done chan struct{}
}

func (d *leaderDuty) start(ctx context.Context) {
	done := make(chan struct{})
	d.mu.Lock()
	d.done = done
	d.mu.Unlock()

	defer close(done)
	d.run(ctx)
}

func (d *leaderDuty) stop() {
	d.mu.Lock()
	done := d.done
	d.done = nil
	d.mu.Unlock()

	if done != nil {
		<-done
	}
}
