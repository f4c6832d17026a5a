package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/api"
	"github.com/TatisVivas/zakekeSample/internal/app"
	"github.com/TatisVivas/zakekeSample/internal/config"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/reconciler"
	"github.com/TatisVivas/zakekeSample/internal/session"
	"github.com/TatisVivas/zakekeSample/internal/store/sqlstore"
	"github.com/TatisVivas/zakekeSample/internal/transport/channel"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	// A local .env fills in variables the environment does not set.
	if err := godotenv.Load(); err == nil {
		log.Println("merchlab: loaded .env")
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "migrate":
		os.Exit(runMigrate(os.Args[2:]))
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`merchlab - customizable merchandise storefront backed by Zakeke

Usage:
  merchlab <command>

Commands:
  serve      Start the HTTP API, order registrar and reconciler
  migrate    Create the database schema (--seed also loads the demo catalog)
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables (a .env file in the working directory is also read):
  DATABASE_URL              Database connection string (required)
  DATABASE_DRIVER           "postgres" or "sqlite" (default: "postgres")
  REDIS_ADDR                Redis address for analytics and token cache (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080", or ":$PORT")
  PUBLIC_BASE_URL           Origin for absolute catalog thumbnails (optional)
  SESSION_COOKIE_SECURE     Mark the visitor cookie Secure (default: "false")
  DEFAULT_CURRENCY          Currency for new products (default: "COP")

  ZAKEKE_CLIENT_ID          Zakeke API client id (required)
  ZAKEKE_CLIENT_SECRET      Zakeke API client secret (required)
  ZAKEKE_TOKEN_URL          Token endpoint (default: "https://api.zakeke.com/token")
  ZAKEKE_API_URL            REST API base (default: "https://api.zakeke.com")
  ZAKEKE_SELLER_ID          Seller id (default: "288274")
  ZAKEKE_TIMEOUT            Per-request timeout (default: "30s")
  TOKEN_CACHE_ENABLED       Cache tokens in Redis (default: "false")

  DESIGN_POLL_MAX_ATTEMPTS  Readiness checks before giving up (default: "5")
  DESIGN_POLL_DELAY         Delay between readiness checks (default: "3s")
  ANALYTICS_RETENTION       Lifetime of analytics buckets (default: "720h")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  REGISTRAR_DRAIN_TIMEOUT   Registrar event drain timeout (default: "30s")
  REGISTRAR_WORKERS         Concurrent order registrations (default: "1")
  EVENTBUS_BUFFER_SIZE      Order event buffer (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Consecutive vendor failures before opening, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown (default: "2m")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  RECONCILE_ENABLED         Re-emit orders stuck in pending (default: "false")
  RECONCILE_SCHEDULE        Cron schedule for reconcile cycles (default: "@every 5m")
  RECONCILE_THRESHOLD       Age before a pending order is re-emitted (default: "30m")
  RECONCILE_BATCH_SIZE      Max orders per cycle (default: "100")

  LEADER_LOCK_KEY           Advisory lock key shared by all instances (default: "728380")
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection ping interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	logConfigWarnings(&cfg)

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	if dialect == sqlstore.DialectSQLite {
		// SQLite is the development setup: create the schema on the fly.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
		err := sqlstore.CreateSchema(ctx, db, dialect)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return exitRuntimeError
		}
	}
	if err := checkSchema(db, cfg.DBOpTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "database schema missing (run `merchlab migrate`): %v\n", err)
		return exitRuntimeError
	}

	store := sqlstore.New(db)

	// Metrics sink and server (optional, separate port)
	metricsSink, metricsServer := app.StartMetrics(cfg, "merchlab")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	zakeke := app.BuildVendor(cfg, redisClient, metricsSink, "merchlab")

	// Create event bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	reg := app.BuildRegistrar(cfg, store, zakeke, metricsSink)

	var recon *reconciler.Reconciler
	if cfg.ReconcileEnabled {
		if recon, err = app.BuildReconciler(cfg, store, bus, metricsSink); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: RECONCILE_SCHEDULE: %v\n", err)
			return exitInvalidConfig
		}
	}

	apiHandler := api.NewHandler(store, session.NewManager(cfg.CookieSecure), domain.Credentials{
		ClientID:     cfg.ZakekeClientID,
		ClientSecret: cfg.ZakekeClientSecret,
	}).
		WithHealthChecker(db).
		WithVendor(zakeke.Tokens, zakeke.Client, zakeke.Poller).
		WithEmitter(bus).
		WithPublicBaseURL(cfg.PublicBaseURL).
		WithCurrency(cfg.DefaultCurrency)

	if redisClient != nil {
		apiHandler = apiHandler.WithAnalytics(analytics.NewRedisSink(redisClient, cfg.AnalyticsRetention))
		log.Printf("merchlab: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("merchlab: REDIS_ADDR not set; analytics disabled")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("merchlab: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("merchlab: http server error: %v", err)
		}
	}()

	// Separate contexts for reconciler and registrar enable ordered shutdown.
	registrarCtx, cancelRegistrar := context.WithCancel(context.Background())
	var registrarWg sync.WaitGroup
	for i := 0; i < cfg.RegistrarWorkers; i++ {
		registrarWg.Add(1)
		go func() {
			defer registrarWg.Done()
			reg.Run(registrarCtx, bus.Channel())
		}()
	}

	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc
	if recon != nil {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			app.RunReconciler(reconcilerCtx, cfg, db, recon, metricsSink)
		}()
		log.Printf("merchlab: reconciler enabled (schedule=%q, threshold=%s, batch=%d)",
			cfg.ReconcileSchedule, cfg.ReconcileThreshold, cfg.ReconcileBatchSize)
	} else {
		log.Println("merchlab: RECONCILE_ENABLED not set; reconciler disabled")
	}

	log.Printf("merchlab: started (version=%s, http=%s, driver=%s)", version, cfg.HTTPAddr, dialect)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("merchlab: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP server (no new checkouts emit events)
	log.Println("merchlab: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("merchlab: http server shutdown error: %v", err)
	}
	log.Println("merchlab: http server stopped")

	// Phase 2: Stop reconciler (no new re-emits)
	if cancelReconciler != nil {
		log.Println("merchlab: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("merchlab: reconciler stopped")
	}

	// Phase 3: Stop registrar (drains buffered events before returning)
	log.Println("merchlab: stopping registrar (draining events)...")
	cancelRegistrar()
	registrarWg.Wait()
	log.Println("merchlab: registrar stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("merchlab: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("merchlab: metrics server shutdown error: %v", err)
		}
		log.Println("merchlab: metrics server stopped")
	}

	log.Println("merchlab: stopped")
	return exitSuccess
}

// openDatabase opens and pings the configured database.
func openDatabase(cfg config.Config) (*sql.DB, sqlstore.Dialect, error) {
	db, dialect, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == sqlstore.DialectPostgres {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

		log.Printf("merchlab: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, dialect, nil
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	seed := fs.Bool("seed", false, "load the demo catalog after creating the schema")
	if err := fs.Parse(args); err != nil {
		return exitInvalidConfig
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "configuration error: DATABASE_URL: required")
		return exitInvalidConfig
	}

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
	defer cancel()

	if err := sqlstore.CreateSchema(ctx, db, dialect); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}
	log.Printf("merchlab: schema ready (driver=%s)", dialect)

	if *seed {
		if err := sqlstore.New(db).Seed(ctx, cfg.DefaultCurrency); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			return exitRuntimeError
		}
		log.Printf("merchlab: seeded %d products", len(sqlstore.SeedProducts))
	}
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("merchlab version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
