// Command worker registers pending orders with Zakeke without serving HTTP.
// It sweeps the orders table on RECONCILE_SCHEDULE and feeds every order
// still pending after RECONCILE_THRESHOLD to an in-process registrar.
// On Postgres it takes part in the same leader election as merchlab serve.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/TatisVivas/zakekeSample/internal/app"
	"github.com/TatisVivas/zakekeSample/internal/config"
	"github.com/TatisVivas/zakekeSample/internal/store/sqlstore"
	"github.com/TatisVivas/zakekeSample/internal/transport/channel"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	db, _, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	metricsSink, metricsServer := app.StartMetrics(cfg, "worker")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	store := sqlstore.New(db)
	zakeke := app.BuildVendor(cfg, redisClient, metricsSink, "worker")

	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)
	reg := app.BuildRegistrar(cfg, store, zakeke, metricsSink)
	recon, err := app.BuildReconciler(cfg, store, bus, metricsSink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: RECONCILE_SCHEDULE: %v\n", err)
		os.Exit(2)
	}

	// Use separate contexts for reconciler and registrar to enable ordered shutdown.
	// Reconciler stops first (no new events), then the registrar drains remaining events.
	reconcilerCtx, cancelReconciler := context.WithCancel(context.Background())
	registrarCtx, cancelRegistrar := context.WithCancel(context.Background())

	var reconcilerWg sync.WaitGroup
	var registrarWg sync.WaitGroup

	reconcilerWg.Add(1)
	go func() {
		defer reconcilerWg.Done()
		app.RunReconciler(reconcilerCtx, cfg, db, recon, metricsSink)
	}()

	for i := 0; i < cfg.RegistrarWorkers; i++ {
		registrarWg.Add(1)
		go func() {
			defer registrarWg.Done()
			reg.Run(registrarCtx, bus.Channel())
		}()
	}

	log.Printf("worker: started (schedule=%q, threshold=%s, workers=%d)",
		cfg.ReconcileSchedule, cfg.ReconcileThreshold, cfg.RegistrarWorkers)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("worker: received signal %v, shutting down", received)

	// Phase 1: Stop reconciler (no new events emitted)
	log.Println("worker: stopping reconciler...")
	cancelReconciler()
	reconcilerWg.Wait()
	log.Println("worker: reconciler stopped")

	// Phase 2: Stop registrar (will drain buffered events before returning)
	log.Println("worker: stopping registrar (draining events)...")
	cancelRegistrar()
	registrarWg.Wait()
	log.Println("worker: registrar stopped")

	// Phase 3: Stop metrics server
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Printf("worker: metrics server shutdown error: %v", err)
		}
		cancel()
	}

	log.Println("worker: stopped")
}
