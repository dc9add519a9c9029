// Package main runs the live simulation observer: it drives the
// session handshake against the backend, consumes the tick stream,
// classifies deltas, narrates them, directs the console stage and
// archives the run for later replay.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"storesim-observer/internal/backend"
	"storesim-observer/internal/console"
	"storesim-observer/internal/director"
	"storesim-observer/internal/domain"
	"storesim-observer/internal/engine"
	"storesim-observer/internal/feed"
	"storesim-observer/internal/highlights"
	"storesim-observer/internal/idhash"
	"storesim-observer/internal/observability"
	"storesim-observer/internal/observer"
	"storesim-observer/internal/replay"
	"storesim-observer/internal/session"
	"storesim-observer/internal/storage"
	chstore "storesim-observer/internal/storage/clickhouse"
	"storesim-observer/internal/storage/memory"
	"storesim-observer/internal/storage/migrations"
	pgstore "storesim-observer/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	backendURL := flag.String("backend-url", envOr("OBSERVER_BACKEND_URL", "http://localhost:8080"), "Backend REST base URL")
	wsURL := flag.String("ws-url", envOr("OBSERVER_WS_URL", "ws://localhost:8080/ws"), "Backend live channel URL")
	scenario := flag.String("scenario", envOr("OBSERVER_SCENARIO", "tier_1_baseline"), "Scenario id")
	agent := flag.String("agent", envOr("OBSERVER_AGENT", "gpt-4o"), "Agent model id")
	seed := flag.Int64("seed", envInt64Or("OBSERVER_SEED", 0), "Simulation seed")
	maxTicks := flag.Int("max-ticks", int(envInt64Or("OBSERVER_MAX_TICKS", 100)), "Maximum ticks per run")
	speed := flag.Float64("speed", envFloatOr("OBSERVER_SPEED", 1.0), "Backend run speed multiplier")
	autostart := flag.Bool("autostart", envBoolOr("OBSERVER_AUTOSTART", false), "Start a session immediately")
	autoquit := flag.Bool("autoquit", envBoolOr("OBSERVER_AUTOQUIT", false), "Exit after the run finishes")
	startDelay := flag.Duration("start-delay", envDurationOr("OBSERVER_START_DELAY", 0), "Delay before autostart")
	endcardHold := flag.Duration("endcard-hold", envDurationOr("OBSERVER_ENDCARD_HOLD", 5*time.Second), "How long the end card stays up")
	presentation := flag.Bool("presentation", envBoolOr("OBSERVER_PRESENTATION", false), "Start in presentation (cinematic) mode")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (run summaries)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (tick archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	listScenarios := flag.Bool("list-scenarios", false, "List available scenarios and exit")
	listModels := flag.Bool("list-models", false, "List available agent models and exit")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[observer] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := backend.NewClient(*backendURL)

	if *listScenarios || *listModels {
		if err := printListings(ctx, api, *listScenarios, *listModels); err != nil {
			logger.Fatalf("Listing failed: %v", err)
		}
		return
	}

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	summaryStore, archiveStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Observer pipeline
	stage := console.NewStage()
	camera := console.NewCamera()
	scheduler := director.NewTimerScheduler()
	dir := director.New(stage, camera, scheduler, director.Config{
		Presentation: *presentation,
	})
	narration := feed.New(feed.DefaultCapacity)
	eng := engine.New(engine.Options{
		Classifier:   observer.NewClassifier(observer.NewState()),
		Aggregator:   highlights.NewAggregator(),
		Feed:         narration,
		Director:     dir,
		Recorder:     replay.NewRecorder(archiveStore, replay.DefaultBatchSize),
		SummaryStore: summaryStore,
		Scenario:     *scenario,
		Agent:        *agent,
		Seed:         *seed,
		Verbose:      *verbose,
	})

	orch := session.New(session.Options{
		API: api,
		Dial: func(ctx context.Context, topic string) (session.LiveStream, error) {
			return backend.DialLive(ctx, *wsURL, topic, nil)
		},
		Verbose: *verbose,
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Keyboard control: 'c' toggles presentation, 's' requests a single
	// step, 'q' quits.
	go readKeys(dir, orch, logger, cancel)

	// Prometheus metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	cfg := domain.SessionConfig{
		Scenario: *scenario,
		Agent:    *agent,
		Seed:     *seed,
		MaxTicks: *maxTicks,
		Speed:    *speed,
	}

	if *autostart {
		if *startDelay > 0 {
			logger.Printf("Autostart in %s...", *startDelay)
			select {
			case <-time.After(*startDelay):
			case <-ctx.Done():
				return
			}
		}
		if err := startRun(ctx, orch, eng, cfg, logger); err != nil {
			logger.Fatalf("Autostart failed: %v", err)
		}
	} else {
		logger.Printf("Idle. Start a run with OBSERVER_AUTOSTART=1 or press 'q' to quit.")
	}

	runLoop(ctx, orch, eng, narration, logger, *endcardHold, *autoquit, cancel)

	orch.Stop()
	dir.Stop()
	scheduler.CancelAll()
	logger.Println("Shutdown complete")
}

// startRun performs the handshake and arms the engine for the new run.
func startRun(ctx context.Context, orch *session.Orchestrator, eng *engine.Engine, cfg domain.SessionConfig, logger *log.Logger) error {
	if err := orch.Start(ctx, cfg); err != nil {
		return err
	}
	eng.BeginRun(orch.CreatedAtMs())
	logger.Printf("Run %s started: scenario=%s agent=%s seed=%d",
		idhash.ShortRunID(eng.RunID()), cfg.Scenario, cfg.Agent, cfg.Seed)
	return nil
}

// runLoop consumes the live stream until shutdown.
func runLoop(
	ctx context.Context,
	orch *session.Orchestrator,
	eng *engine.Engine,
	narration *feed.Feed,
	logger *log.Logger,
	endcardHold time.Duration,
	autoquit bool,
	cancel context.CancelFunc,
) {
	for {
		stream := orch.Stream()
		if stream == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case env, ok := <-stream:
			if !ok {
				// Stream drained after close; wait for a new run.
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			switch env.Kind {
			case backend.KindTick:
				observability.RecordWSMessage("tick")
				res := eng.HandleTick(ctx, env.Tick)
				for _, ev := range res.Events {
					logger.Printf("tick %4d | %s", env.Tick.Tick, feed.Narrate(ev))
				}
			case backend.KindFinished:
				observability.RecordWSMessage("finished")
				orch.MarkFinished()
				summary, err := eng.HandleFinished(ctx, env.Finished)
				if err != nil {
					logger.Printf("Finish handling error: %v", err)
				}
				printEndCard(logger, summary, narration)
				select {
				case <-time.After(endcardHold):
				case <-ctx.Done():
					return
				}
				if autoquit {
					cancel()
					return
				}
			case backend.KindDisconnected:
				observability.RecordWSMessage("disconnected")
				eng.HandleDisconnect()
				logger.Printf("*** DISCONNECTED: %v (last view preserved) ***", env.Err)
			}
		}
	}
}

// printEndCard renders the run summary, highlights and the closing
// stretch of the narration feed.
func printEndCard(logger *log.Logger, s *domain.RunSummary, narration *feed.Feed) {
	logger.Println("================ RUN COMPLETE ================")
	logger.Printf("Run:       %s", idhash.ShortRunID(s.RunID))
	logger.Printf("Scenario:  %s   Agent: %s   Seed: %d", s.Scenario, s.Agent, s.Seed)
	logger.Printf("Ticks:     %d", s.Summary.TotalTicks)
	logger.Printf("Revenue:   $%.2f   Profit: $%.2f (margin %.1f%%)",
		s.Summary.TotalRevenue, s.Summary.TotalProfit, s.Summary.ProfitMargin*100)
	logger.Printf("Units:     %d   Final inventory value: $%.2f",
		s.Summary.TotalUnitsSold, s.Summary.FinalInventoryValue)
	if !s.Highlights.IsZero() {
		logger.Printf("Best tick by revenue: %d (+$%.2f)", s.Highlights.BestRevenueTick, s.Highlights.BestRevenueDelta)
		logger.Printf("Best tick by units:   %d (+%d)", s.Highlights.BestUnitsTick, s.Highlights.BestUnitsDelta)
	}
	if entries := narration.Entries(); len(entries) > 0 {
		logger.Println("Closing moments:")
		start := len(entries) - 5
		if start < 0 {
			start = 0
		}
		for _, e := range entries[start:] {
			logger.Printf("  tick %4d | %s", e.Tick, e.Text)
		}
	}
	logger.Println("==============================================")
}

// readKeys handles single-character runtime controls on stdin.
func readKeys(dir *director.Director, orch *session.Orchestrator, logger *log.Logger, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "c":
			on := !dir.Presentation()
			dir.SetPresentation(on)
			if on {
				logger.Println("Presentation mode ON")
			} else {
				logger.Println("Presentation mode OFF")
			}
		case "s":
			if err := orch.RequestStep(); err != nil {
				logger.Printf("Step request failed: %v", err)
			}
		case "q":
			cancel()
			return
		}
	}
}

// printListings fetches and prints scenario/model catalogs.
func printListings(ctx context.Context, api *backend.Client, scenarios, models bool) error {
	if scenarios {
		list, err := api.ListScenarios(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Scenarios:")
		for _, s := range list {
			fmt.Printf("  %-24s %s\n", s.ID, s.Name)
		}
	}
	if models {
		list, err := api.ListModels(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Models:")
		for _, m := range list {
			fmt.Printf("  %-24s %s\n", m.ID, m.Provider)
		}
	}
	return nil
}

// createStores creates the run summary and tick archive stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.RunSummaryStore, storage.TickArchiveStore, func(), error) {
	if useMemory {
		return memory.NewRunSummaryStore(), memory.NewTickArchiveStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		pool.Close()
		conn.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}
	return pgstore.NewRunSummaryStore(pool), chstore.NewTickArchiveStore(conn), cleanup, nil
}

// Env helpers: flags take their defaults from the operator surface.

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64Or(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
