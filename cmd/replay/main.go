// Package main replays an archived run through the observer pipeline:
// the recorded ticks are re-classified live, so the narration, stage
// effects and highlights reproduce the original run exactly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storesim-observer/internal/console"
	"storesim-observer/internal/director"
	"storesim-observer/internal/engine"
	"storesim-observer/internal/feed"
	"storesim-observer/internal/highlights"
	"storesim-observer/internal/idhash"
	"storesim-observer/internal/observer"
	"storesim-observer/internal/replay"
	chstore "storesim-observer/internal/storage/clickhouse"
	pgstore "storesim-observer/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	runID := flag.String("run-id", "", "Run id to replay")
	list := flag.Bool("list", false, "List recent runs and exit")
	limit := flag.Int("limit", 20, "Number of runs to list")
	speed := flag.Float64("speed", envFloatOr("OBSERVER_SPEED", 4.0), "Playback speed in ticks per second (0 = no delay)")
	endcardHold := flag.Duration("endcard-hold", envDurationOr("OBSERVER_ENDCARD_HOLD", 5*time.Second), "How long the end card stays up")
	presentation := flag.Bool("presentation", envBoolOr("OBSERVER_PRESENTATION", true), "Replay in presentation (cinematic) mode")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (run summaries)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (tick archive)")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *list {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required for --list")
		}
		if err := listRuns(ctx, *postgresDSN, *limit); err != nil {
			logger.Fatalf("Listing runs failed: %v", err)
		}
		return
	}

	if *runID == "" {
		logger.Fatal("--run-id is required (use --list to browse archived runs)")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Connect to clickhouse: %v", err)
	}
	defer conn.Close()

	stage := console.NewStage()
	camera := console.NewCamera()
	scheduler := director.NewTimerScheduler()
	dir := director.New(stage, camera, scheduler, director.Config{
		Presentation: *presentation,
	})
	eng := engine.New(engine.Options{
		Classifier: observer.NewClassifier(observer.NewState()),
		Aggregator: highlights.NewAggregator(),
		Feed:       feed.New(feed.DefaultCapacity),
		Director:   dir,
		Verbose:    *verbose,
	})

	player := replay.NewPlayer(chstore.NewTickArchiveStore(conn), eng, replay.PlayerConfig{
		Speed:       *speed,
		EndcardHold: *endcardHold,
		Verbose:     *verbose,
	})

	summary, err := player.Play(ctx, *runID)
	if err != nil {
		dir.Stop()
		logger.Fatalf("Replay failed: %v", err)
	}
	dir.Stop()

	logger.Println("================ REPLAY COMPLETE ================")
	logger.Printf("Run:     %s", idhash.ShortRunID(*runID))
	logger.Printf("Ticks:   %d   Revenue: $%.2f   Profit: $%.2f",
		summary.Summary.TotalTicks, summary.Summary.TotalRevenue, summary.Summary.TotalProfit)
	if !summary.Highlights.IsZero() {
		logger.Printf("Best tick by revenue: %d (+$%.2f)", summary.Highlights.BestRevenueTick, summary.Highlights.BestRevenueDelta)
		logger.Printf("Best tick by units:   %d (+%d)", summary.Highlights.BestUnitsTick, summary.Highlights.BestUnitsDelta)
	}
	logger.Println("=================================================")
}

// listRuns prints the most recently finished runs from the summary
// store.
func listRuns(ctx context.Context, postgresDSN string, limit int) error {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	store := pgstore.NewRunSummaryStore(pool)
	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-46s %-20s %-12s %8s %10s\n", "RUN", "SCENARIO", "AGENT", "TICKS", "REVENUE")
	for _, r := range runs {
		fmt.Printf("%-46s %-20s %-12s %8d %10.2f\n",
			r.RunID, r.Scenario, r.Agent, r.Summary.TotalTicks, r.Summary.TotalRevenue)
	}
	return nil
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func envFloatOr(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
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
		return
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
