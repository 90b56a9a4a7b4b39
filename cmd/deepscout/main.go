// Command deepscout is the main entry point for the deepscout MCP research
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avezina/deepscout/internal/config"
	"github.com/avezina/deepscout/internal/observe"
	"github.com/avezina/deepscout/internal/ratelimit"
	"github.com/avezina/deepscout/internal/research"
	"github.com/avezina/deepscout/internal/resilience"
	"github.com/avezina/deepscout/internal/server"
	"github.com/avezina/deepscout/internal/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepscout: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Always stderr: in stdio mode stdout belongs to the MCP transport.
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("deepscout starting",
		"config", *configPath,
		"transport", cfg.Server.Transport,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "deepscout",
		ServiceVersion: server.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Research client ───────────────────────────────────────────────────────
	client, err := buildResearcher(cfg, logger)
	if err != nil {
		slog.Error("failed to build research client", "err", err)
		return 1
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "research_api",
	})
	researcher := server.Guard(client, breaker)

	// ── Validator and rate limiter ────────────────────────────────────────────
	validator := validate.New(validate.Defaults{
		AccuracyLevel:  research.AccuracyLevel(cfg.Defaults.AccuracyLevel),
		MaxTokens:      cfg.Defaults.MaxTokens,
		Temperature:    cfg.Defaults.Temperature,
		ResponseFormat: research.Format(cfg.Defaults.ResponseFormat),
	}, logger)

	limiter := ratelimit.New(ratelimit.Config{
		HourlyRequests:      cfg.RateLimit.HourlyRequests,
		DailyCostCapUSD:     cfg.RateLimit.DailyCostCapUSD,
		DailyRequestsHigh:   cfg.RateLimit.DailyRequestsHigh,
		DailyRequestsMedium: cfg.RateLimit.DailyRequestsMedium,
		SweepInterval:       time.Duration(cfg.RateLimit.SweepIntervalSeconds) * time.Second,
	}, logger)

	// ── MCP server ────────────────────────────────────────────────────────────
	handler := server.NewHandler(validator, limiter, researcher, metrics, logger)
	if cfg.Research.CostPer1KHigh > 0 {
		handler.Pricing[research.AccuracyHigh] = cfg.Research.CostPer1KHigh
	}
	if cfg.Research.CostPer1KMedium > 0 {
		handler.Pricing[research.AccuracyMedium] = cfg.Research.CostPer1KMedium
	}
	srv := server.New(cfg.Server, handler, logger)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })

	slog.Info("server ready")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildResearcher assembles the downstream client from configuration.
func buildResearcher(cfg *config.Config, logger *slog.Logger) (*research.Client, error) {
	opts := []research.Option{
		research.WithTimeout(time.Duration(cfg.Research.TimeoutSeconds) * time.Second),
		research.WithMaxRetries(cfg.Research.MaxRetries),
		research.WithLogger(logger),
	}
	if cfg.Research.BaseURL != "" {
		opts = append(opts, research.WithBaseURL(cfg.Research.BaseURL))
	}
	if cfg.Research.ModelHigh != "" {
		opts = append(opts, research.WithModel(research.AccuracyHigh, cfg.Research.ModelHigh))
	}
	if cfg.Research.ModelMedium != "" {
		opts = append(opts, research.WithModel(research.AccuracyMedium, cfg.Research.ModelMedium))
	}
	if cfg.Research.CostPer1KHigh > 0 {
		opts = append(opts, research.WithPricing(research.AccuracyHigh, cfg.Research.CostPer1KHigh))
	}
	if cfg.Research.CostPer1KMedium > 0 {
		opts = append(opts, research.WithPricing(research.AccuracyMedium, cfg.Research.CostPer1KMedium))
	}
	return research.New(cfg.Research.APIKey, opts...)
}

// ── Startup summary ───────────────────────────────────────────────────────────

// printStartupSummary writes to stderr so the box never leaks into the stdio
// MCP stream.
func printStartupSummary(cfg *config.Config) {
	w := os.Stderr
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        deepscout — startup summary    ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Transport", string(cfg.Server.Transport))
	if cfg.Server.Transport == config.TransportStreamableHTTP {
		printRow(w, "Listen addr", cfg.Server.ListenAddr)
	}
	printRow(w, "Model (high)", orDefault(cfg.Research.ModelHigh, "o3-deep-research"))
	printRow(w, "Model (medium)", orDefault(cfg.Research.ModelMedium, "o4-mini-deep-research"))
	printRow(w, "Hourly limit", fmt.Sprintf("%d req/client", cfg.RateLimit.HourlyRequests))
	printRow(w, "Daily cost cap", fmt.Sprintf("$%.2f/client", cfg.RateLimit.DailyCostCapUSD))
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(w *os.File, label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Fprintf(w, "║  %-14s  : %-19s ║\n", label, value)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
