package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inbox-unsubscriber/internal/category"
	"inbox-unsubscriber/internal/config"
	"inbox-unsubscriber/internal/logging"
	"inbox-unsubscriber/internal/metrics"
	"inbox-unsubscriber/internal/models"
	"inbox-unsubscriber/internal/scan"
	"inbox-unsubscriber/internal/unsubscribe"
)

const (
	modeScan        = "scan"
	modeStats       = "stats"
	modeUnsubscribe = "unsubscribe"
	modeWatch       = "watch"
	modeStore       = "store-password"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to the configuration file")
	mode := flag.String("mode", modeScan, "scan, stats, unsubscribe, watch or store-password")
	account := flag.String("account", "", "only use the configured account with this address")
	links := flag.String("links", "", "unsubscribe mode: file with one locator per line instead of scanning")
	format := flag.String("format", formatYAML, "output format: yaml or json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Log.Fatalf("Error reading configuration file: %v", err)
	}
	if err := configureLogging(cfg.LogLevel); err != nil {
		logging.Log.Fatalf("Invalid log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, m)
	}

	app := newApp(cfg, m)
	defer app.close()

	accounts, err := app.selectAccounts(*account)
	if err != nil {
		logging.Log.Fatal(err)
	}

	switch *mode {
	case modeScan:
		err = app.runScan(ctx, accounts, *format)
	case modeStats:
		err = app.runStats(ctx, accounts, *format)
	case modeUnsubscribe:
		err = app.runUnsubscribe(ctx, accounts, *links, *format)
	case modeStore:
		err = storePasswords(os.Stdin, accounts)
	case modeWatch:
		logging.Log.Infof("Starting mailbox watch for %d account(s), refresh every %s", len(accounts), cfg.Scan.RefreshTime)
		app.watch(ctx, accounts)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logging.Log.Error(err)
		app.close()
		os.Exit(1)
	}
}

// configureLogging keeps stdout free for the YAML or JSON result.
func configureLogging(level string) error {
	logging.Log.SetOutput(os.Stderr)
	return logging.SetLevel(level)
}

func serveMetrics(addr string, m metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.ServePrometheus())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logging.Log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Error("Metrics server stopped")
		}
	}()
}

func newScanner(cfg *models.Config, m metrics.Metrics) *scan.Scanner {
	opts := scan.Options{
		Workers:    cfg.Scan.Workers,
		FlushEvery: cfg.Scan.FlushEvery,
		Metrics:    m,
	}
	if cfg.Scan.Categorizer == config.CategorizerKeyword {
		opts.Categorizer = category.KeywordCategorizer{}
	}
	return scan.New(opts)
}

func newExecutor(ctx context.Context, cfg models.UnsubscribeConfig, m metrics.Metrics) *unsubscribe.Executor {
	opts := unsubscribe.Options{
		Timeout:    cfg.Timeout,
		Pacing:     cfg.Pacing,
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay,
		UserAgent:  cfg.UserAgent,
		Metrics:    m,
	}
	// config defaults turn a negative pacing into zero, which the executor
	// would read as "use the default"
	if opts.Pacing == 0 {
		opts.Pacing = -1
	}
	if cfg.Browser {
		unsubscribe.StartCleanup(ctx, time.Hour)
		opts.Browser = unsubscribe.NewRodBrowser(cfg.Timeout * 3)
	}
	return unsubscribe.NewExecutor(opts)
}
