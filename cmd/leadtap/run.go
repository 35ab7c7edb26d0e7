package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/dvergara/leadtap/internal/browser"
	"github.com/dvergara/leadtap/internal/config"
	"github.com/dvergara/leadtap/internal/engine/dedup"
	"github.com/dvergara/leadtap/internal/engine/email"
	"github.com/dvergara/leadtap/internal/engine/geo"
	"github.com/dvergara/leadtap/internal/engine/scrape"
	"github.com/dvergara/leadtap/internal/engine/storage"
	"github.com/dvergara/leadtap/internal/input"
	"github.com/dvergara/leadtap/internal/model"
	"github.com/dvergara/leadtap/internal/sheet"
	"github.com/dvergara/leadtap/internal/tui"
)

// errTasksFailed signals partial success: the queue completed but some
// tasks ended failed and a rerun should retry them.
var errTasksFailed = errors.New("some tasks failed")

func runScrape(args []string) error {
	cfg := config.New()

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.StringVar(&cfg.TasksPath, "tasks", cfg.TasksPath, "YAML file with search tasks (required)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite mirror + checkpoint path")
	fs.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "directory for an additional CSV sink (optional)")
	fs.StringVar(&cfg.OutputTab, "tab", cfg.OutputTab, "output tab name")
	fs.IntVar(&cfg.MaxResults, "max", cfg.MaxResults, "max results per search (0 = unlimited)")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "rows per sink flush")
	fs.DurationVar(&cfg.DelayMin, "delay-min", cfg.DelayMin, "human delay lower bound")
	fs.DurationVar(&cfg.DelayMax, "delay-max", cfg.DelayMax, "human delay upper bound")
	fs.StringVar(&cfg.CDPURL, "cdp", cfg.CDPURL, "remote DevTools URL (default: launch local Chrome)")
	fs.StringVar(&cfg.ProxyURL, "proxy", cfg.ProxyURL, "HTTP/SOCKS5 proxy for website fetches")
	fs.BoolVar(&cfg.VerifyMX, "verify-mx", cfg.VerifyMX, "drop discovered emails whose domain has no MX record")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run Chrome headless")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "render live progress UI")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leadtap run [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  leadtap run -tasks searches.yaml\n")
		fmt.Fprintf(os.Stderr, "  leadtap run -tasks searches.yaml -max 250 -csv ./out -tui\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// Session log file next to the database.
	logPath := filepath.Join(filepath.Dir(cfg.DBPath),
		fmt.Sprintf("leadtap_%s.log", time.Now().Format("20060102_150405")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags)

	runID := uuid.NewString()
	logger.Printf("=== Run %s: tasks=%s db=%s max=%d delay=[%s,%s] batch=%d ===",
		runID, cfg.TasksPath, cfg.DBPath, cfg.MaxResults, cfg.DelayMin, cfg.DelayMax, cfg.BatchSize)
	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	tasks, err := input.NewStore(cfg.TasksPath).ReadAll()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to do: tasks file is empty.")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.BeginRun(ctx, runID); err != nil {
		return err
	}
	if err := store.SyncTasks(ctx, tasks); err != nil {
		return err
	}

	seed, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	logger.Printf("DEDUP_SEED keys=%d", len(seed))

	sess, err := browser.NewChromeSession(ctx, cfg.CDPURL, cfg.Headless)
	if err != nil {
		return err
	}
	defer sess.Close()

	limiter := scrape.NewRateLimiter(cfg.DelayMin, cfg.DelayMax)
	resolver := geo.NewResolver(logger)

	deps := scrape.Deps{
		Panel: scrape.NewPanelDriver(sess, limiter, resolver.SearchURL, logger, scrape.PanelConfig{
			PanelTimeout:  cfg.PanelTimeout,
			MaxResults:    cfg.MaxResults,
			MaxEmptyTicks: cfg.MaxEmptyTicks,
		}),
		Extract: scrape.NewExtractor(sess, limiter, logger, cfg.DetailTimeout),
		Email: email.NewDiscoverer(
			email.NewHTTPFetcher(cfg.ProxyURL, cfg.FetchTimeout), logger, cfg.VerifyMX),
		Dedup: dedup.New(seed, logger),
		Store: store,
		Sink:  buildSink(cfg, store, logger),
	}

	opts := scrape.Options{
		RunID:          runID,
		Tab:            cfg.OutputTab,
		BatchSize:      cfg.BatchSize,
		SuppressStderr: cfg.TUI,
		Stats:          &scrape.Stats{},
	}

	start := time.Now()
	var runErr error
	if cfg.TUI {
		runErr = runWithTUI(ctx, cancel, tasks, deps, logger, opts)
	} else {
		_, runErr = scrape.Run(ctx, tasks, deps, logger, opts)
	}

	_ = store.FinishRun(context.WithoutCancel(ctx), runID)

	stats := opts.Stats
	total, _ := store.Count(context.WithoutCancel(ctx))
	logger.Printf("Run %s done: scraped=%d duplicates=%d skipped=%d failed_tasks=%d total_in_db=%d err=%v",
		runID, stats.Scraped.Load(), stats.Duplicates.Load(), stats.Skipped.Load(),
		stats.TasksFailed.Load(), total, runErr)

	printSummary(cfg, stats, total, time.Since(start).Truncate(time.Second), logPath)

	if runErr != nil {
		return runErr
	}
	if stats.TasksFailed.Load() > 0 {
		return fmt.Errorf("%w: %d of %d", errTasksFailed, stats.TasksFailed.Load(), stats.TasksTotal)
	}
	return nil
}

// runWithTUI runs the pipeline in the background while bubbletea owns
// the terminal. Quitting the view cancels the run.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, tasks []model.SearchTask, deps scrape.Deps, logger *log.Logger, opts scrape.Options) error {
	p := tea.NewProgram(tui.New(opts.Stats, cancel))

	errCh := make(chan error, 1)
	go func() {
		_, err := scrape.Run(ctx, tasks, deps, logger, opts)
		errCh <- err
		p.Send(tui.DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return err
	}
	return <-errCh
}

func buildSink(cfg *config.Config, store *storage.Store, logger *log.Logger) sheet.Sink {
	var sink sheet.Sink = store
	if cfg.CSVPath != "" {
		os.MkdirAll(cfg.CSVPath, 0o755)
		sink = sheet.Multi{store, sheet.NewCSVSink(cfg.CSVPath)}
	}
	return sheet.NewRetry(sink, cfg.SinkRetries, 2*time.Second, logger)
}

func printSummary(cfg *config.Config, stats *scrape.Stats, total int, duration time.Duration, logPath string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  leadtap complete\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Tasks:       %d (%d failed)\n", stats.TasksTotal, stats.TasksFailed.Load())
	fmt.Fprintf(os.Stderr, "  Scraped:     %d\n", stats.Scraped.Load())
	fmt.Fprintf(os.Stderr, "  Duplicates:  %d\n", stats.Duplicates.Load())
	fmt.Fprintf(os.Stderr, "  Skipped:     %d\n", stats.Skipped.Load())
	fmt.Fprintf(os.Stderr, "  In mirror:   %d\n", total)
	fmt.Fprintf(os.Stderr, "  Duration:    %s\n", duration)
	fmt.Fprintf(os.Stderr, "  Database:    %s\n", cfg.DBPath)
	fmt.Fprintf(os.Stderr, "  Log:         %s\n", logPath)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
}
