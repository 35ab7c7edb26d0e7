package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appName = "leadtap"

// Defaults. Delay bounds mirror the production deployment: anything
// faster trips Maps' bot heuristics.
const (
	DefaultDelayMin      = 2 * time.Second
	DefaultDelayMax      = 4 * time.Second
	DefaultBatchSize     = 20
	DefaultPanelTimeout  = 20 * time.Second
	DefaultDetailTimeout = 15 * time.Second
	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxEmptyTicks = 3
	DefaultSinkRetries   = 3
	DefaultOutputTab     = "Scraped"
)

// Config holds everything a run needs. Populated from flags plus the
// environment (.env honored), passed explicitly into the runner so tests
// can build isolated configurations.
type Config struct {
	TasksPath string // YAML file with search tasks
	DBPath    string // sqlite mirror + checkpoint
	CSVPath   string // optional extra CSV sink
	OutputTab string // sink tab name

	MaxResults int           // 0 = unlimited
	DelayMin   time.Duration // human-delay lower bound
	DelayMax   time.Duration // human-delay upper bound
	BatchSize  int           // rows per flush

	PanelTimeout  time.Duration // panel render wait
	DetailTimeout time.Duration // detail readiness wait
	FetchTimeout  time.Duration // website fetch
	MaxEmptyTicks int           // no-growth scrolls before end-of-results
	SinkRetries   int           // append attempts before fatal

	CDPURL   string // remote DevTools URL; empty = launch local Chrome
	ProxyURL string // HTTP/SOCKS5 proxy for website fetches
	VerifyMX bool   // gate discovered emails on an MX lookup
	Headless bool
	TUI      bool
}

// New returns a Config with defaults applied and environment overrides
// read. A .env in the working directory is loaded first, matching how
// the tool is deployed.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:        filepath.Join(DataDir(), "leadtap.db"),
		OutputTab:     DefaultOutputTab,
		DelayMin:      DefaultDelayMin,
		DelayMax:      DefaultDelayMax,
		BatchSize:     DefaultBatchSize,
		PanelTimeout:  DefaultPanelTimeout,
		DetailTimeout: DefaultDetailTimeout,
		FetchTimeout:  DefaultFetchTimeout,
		MaxEmptyTicks: DefaultMaxEmptyTicks,
		SinkRetries:   DefaultSinkRetries,
		Headless:      true,
	}

	cfg.MaxResults = envInt("MAX_RESULTS_PER_SEARCH", cfg.MaxResults)
	cfg.BatchSize = envInt("BATCH_SIZE", cfg.BatchSize)
	cfg.DelayMin = envSeconds("DELAY_MIN", cfg.DelayMin)
	cfg.DelayMax = envSeconds("DELAY_MAX", cfg.DelayMax)
	if v := os.Getenv("PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("CDP_URL"); v != "" {
		cfg.CDPURL = v
	}
	if v := os.Getenv("OUTPUT_TAB"); v != "" {
		cfg.OutputTab = v
	}
	return cfg
}

// DataDir returns the default directory for the database and logs.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// Validate fails fast on configurations that would misbehave mid-run.
func (c *Config) Validate() error {
	if c.TasksPath == "" {
		return fmt.Errorf("tasks file is required")
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max results must be >= 0, got %d", c.MaxResults)
	}
	if c.DelayMin < 0 || c.DelayMax < 0 {
		return fmt.Errorf("delay bounds must be >= 0")
	}
	if c.DelayMin > c.DelayMax {
		return fmt.Errorf("delay min %s exceeds max %s", c.DelayMin, c.DelayMax)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.SinkRetries <= 0 {
		return fmt.Errorf("sink retries must be positive, got %d", c.SinkRetries)
	}
	return nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
