package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sabarim/intraday/internal/config"
	"github.com/sabarim/intraday/internal/historical"
	"github.com/sabarim/intraday/internal/slogx"
	"github.com/sabarim/intraday/internal/source"
	"github.com/sabarim/intraday/internal/store"
)

// flags holds command-line overrides for the loaded configuration
type flags struct {
	configFile string
	symbol     string
	interval   string
	year       int
	output     string
	mode       string
	apiKey     string
	format     string
	parquet    bool
	parquetDir string
	logLevel   string
	version    bool
}

var versionString = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "intraday",
		Short:         "Download a year of intraday bars month by month",
		Long:          `Downloads intraday OHLCV bars from Alpha Vantage one month at a time and merges them into a local table keyed by timestamp, newest fetch wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	rootCmd.Flags().StringVar(&f.configFile, "config", "config.yaml", "Path to config file")
	rootCmd.Flags().StringVar(&f.symbol, "symbol", "", "Ticker symbol to download")
	rootCmd.Flags().StringVar(&f.interval, "interval", "", "Bar interval (1min, 5min, 15min, 30min, 60min)")
	rootCmd.Flags().IntVar(&f.year, "year", 0, "Year whose twelve months are downloaded")
	rootCmd.Flags().StringVar(&f.output, "output", "", "Output file path (database path for sqlite)")
	rootCmd.Flags().StringVar(&f.mode, "mode", "", "Data source mode (live, mock)")
	rootCmd.Flags().StringVar(&f.apiKey, "api-key", "", "Alpha Vantage API key")
	rootCmd.Flags().StringVar(&f.format, "format", "", "Store format (csv, json, sqlite, postgres)")
	rootCmd.Flags().BoolVar(&f.parquet, "parquet", false, "Also export each month to Parquet")
	rootCmd.Flags().StringVar(&f.parquetDir, "parquet-dir", "", "Output directory for Parquet files")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&f.version, "version", false, "Print version information")

	return rootCmd
}

func run(cmd *cobra.Command, f flags) error {
	if f.version {
		fmt.Fprintf(cmd.OutOrStdout(), "intraday version %s\n", versionString)
		return nil
	}

	// 1. Load configuration and apply command-line overrides
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	slog.SetDefault(slogx.NewDefault(cfg.LogLevel))

	// 2. Cancel on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigchan)
	go func() {
		select {
		case sig := <-sigchan:
			slog.Warn("received signal, initiating shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// 3. Select the data source once
	src, closeSource, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	// 4. Open the table store
	st, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var exporter *historical.ParquetExporter
	if cfg.Parquet.Enabled {
		exporter = historical.NewParquetExporter(cfg.Parquet.Dir, cfg.Download.Symbol, cfg.Download.Interval)
	}

	// 5. Download
	summary, err := historical.NewDownloader(cfg, src, st, exporter).Run(ctx)
	if err != nil {
		var stageErr *historical.StageError
		if errors.As(err, &stageErr) {
			slog.Error("run aborted", "stage", string(stageErr.Stage), "month", stageErr.Month, "error", stageErr.Err)
		}
		return err
	}

	slog.Info("intraday download completed successfully", "months", summary.Months, "rows", summary.Rows, "store", st.Location())
	return nil
}

// loadConfig reads the configuration, applies flag overrides, then derives
// defaults that depend on the final symbol and format.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.LoadConfig(f.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("error loading configuration: %w", err)
	}

	applyFlags(&cfg, f)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, f flags) {
	if f.symbol != "" {
		cfg.Download.Symbol = f.symbol
	}
	if f.interval != "" {
		cfg.Download.Interval = f.interval
	}
	if f.year > 0 {
		cfg.Download.Year = f.year
	}
	if f.output != "" {
		cfg.Store.OutputPath = f.output
	}
	if f.mode != "" {
		cfg.Source.Mode = f.mode
	}
	if f.apiKey != "" {
		cfg.Source.ApiKey = f.apiKey
	}
	if f.format != "" {
		cfg.Store.Format = f.format
	}
	if f.parquet {
		cfg.Parquet.Enabled = true
	}
	if f.parquetDir != "" {
		cfg.Parquet.Dir = f.parquetDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
}

// buildSource returns the mock or live source, wrapped in the redis cache when one is configured.
// The returned func releases the redis connection.
func buildSource(ctx context.Context, cfg config.Config) (source.DataSource, func(), error) {
	noop := func() {}

	var src source.DataSource
	switch cfg.Source.Mode {
	case config.ModeMock:
		if cfg.Source.MockFile == "" {
			src = source.NewMockSource()
			break
		}
		mock, err := source.NewMockSourceFromFile(cfg.Source.MockFile)
		if err != nil {
			return nil, noop, err
		}
		src = mock
	default:
		src = source.NewHTTPSource(cfg.Source.Timeout())
	}

	if !cfg.Cache.CacheEnabled() {
		return src, noop, nil
	}
	rdb, err := source.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, continuing without cache", "addr", cfg.Cache.RedisAddr, "error", err)
		return src, noop, nil
	}
	closeRedis := func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	return source.NewCachingSource(rdb, cfg.Cache.CacheTTL(), src, cfg.Cache.Namespace), closeRedis, nil
}
