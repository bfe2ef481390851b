package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabarim/intraday/internal/config"
	"github.com/sabarim/intraday/internal/source"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "intraday version "+versionString+"\n", out)
}

func TestRootCommand_MockRun(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "data", "spy.csv")

	_, err := execute(t,
		"--config", filepath.Join(dir, "missing.yaml"),
		"--mode", "mock",
		"--output", output,
		"--parquet",
		"--parquet-dir", filepath.Join(dir, "parquet"),
		"--log-level", "error",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, ",open,high,low,close,volume", lines[0])
	assert.Len(t, lines, 6)

	_, err = os.Stat(filepath.Join(dir, "parquet", "SPY", "SPY_2010-01.parquet"))
	assert.NoError(t, err)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t,
		"--config", filepath.Join(dir, "missing.yaml"),
		"--mode", "replay",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestApplyFlags(t *testing.T) {
	var cfg config.Config
	cfg.Download.Symbol = "SPY"
	cfg.Download.Year = 2010
	cfg.Store.Format = config.FormatCSV

	applyFlags(&cfg, flags{symbol: "QQQ", year: 2015, format: config.FormatJSON, parquet: true, apiKey: "k"})

	assert.Equal(t, "QQQ", cfg.Download.Symbol)
	assert.Equal(t, 2015, cfg.Download.Year)
	assert.Equal(t, config.FormatJSON, cfg.Store.Format)
	assert.True(t, cfg.Parquet.Enabled)
	assert.Equal(t, "k", cfg.Source.ApiKey)
	assert.Equal(t, "", cfg.Download.Interval)
}

func TestLoadConfig_FlagsDriveDefaultOutputPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name     string
		f        flags
		wantPath string
		wantFmt  string
	}{
		{name: "defaults", f: flags{mode: "mock"}, wantPath: "./data/spy.csv", wantFmt: config.FormatCSV},
		{name: "symbol", f: flags{mode: "mock", symbol: "QQQ"}, wantPath: "./data/qqq.csv", wantFmt: config.FormatCSV},
		{name: "symbol and sqlite", f: flags{mode: "mock", symbol: "QQQ", format: "sqlite"}, wantPath: "./data/qqq.db", wantFmt: config.FormatSQLite},
		{name: "upper case format", f: flags{mode: "mock", format: "JSON"}, wantPath: "./data/spy.json", wantFmt: config.FormatJSON},
		{name: "explicit output", f: flags{mode: "mock", symbol: "QQQ", output: "/tmp/q.csv"}, wantPath: "/tmp/q.csv", wantFmt: config.FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f.configFile = missing

			cfg, err := loadConfig(tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, cfg.Store.OutputPath)
			assert.Equal(t, tt.wantFmt, cfg.Store.Format)
		})
	}
}

func TestLoadConfig_FileOutputPathWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  output_path: /data/bars.csv\n"), 0644))

	cfg, err := loadConfig(flags{configFile: path, mode: "mock", symbol: "QQQ"})
	require.NoError(t, err)
	assert.Equal(t, "/data/bars.csv", cfg.Store.OutputPath)
}

func TestBuildSource(t *testing.T) {
	var cfg config.Config
	cfg.Source.Mode = config.ModeMock

	src, closeSource, err := buildSource(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, closeSource)
	defer closeSource()
	assert.IsType(t, &source.MockSource{}, src)

	cfg.Source.Mode = config.ModeLive
	cfg.Cache.RedisAddr = "127.0.0.1:1"
	src, closeSource, err = buildSource(context.Background(), cfg)
	require.NoError(t, err)
	defer closeSource()
	assert.IsType(t, &source.HTTPSource{}, src)
}
