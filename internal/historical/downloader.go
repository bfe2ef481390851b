package historical

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sabarim/intraday/internal/config"
	"github.com/sabarim/intraday/internal/model"
	"github.com/sabarim/intraday/internal/slogx"
	"github.com/sabarim/intraday/internal/source"
	"github.com/sabarim/intraday/internal/store"
)

const monthsPerYear = 12

// Downloader fetches one year of intraday bars month by month and merges them into a store
type Downloader struct {
	config   config.Config
	source   source.DataSource
	store    store.TableStore
	exporter *ParquetExporter
}

// RunSummary reports what a completed run did
type RunSummary struct {
	Months int
	Rows   int
}

// NewDownloader creates a downloader. exporter may be nil.
func NewDownloader(cfg config.Config, src source.DataSource, st store.TableStore, exporter *ParquetExporter) *Downloader {
	return &Downloader{
		config:   cfg,
		source:   src,
		store:    st,
		exporter: exporter,
	}
}

// Run processes every month of the configured year in order. The first failing
// stage aborts the run with a *StageError; months saved before it stay persisted.
func (d *Downloader) Run(ctx context.Context) (RunSummary, error) {
	dl := d.config.Download
	slog.Info("downloading intraday data",
		"symbol", dl.Symbol,
		"interval", dl.Interval,
		"year", dl.Year,
		"source", d.source.Name(),
		"store", d.store.Location())

	var summary RunSummary
	for m := 1; m <= monthsPerYear; m++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		month := fmt.Sprintf("%04d-%02d", dl.Year, m)
		rows, err := d.runMonth(ctx, month)
		if err != nil {
			return summary, err
		}
		summary.Months++
		summary.Rows = rows
	}

	slog.Info("download completed", "months", summary.Months, "rows", summary.Rows, "store", d.store.Location())
	return summary, nil
}

// runMonth performs fetch, parse, load, merge, save and export for one month
// and returns the row count of the saved table.
func (d *Downloader) runMonth(ctx context.Context, month string) (int, error) {
	requestURL, err := d.BuildURL(month)
	if err != nil {
		return 0, &StageError{Stage: StageFetch, Month: month, Err: err}
	}
	slog.Info("fetching month", "month", month, "url", redactURL(requestURL))

	payload, err := d.source.Fetch(ctx, requestURL)
	if err != nil {
		return 0, &StageError{Stage: StageFetch, Month: month, Err: err}
	}

	incoming, err := ParsePayload(payload)
	if err != nil {
		return 0, &StageError{Stage: StageParse, Month: month, Err: err}
	}

	existing, err := d.store.Load(ctx)
	if err != nil {
		return 0, &StageError{Stage: StageLoad, Month: month, Err: err}
	}

	merged := model.Merge(existing, incoming)
	if err := d.store.Save(ctx, merged); err != nil {
		return 0, &StageError{Stage: StageSave, Month: month, Err: err}
	}
	slog.Info("data saved",
		"month", month,
		"fetched", incoming.Len(),
		"rows", merged.Len(),
		"path", d.store.Location())

	if d.exporter != nil {
		if _, err := d.exporter.Export(merged, touchedMonths(incoming)); err != nil {
			return 0, &StageError{Stage: StageExport, Month: month, Err: err}
		}
	}
	return merged.Len(), nil
}

// BuildURL returns the request URL for one month ("2006-01").
func (d *Downloader) BuildURL(month string) (string, error) {
	src := d.config.Source
	u, err := url.Parse(src.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", src.BaseURL, err)
	}

	q := u.Query()
	q.Set("function", src.Function)
	q.Set("symbol", d.config.Download.Symbol)
	q.Set("interval", d.config.Download.Interval)
	q.Set("apikey", src.ApiKey)
	q.Set("month", month)
	if src.OutputSize != "" {
		q.Set("outputsize", src.OutputSize)
	}
	if src.Adjusted != "" {
		q.Set("adjusted", src.Adjusted)
	}
	if src.ExtendedHours != "" {
		q.Set("extended_hours", src.ExtendedHours)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func touchedMonths(t model.Table) []string {
	groups := t.SplitByMonth()
	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	return months
}

// redactURL masks the apikey query parameter for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	key := q.Get("apikey")
	if key == "" {
		return raw
	}
	q.Set("apikey", slogx.RedactKey(key))
	u.RawQuery = strings.ReplaceAll(q.Encode(), "%2A", "*")
	return u.String()
}
