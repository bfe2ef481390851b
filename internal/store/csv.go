package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/sabarim/intraday/internal/model"
)

// csvColumns is the header row; the leading index column is unlabeled.
var csvColumns = []string{"", "open", "high", "low", "close", "volume"}

// csvRow is one data row, fields in column order.
type csvRow struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
}

// CSVStore keeps the table in a delimited file with the timestamp as index column.
type CSVStore struct {
	path string
}

// NewCSVStore creates a CSVStore backed by path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Location returns the file path
func (s *CSVStore) Location() string { return s.path }

// Close is a no-op; the file is opened and closed on every call.
func (s *CSVStore) Close() error { return nil }

// Load reads the table from disk. A missing or empty file yields an empty table.
func (s *CSVStore) Load(ctx context.Context) (model.Table, error) {
	empty, err := fileIsEmpty(s.path)
	if err != nil {
		return model.Table{}, err
	}
	if empty {
		return model.NewTable(nil), nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to open table file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return model.NewTable(nil), nil
	}
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return model.Table{}, err
	}

	var rows []csvRow
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &rows); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return model.Table{}, fmt.Errorf("failed to read CSV records: %w", err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := model.ParseTimestamp(row.Timestamp)
		if err != nil {
			return model.Table{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		bars = append(bars, model.Bar{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	return model.NewTable(bars), nil
}

// Save overwrites the file with t.
func (s *CSVStore) Save(ctx context.Context, t model.Table) error {
	rows := make([]csvRow, 0, t.Len())
	for _, b := range t.Bars() {
		rows = append(rows, csvRow{
			Timestamp: model.FormatTimestamp(b.Timestamp),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	return writeFileAtomic(s.path, func(f *os.File) error {
		if _, err := io.WriteString(f, strings.Join(csvColumns, ",")+"\n"); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := gocsv.MarshalWithoutHeaders(rows, f); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
		return nil
	})
}

func checkHeader(header []string) error {
	if len(header) != len(csvColumns) {
		return fmt.Errorf("unexpected CSV header %q: want %d columns", strings.Join(header, ","), len(csvColumns))
	}
	// the index column may be unlabeled or carry an index name
	for i := 1; i < len(csvColumns); i++ {
		if got := strings.ToLower(strings.TrimSpace(header[i])); got != csvColumns[i] {
			return fmt.Errorf("unexpected CSV header %q: column %d is %q, want %q", strings.Join(header, ","), i+1, header[i], csvColumns[i])
		}
	}
	return nil
}
