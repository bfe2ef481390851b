package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sabarim/intraday/internal/model"
)

// jsonBar is the persisted form of a bar.
type jsonBar struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// JSONStore keeps the table as an indented JSON array.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSONStore backed by path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Location() string { return s.path }

func (s *JSONStore) Close() error { return nil }

// Load reads the table from disk. A missing or empty file yields an empty table.
func (s *JSONStore) Load(ctx context.Context) (model.Table, error) {
	empty, err := fileIsEmpty(s.path)
	if err != nil {
		return model.Table{}, err
	}
	if empty {
		return model.NewTable(nil), nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to read table file: %w", err)
	}
	var rows []jsonBar
	if err := json.Unmarshal(data, &rows); err != nil {
		return model.Table{}, fmt.Errorf("failed to parse table file %s: %w", s.path, err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := model.ParseTimestamp(row.Timestamp)
		if err != nil {
			return model.Table{}, fmt.Errorf("record %d: %w", i, err)
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
func (s *JSONStore) Save(ctx context.Context, t model.Table) error {
	rows := make([]jsonBar, 0, t.Len())
	for _, b := range t.Bars() {
		rows = append(rows, jsonBar{
			Timestamp: model.FormatTimestamp(b.Timestamp),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	return writeFileAtomic(s.path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
		return nil
	})
}
