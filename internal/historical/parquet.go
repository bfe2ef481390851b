package historical

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqsource "github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sabarim/intraday/internal/model"
)

// ParquetBar is the parquet row of one bar
type ParquetBar struct {
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Interval  string  `parquet:"name=interval, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Timestamp int64   `parquet:"name=timestamp, type=INT64, encoding=DELTA_BINARY_PACKED"`
	Date      string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Year      int32   `parquet:"name=year, type=INT32, encoding=PLAIN_DICTIONARY"`
	Month     int32   `parquet:"name=month, type=INT32, encoding=PLAIN_DICTIONARY"`
	Day       int32   `parquet:"name=day, type=INT32, encoding=PLAIN_DICTIONARY"`
	Open      float64 `parquet:"name=open, type=DOUBLE, encoding=PLAIN"`
	High      float64 `parquet:"name=high, type=DOUBLE, encoding=PLAIN"`
	Low       float64 `parquet:"name=low, type=DOUBLE, encoding=PLAIN"`
	Close     float64 `parquet:"name=close, type=DOUBLE, encoding=PLAIN"`
	Volume    int64   `parquet:"name=volume, type=INT64, encoding=DELTA_BINARY_PACKED"`
}

// ParquetExporter writes one parquet file per calendar month of a table
type ParquetExporter struct {
	dir      string
	symbol   string
	interval string
	create   func(name string) (pqsource.ParquetFile, error)
}

// NewParquetExporter creates an exporter writing below dir/<SYMBOL>/.
func NewParquetExporter(dir, symbol, interval string) *ParquetExporter {
	return &ParquetExporter{
		dir:      dir,
		symbol:   strings.ToUpper(symbol),
		interval: interval,
		create:   local.NewLocalFileWriter,
	}
}

// MonthPath returns the file a month ("2006-01") is exported to.
func (e *ParquetExporter) MonthPath(yearMonth string) string {
	return filepath.Join(e.dir, e.symbol, fmt.Sprintf("%s_%s.parquet", e.symbol, yearMonth))
}

// Export rewrites the files of the given months from t. Months with no bars in t are skipped.
// It returns the written paths.
func (e *ParquetExporter) Export(t model.Table, months []string) ([]string, error) {
	if t.Empty() || len(months) == 0 {
		return nil, nil
	}

	dirPath := filepath.Join(e.dir, e.symbol)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory structure: %w", err)
	}

	groups := t.SplitByMonth()
	sorted := append([]string(nil), months...)
	sort.Strings(sorted)

	var written []string
	for _, yearMonth := range sorted {
		bars, ok := groups[yearMonth]
		if !ok {
			continue
		}
		filename := e.MonthPath(yearMonth)
		if err := e.writeBars(filename, bars); err != nil {
			return written, fmt.Errorf("failed to write parquet file %s: %w", filename, err)
		}
		slog.Debug("exported month to parquet", "month", yearMonth, "rows", len(bars), "path", filename)
		written = append(written, filename)
	}
	return written, nil
}

// writeBars writes bars to filename. On failure the partial file is removed.
func (e *ParquetExporter) writeBars(filename string, bars []model.Bar) (err error) {
	fw, err := e.create(filename)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close parquet file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(filename)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(ParquetBar), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024

	for _, b := range bars {
		if err := pw.Write(e.row(b)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("failed to write parquet data: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func (e *ParquetExporter) row(b model.Bar) ParquetBar {
	ts := b.Timestamp.UTC()
	return ParquetBar{
		Symbol:    e.symbol,
		Interval:  e.interval,
		Timestamp: ts.Unix(),
		Date:      ts.Format("2006-01-02"),
		Year:      int32(ts.Year()),
		Month:     int32(ts.Month()),
		Day:       int32(ts.Day()),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}
