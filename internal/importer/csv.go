// Package importer loads price and score CSV files into the stores.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// Required CSV columns. Header order is free; extra columns are ignored.
var (
	PriceColumns = []string{"date", "symbol", "open", "high", "low", "close", "adj_close", "volume"}
	ScoreColumns = []string{"date", "symbol", "score"}
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Stats counts what an import did.
type Stats struct {
	Rows       int
	Imported   int
	BadDates   int // rows dropped for an unparseable date
	BadNumbers int // rows dropped for an unparseable numeric field
}

// Importer reads CSV rows and inserts them in batches.
type Importer struct {
	prices    storage.PriceHistoryStore
	scores    storage.ScoreStore
	batchSize int
	logger    *zap.Logger
}

// New creates an importer. Either store may be nil if the matching import is unused.
func New(prices storage.PriceHistoryStore, scores storage.ScoreStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{prices: prices, scores: scores, batchSize: 5000, logger: logger}
}

// ImportPricesFile reads a price CSV from path.
func (im *Importer) ImportPricesFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return im.ImportPrices(ctx, f)
}

// ImportScoresFile reads a score CSV from path.
func (im *Importer) ImportScoresFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()
	return im.ImportScores(ctx, f)
}

// ImportPrices reads bars from r. Rows with a malformed date or number are dropped and counted.
func (im *Importer) ImportPrices(ctx context.Context, r io.Reader) (Stats, error) {
	if im.prices == nil {
		return Stats{}, errors.New("no price store configured")
	}
	var (
		stats Stats
		batch []*domain.DailyBar
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.prices.InsertBulk(ctx, batch); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
		stats.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	err := readRows(r, PriceColumns, func(get func(string) string) error {
		stats.Rows++
		date, err := domain.ParseDate(get("date"))
		if err != nil {
			stats.BadDates++
			return nil
		}
		nums, ok := parseFloats(get, "open", "high", "low", "close", "adj_close")
		vol, verr := parseVolume(get("volume"))
		if !ok || verr != nil {
			stats.BadNumbers++
			return nil
		}
		batch = append(batch, &domain.DailyBar{
			Symbol:   strings.ToUpper(strings.TrimSpace(get("symbol"))),
			Date:     date,
			Open:     nums[0],
			High:     nums[1],
			Low:      nums[2],
			Close:    nums[3],
			AdjClose: nums[4],
			Volume:   vol,
		})
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	im.logStats("prices", stats)
	return stats, err
}

// ImportScores reads score rows from r. Rows with a malformed date or score are dropped and counted.
func (im *Importer) ImportScores(ctx context.Context, r io.Reader) (Stats, error) {
	if im.scores == nil {
		return Stats{}, errors.New("no score store configured")
	}
	var (
		stats Stats
		batch []*domain.ScoreRow
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.scores.InsertBulk(ctx, batch); err != nil {
			return fmt.Errorf("insert scores: %w", err)
		}
		stats.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	err := readRows(r, ScoreColumns, func(get func(string) string) error {
		stats.Rows++
		date, err := domain.ParseDate(get("date"))
		if err != nil {
			stats.BadDates++
			return nil
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(get("score")), 64)
		if err != nil || math.IsNaN(score) {
			stats.BadNumbers++
			return nil
		}
		batch = append(batch, &domain.ScoreRow{
			Date:   date,
			Symbol: strings.ToUpper(strings.TrimSpace(get("symbol"))),
			Score:  score,
		})
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	im.logStats("scores", stats)
	return stats, err
}

func (im *Importer) logStats(kind string, s Stats) {
	if s.BadDates > 0 || s.BadNumbers > 0 {
		im.logger.Warn("dropped malformed rows",
			zap.String("kind", kind),
			zap.Int("bad_dates", s.BadDates),
			zap.Int("bad_numbers", s.BadNumbers),
		)
	}
	im.logger.Info("import complete", zap.String("kind", kind), zap.Int("rows", s.Rows), zap.Int("imported", s.Imported))
}

// readRows maps the header onto required and calls fn per data row.
func readRows(r io.Reader, required []string, fn func(get func(string) string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}
		if err := fn(get); err != nil {
			return err
		}
	}
}

func parseFloats(get func(string) string, cols ...string) ([]float64, bool) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		v, err := strconv.ParseFloat(strings.TrimSpace(get(c)), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// parseVolume accepts integers and float renderings such as "1200.0".
func parseVolume(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
