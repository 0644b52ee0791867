// Package calendar derives the trading calendar from price history and provides
// window resolution and day-offset arithmetic over it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/domain"
)

// ErrInvalidDateRange is returned when a requested range cannot be mapped onto trading dates.
var ErrInvalidDateRange = errors.New("invalid date range")

// Calendar is an ordered, duplicate-free sequence of trading dates.
// Read-only after Build.
type Calendar struct {
	days []time.Time
}

// Build sorts and deduplicates dates. Zero dates count as malformed and are dropped
// with a warning; they never fail the build.
func Build(dates []time.Time, logger *zap.Logger) *Calendar {
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	dropped := 0
	for _, d := range dates {
		if d.IsZero() {
			dropped++
			continue
		}
		n := domain.NormalizeDate(d)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if dropped > 0 {
		logger.Warn("dropped malformed trading dates", zap.Int("count", dropped))
	}
	return &Calendar{days: days}
}

// BuildFromStrings parses YYYY-MM-DD values, dropping the unparseable ones.
func BuildFromStrings(raw []string, logger *zap.Logger) *Calendar {
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := domain.ParseDate(s)
		if err != nil {
			dates = append(dates, time.Time{})
			continue
		}
		dates = append(dates, d)
	}
	return Build(dates, logger)
}

// DateSource supplies the raw trading dates, typically a storage.PriceHistoryStore.
type DateSource interface {
	GetTradingDates(ctx context.Context) ([]time.Time, error)
}

// Load builds the calendar from src. A source error is returned as is; the
// calendar itself never fails to build.
func Load(ctx context.Context, src DateSource, logger *zap.Logger) (*Calendar, error) {
	dates, err := src.GetTradingDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trading dates: %w", err)
	}
	return Build(dates, logger), nil
}

// Days returns a copy of the calendar dates.
func (c *Calendar) Days() []time.Time {
	out := make([]time.Time, len(c.days))
	copy(out, c.days)
	return out
}

// Len returns the number of trading dates.
func (c *Calendar) Len() int {
	return len(c.days)
}

// First returns the earliest trading date.
func (c *Calendar) First() (time.Time, bool) {
	if len(c.days) == 0 {
		return time.Time{}, false
	}
	return c.days[0], true
}

// Last returns the latest trading date.
func (c *Calendar) Last() (time.Time, bool) {
	if len(c.days) == 0 {
		return time.Time{}, false
	}
	return c.days[len(c.days)-1], true
}

// ResolveStart returns the earliest trading date >= d.
func (c *Calendar) ResolveStart(d time.Time) (time.Time, bool) {
	i := c.searchGE(domain.NormalizeDate(d))
	if i >= len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// ResolveEnd returns the latest trading date <= d.
func (c *Calendar) ResolveEnd(d time.Time) (time.Time, bool) {
	i := c.searchGT(domain.NormalizeDate(d)) - 1
	if i < 0 {
		return time.Time{}, false
	}
	return c.days[i], true
}

// Window resolves start and end onto trading dates and returns the inclusive
// sub-sequence between them. Fails with ErrInvalidDateRange when either bound
// has no trading date on its side or the resolved start falls after the resolved end.
func (c *Calendar) Window(start, end time.Time) ([]time.Time, error) {
	from, ok := c.ResolveStart(start)
	if !ok {
		return nil, fmt.Errorf("%w: no trading date on or after %s", ErrInvalidDateRange, domain.FormatDate(start))
	}
	to, ok := c.ResolveEnd(end)
	if !ok {
		return nil, fmt.Errorf("%w: no trading date on or before %s", ErrInvalidDateRange, domain.FormatDate(end))
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrInvalidDateRange, domain.FormatDate(from), domain.FormatDate(to))
	}

	i := c.searchGE(from)
	j := c.searchGT(to)
	out := make([]time.Time, j-i)
	copy(out, c.days[i:j])
	return out, nil
}

// DefaultLookbackDays is the calendar-day span used when no start date is given.
const DefaultLookbackDays = 365

// WindowWithDefaults resolves an optional [start, end] range. A nil end becomes
// the last trading date; a nil start becomes end minus lookbackDays calendar days.
func (c *Calendar) WindowWithDefaults(start, end *time.Time, lookbackDays int) ([]time.Time, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	var to time.Time
	if end != nil {
		to = domain.NormalizeDate(*end)
	} else {
		last, ok := c.Last()
		if !ok {
			return nil, fmt.Errorf("%w: calendar is empty", ErrInvalidDateRange)
		}
		to = last
	}
	var from time.Time
	if start != nil {
		from = domain.NormalizeDate(*start)
	} else {
		from = to.AddDate(0, 0, -lookbackDays)
	}
	return c.Window(from, to)
}

// NextTradingDay returns the first trading date strictly after d.
// d need not be a trading date itself.
func (c *Calendar) NextTradingDay(d time.Time) (time.Time, bool) {
	i := c.searchGT(domain.NormalizeDate(d))
	if i >= len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// TradingDayPlus returns the trading date n positions away from d, which must be a
// trading date. n may be negative. Absent when d is not in the calendar or the offset
// runs past either end.
func (c *Calendar) TradingDayPlus(d time.Time, n int) (time.Time, bool) {
	i, ok := c.indexOf(domain.NormalizeDate(d))
	if !ok {
		return time.Time{}, false
	}
	j := i + n
	if j < 0 || j >= len(c.days) {
		return time.Time{}, false
	}
	return c.days[j], true
}

func (c *Calendar) indexOf(d time.Time) (int, bool) {
	i := c.searchGE(d)
	if i < len(c.days) && c.days[i].Equal(d) {
		return i, true
	}
	return 0, false
}

// searchGE returns the index of the first date >= d.
func (c *Calendar) searchGE(d time.Time) int {
	return sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
}

// searchGT returns the index of the first date > d.
func (c *Calendar) searchGT(d time.Time) int {
	return sort.Search(len(c.days), func(i int) bool { return c.days[i].After(d) })
}
