// Package calendar answers trading-day questions against a versioned holiday
// table. A Calendar is immutable after construction; hot-reloading the table
// means building a new Calendar and swapping the reference between calls.
package calendar

import "time"

const dateKeyLayout = "2006-01-02"

// ExitUrgency buckets the remaining trading days before a time exit.
type ExitUrgency string

const (
	UrgencyUrgent  ExitUrgency = "urgent"  // 0 or 1 trading days left
	UrgencyWarning ExitUrgency = "warning" // exactly 2 trading days left
	UrgencyNormal  ExitUrgency = "normal"
)

// HolidayTable is the configuration form of a calendar: full-closure dates
// and early-close dates, plus a version tag so callers can tell which table
// a result was computed against.
type HolidayTable struct {
	Version     string      `json:"version" mapstructure:"version"`
	Closures    []time.Time `json:"closures" mapstructure:"closures"`
	EarlyCloses []time.Time `json:"early_closes" mapstructure:"early_closes"`
}

// Calendar is a read-only trading-day oracle built from one HolidayTable.
type Calendar struct {
	version     string
	closures    map[string]struct{}
	earlyCloses map[string]struct{}
}

// New builds a Calendar from a holiday table.
func New(table HolidayTable) *Calendar {
	c := &Calendar{
		version:     table.Version,
		closures:    make(map[string]struct{}, len(table.Closures)),
		earlyCloses: make(map[string]struct{}, len(table.EarlyCloses)),
	}
	for _, d := range table.Closures {
		c.closures[dateKey(d)] = struct{}{}
	}
	for _, d := range table.EarlyCloses {
		c.earlyCloses[dateKey(d)] = struct{}{}
	}
	return c
}

// Default returns a Calendar loaded with the built-in NYSE table.
func Default() *Calendar {
	return New(DefaultHolidayTable())
}

// Version returns the tag of the holiday table this calendar was built from.
func (c *Calendar) Version() string {
	return c.version
}

// IsTradingDay reports whether the market is open on date, for either a
// regular or an early-close session.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.closures[dateKey(date)]
	return !closed
}

// IsEarlyCloseDay reports whether date is a shortened session.
func (c *Calendar) IsEarlyCloseDay(date time.Time) bool {
	if !c.IsTradingDay(date) {
		return false
	}
	_, early := c.earlyCloses[dateKey(date)]
	return early
}

// AddTradingDays returns the date n trading days after date, skipping
// weekends and closures. With n=0 it returns date unchanged only when date
// is itself a trading day; otherwise it advances to the next trading day.
func (c *Calendar) AddTradingDays(date time.Time, n int) time.Time {
	if n < 0 {
		n = 0
	}
	current := midnight(date)
	if n == 0 && c.IsTradingDay(current) {
		return current
	}
	remaining := n
	if remaining == 0 {
		remaining = 1
	}
	for remaining > 0 {
		current = current.AddDate(0, 0, 1)
		if c.IsTradingDay(current) {
			remaining--
		}
	}
	return current
}

// CountTradingDays counts trading days after from, up to and including
// until. It returns 0 when until is not after from.
func (c *Calendar) CountTradingDays(from, until time.Time) int {
	start := midnight(from)
	end := midnight(until)
	if !end.After(start) {
		return 0
	}
	count := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			count++
		}
	}
	return count
}

// DaysToExit returns the trading days between the caller-supplied now and
// exitDate, clamped to zero once the exit date has passed. exitDate is
// expected to already be calendar-aligned by AddTradingDays; a misaligned
// date is never silently re-aligned here.
func (c *Calendar) DaysToExit(now, exitDate time.Time) int {
	return c.CountTradingDays(now, exitDate)
}

// UrgencyFor buckets a days-to-exit value for the dashboard.
func UrgencyFor(daysToExit int) ExitUrgency {
	switch {
	case daysToExit <= 1:
		return UrgencyUrgent
	case daysToExit == 2:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}
