package sessionclock

import (
	"fmt"
	"time"
)

// Clock classifies timestamps against the configured market session:
// in-session or not, entry allowed or blocked, and end-of-day boundary.
type Clock struct {
	loc        *time.Location
	openMin    int // minutes after midnight, market local time
	closeMin   int
	entryStart int
}

func New(tz, sessionOpen, sessionClose string, noTradeFirstMinutes int) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load session timezone %q: %w", tz, err)
	}
	openMin, err := parseClockTime(sessionOpen)
	if err != nil {
		return nil, fmt.Errorf("session_open: %w", err)
	}
	closeMin, err := parseClockTime(sessionClose)
	if err != nil {
		return nil, fmt.Errorf("session_close: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("session_close %s must be after session_open %s", sessionClose, sessionOpen)
	}
	return &Clock{
		loc:        loc,
		openMin:    openMin,
		closeMin:   closeMin,
		entryStart: openMin + noTradeFirstMinutes,
	}, nil
}

func parseClockTime(s string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}

// Localize converts a timestamp to the market timezone. Naive timestamps are
// assumed UTC.
func (c *Clock) Localize(t time.Time) time.Time {
	return t.In(c.loc)
}

func (c *Clock) minutesOfDay(t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute()
}

// InSession reports whether the timestamp lies within session hours.
func (c *Clock) InSession(t time.Time) bool {
	m := c.minutesOfDay(t)
	return m >= c.openMin && m < c.closeMin
}

// EntryAllowed reports whether new entries may open, i.e. the initial
// no-trade window has passed and the session has not closed.
func (c *Clock) EntryAllowed(t time.Time) bool {
	m := c.minutesOfDay(t)
	return m >= c.entryStart && m < c.closeMin
}

// IsEODBar reports whether a bar starting at t is the session's final bar:
// the next bar would open at or after session close.
func (c *Clock) IsEODBar(t time.Time, barDuration time.Duration) bool {
	m := c.minutesOfDay(t) + int(barDuration.Minutes())
	return m >= c.closeMin
}

// TradingDate returns the civil date of the timestamp in the market timezone,
// normalized to a UTC midnight so date arithmetic is exact.
func (c *Clock) TradingDate(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day difference between two trading dates.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
