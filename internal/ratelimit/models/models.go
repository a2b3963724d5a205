package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is the unit of a fixed rate-limit window.
type Period string

const (
	PeriodSecond Period = "second"
	PeriodMinute Period = "minute"
	PeriodHour   Period = "hour"
	PeriodDay    Period = "day"
)

// ParsePeriod validates a period unit name.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.TrimSpace(s))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown rate period %q: must be second, minute, hour or day", s)
	}
	return p, nil
}

func (p Period) IsValid() bool {
	switch p {
	case PeriodSecond, PeriodMinute, PeriodHour, PeriodDay:
		return true
	}
	return false
}

// Duration returns the window length. Invalid periods report zero.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodSecond:
		return time.Second
	case PeriodMinute:
		return time.Minute
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	}
	return 0
}

func (p Period) String() string {
	return string(p)
}

// Rate is a parsed limit such as "5/minute": Count requests per Period.
type Rate struct {
	Count  int
	Period Period
}

// ParseRate parses "<count>/<period>". Count must be positive.
func ParseRate(s string) (Rate, error) {
	countPart, periodPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate %q: expected <count>/<period>", s)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil || count <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: count must be a positive integer", s)
	}
	period, err := ParsePeriod(periodPart)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return Rate{Count: count, Period: period}, nil
}

// MustParseRate is ParseRate for static defaults. It panics on error.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Period)
}

// Window returns the period length.
func (r Rate) Window() time.Duration {
	return r.Period.Duration()
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Exempt is set when the path bypasses limiting; the other fields are zero.
	Exempt    bool
	Rate      Rate
	Limit     int
	Remaining int
	// RetryAfter is in seconds and only set on denial.
	RetryAfter int
	ResetAt    time.Time
}

// WindowState is what a counter store reports after an admission attempt or a peek.
type WindowState struct {
	Count    int
	Admitted bool
	TTL      time.Duration
}

// RetryAfterSeconds rounds a remaining TTL up to whole seconds, capped at the window length.
func RetryAfterSeconds(ttl, window time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	if ttl > window {
		ttl = window
	}
	secs := int(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}
