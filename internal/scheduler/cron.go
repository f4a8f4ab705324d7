package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var standardCron = regexp.MustCompile(`^(((\d+,)+\d+|(\d+(\/|-)\d+)|\d+|\*) ?){5,7}$`)

// Schedule is a parsed "@every <duration>" or named (@hourly, @daily,
// @weekly, @monthly, @yearly) expression.
type Schedule struct {
	expr  string
	every time.Duration
}

// Parse validates expr. Standard five-field cron is not supported.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)

	switch expr {
	case "@yearly", "@annually", "@monthly", "@weekly", "@daily", "@hourly":
		return Schedule{expr: expr}, nil
	}

	if strings.HasPrefix(expr, "@every ") {
		d, err := parseEvery(strings.TrimPrefix(expr, "@every "))
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{expr: expr, every: d}, nil
	}

	if standardCron.MatchString(expr) {
		return Schedule{}, fmt.Errorf("standard cron expressions not supported, use @every or named expressions: %q", expr)
	}
	return Schedule{}, fmt.Errorf("invalid schedule expression %q", expr)
}

// MustParse is Parse for expressions known at compile time.
func MustParse(expr string) Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schedule) String() string { return s.expr }

// Next returns the first run time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.every > 0 {
		return t.Add(s.every)
	}
	switch s.expr {
	case "@yearly", "@annually":
		return time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, t.Location())
	case "@monthly":
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	case "@weekly":
		// Next Sunday at midnight.
		days := (7 - int(t.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
	case "@daily":
		return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	case "@hourly":
		return t.Add(time.Hour).Truncate(time.Hour)
	}
	return t.Add(time.Hour)
}

// parseEvery accepts time.ParseDuration syntax plus a whole-day "Nd" form.
func parseEvery(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	var d time.Duration
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", v)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", v)
		}
		d = parsed
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", v)
	}
	return d, nil
}
