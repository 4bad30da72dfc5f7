package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeNow is swapped out in tests to pin relative expressions.
var timeNow = time.Now

// dateLayouts are tried most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// temporalWords are tokens that may continue a temporal phrase. The
// parser uses this to know where a FROM/TO expression ends.
var temporalWords = map[string]bool{
	"ago": true, "in": true, "last": true, "next": true, "this": true,
	"now": true, "today": true, "yesterday": true, "tomorrow": true,
	"second": true, "seconds": true, "minute": true, "minutes": true,
	"hour": true, "hours": true, "day": true, "days": true,
	"week": true, "weeks": true, "month": true, "months": true,
	"year": true, "years": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

var dayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseTemporalExpression resolves a date literal or natural phrase to an
// instant. Relative phrases resolve against timeNow.
func ParseTemporalExpression(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, NewParseError(ErrorKindTemporal, "empty time expression")
	}

	now := timeNow()

	switch strings.ToLower(expr) {
	case "now":
		return now, nil
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), nil
	case "tomorrow":
		return startOfDay(now.AddDate(0, 0, 1)), nil
	case "last week":
		return now.AddDate(0, 0, -7), nil
	case "next week":
		return now.AddDate(0, 0, 7), nil
	case "last month":
		return now.AddDate(0, -1, 0), nil
	case "next month":
		return now.AddDate(0, 1, 0), nil
	case "last year":
		return now.AddDate(-1, 0, 0), nil
	case "next year":
		return now.AddDate(1, 0, 0), nil
	}

	if rest, ok := strings.CutSuffix(expr, " ago"); ok {
		d, err := parseRelativeDuration(rest)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-d), nil
	}
	if rest, ok := strings.CutPrefix(expr, "in "); ok {
		d, err := parseRelativeDuration(rest)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d), nil
	}

	if t, ok := parseNamedDay(expr, now); ok {
		return t, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, expr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, NewParseError(ErrorKindTemporal,
		fmt.Sprintf("cannot read %q as a point in time", expr)).
		WithSuggestion("use a date like 2024-01-15 or a phrase like '3 days ago'")
}

// parseRelativeDuration reads "NUMBER UNIT" phrases like "3 days".
func parseRelativeDuration(expr string) (time.Duration, error) {
	parts := strings.Fields(strings.TrimSpace(expr))
	if len(parts) != 2 {
		return 0, NewParseError(ErrorKindTemporal,
			fmt.Sprintf("cannot read %q as a duration", expr)).
			WithSuggestion("durations look like '3 days' or '2 weeks'")
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 {
		return 0, NewParseError(ErrorKindTemporal,
			fmt.Sprintf("%q is not a duration count", parts[0]))
	}

	switch strings.ToLower(parts[1]) {
	case "second", "seconds":
		return time.Duration(n) * time.Second, nil
	case "minute", "minutes":
		return time.Duration(n) * time.Minute, nil
	case "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	case "week", "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "month", "months":
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	case "year", "years":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	}
	return 0, NewParseError(ErrorKindTemporal,
		fmt.Sprintf("unknown duration unit %q", parts[1]))
}

// parseNamedDay reads "last friday", "next monday", "this wednesday".
func parseNamedDay(expr string, base time.Time) (time.Time, bool) {
	parts := strings.Fields(strings.ToLower(expr))
	if len(parts) != 2 {
		return time.Time{}, false
	}
	target, ok := dayNames[parts[1]]
	if !ok {
		return time.Time{}, false
	}

	delta := int(target - base.Weekday())
	switch parts[0] {
	case "last":
		if delta >= 0 {
			delta -= 7
		}
	case "next":
		if delta <= 0 {
			delta += 7
		}
	case "this":
	default:
		return time.Time{}, false
	}
	return startOfDay(base.AddDate(0, 0, delta)), true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// isTemporalContinuation reports whether a token can extend the temporal
// phrase being collected.
func isTemporalContinuation(tok Token) bool {
	switch tok.Kind {
	case TokenNumber:
		return true
	case TokenIdent:
		return temporalWords[strings.ToLower(tok.Text)]
	}
	return false
}
