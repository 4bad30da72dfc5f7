package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pinClock fixes timeNow so relative expressions resolve deterministically.
func pinClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}

func TestParseTemporalExpression(t *testing.T) {
	// A Saturday afternoon.
	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	pinClock(t, now)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"now", "now", now},
		{"today", "today", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"yesterday", "yesterday", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"tomorrow", "tomorrow", time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},
		{"uppercase tomorrow", "TOMORROW", time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)},

		{"last week", "last week", now.AddDate(0, 0, -7)},
		{"next week", "next week", now.AddDate(0, 0, 7)},
		{"last month", "last month", now.AddDate(0, -1, 0)},
		{"next year", "next year", now.AddDate(1, 0, 0)},

		{"days ago", "3 days ago", now.Add(-3 * 24 * time.Hour)},
		{"minutes ago", "90 minutes ago", now.Add(-90 * time.Minute)},
		{"in weeks", "in 2 weeks", now.Add(2 * 7 * 24 * time.Hour)},
		{"in a year", "in 1 year", now.Add(365 * 24 * time.Hour)},

		// The pinned now is a Saturday.
		{"last friday", "last friday", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"next monday", "next monday", time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)},
		{"this saturday", "this saturday", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},

		{"iso date", "2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"iso datetime", "2024-01-01T14:30:00Z", time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)},
		{"iso with millis", "2023-02-14T09:15:30.123Z", time.Date(2023, 2, 14, 9, 15, 30, 123000000, time.UTC)},
		{"date with minutes", "2024-01-02 15:04", time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)},
		{"slash date", "2024/01/02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"leap day", "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTemporalExpression(tt.expr)
			require.NoError(t, err)
			assert.WithinDuration(t, tt.want, got, 0, "expression %q", tt.expr)
		})
	}
}

func TestParseTemporalExpressionErrors(t *testing.T) {
	tests := []struct {
		name        string
		expr        string
		errContains string
	}{
		{"empty", "", "empty time expression"},
		{"not a date", "not-a-date", "cannot read"},
		{"impossible date", "2024-02-30", "cannot read"},
		{"word count ago", "five days ago", "not a duration count"},
		{"negative count", "-3 days ago", "not a duration count"},
		{"unknown unit", "3 parsecs ago", "unknown duration unit"},
		{"unitless in", "in 3", "as a duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemporalExpression(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)

			pe, ok := IsParseError(err)
			require.True(t, ok)
			assert.Equal(t, ErrorKindTemporal, pe.Kind)
		})
	}
}

func TestParseRelativeDuration(t *testing.T) {
	tests := []struct {
		expr string
		want time.Duration
	}{
		{"10 seconds", 10 * time.Second},
		{"45 minutes", 45 * time.Minute},
		{"3 hours", 3 * time.Hour},
		{"1 day", 24 * time.Hour},
		{"2 weeks", 2 * 7 * 24 * time.Hour},
		{"6 months", 6 * 30 * 24 * time.Hour},
		{"1 year", 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		d, err := parseRelativeDuration(tt.expr)
		require.NoError(t, err, "duration %q", tt.expr)
		assert.Equal(t, tt.want, d, "duration %q", tt.expr)
	}

	_, err := parseRelativeDuration("3")
	assert.Error(t, err)
	_, err = parseRelativeDuration("3 days ahead")
	assert.Error(t, err)
}

func TestIsTemporalContinuation(t *testing.T) {
	assert.True(t, isTemporalContinuation(Token{Kind: TokenNumber, Text: "2024-01-01"}))
	assert.True(t, isTemporalContinuation(Token{Kind: TokenIdent, Text: "YESTERDAY"}))
	assert.True(t, isTemporalContinuation(Token{Kind: TokenIdent, Text: "AGO"}))
	assert.False(t, isTemporalContinuation(Token{Kind: TokenIdent, Text: "ALICE"}))
	assert.False(t, isTemporalContinuation(Token{Kind: TokenKeyword, Text: "TO"}))
	assert.False(t, isTemporalContinuation(Token{Kind: TokenQuestion, Text: "?"}))
}
