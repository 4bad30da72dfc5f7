package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIntervalContains(t *testing.T) {
	iv := Span(date(2024, time.January, 1), date(2024, time.June, 1))

	assert.True(t, iv.Contains(date(2024, time.January, 1)), "half-open interval includes its start")
	assert.True(t, iv.Contains(date(2024, time.March, 15)))
	assert.False(t, iv.Contains(date(2024, time.June, 1)), "half-open interval excludes its end")
	assert.False(t, iv.Contains(date(2023, time.December, 31)))
	assert.False(t, iv.Contains(date(2024, time.July, 1)))
}

func TestIntervalContainsUnbounded(t *testing.T) {
	from := From(date(2024, time.January, 1))
	assert.True(t, from.Contains(date(2030, time.January, 1)))
	assert.False(t, from.Contains(date(2023, time.January, 1)))

	until := Until(date(2024, time.January, 1))
	assert.True(t, until.Contains(date(1970, time.January, 1)))
	assert.False(t, until.Contains(date(2024, time.January, 1)))

	assert.True(t, Always.Contains(date(1900, time.January, 1)))
	assert.True(t, Always.Contains(date(2100, time.January, 1)))
}

func TestIntervalOverlaps(t *testing.T) {
	jan := date(2024, time.January, 1)
	mar := date(2024, time.March, 1)
	jun := date(2024, time.June, 1)
	sep := date(2024, time.September, 1)

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Span(jan, mar), Span(jun, sep), false},
		{"touching boundaries are disjoint", Span(jan, mar), Span(mar, jun), false},
		{"partial overlap", Span(jan, jun), Span(mar, sep), true},
		{"nested", Span(jan, sep), Span(mar, jun), true},
		{"identical", Span(jan, mar), Span(jan, mar), true},
		{"unbounded end reaches later span", From(jan), Span(jun, sep), true},
		{"unbounded start reaches earlier span", Until(jun), Span(jan, mar), true},
		{"always overlaps anything", Always, Span(jan, mar), true},
		{"two unbounded", From(jan), Until(mar), true},
		{"unbounded halves touching", Until(mar), From(mar), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap is symmetric")
		})
	}
}

func TestIntervalIntersect(t *testing.T) {
	jan := date(2024, time.January, 1)
	mar := date(2024, time.March, 1)
	jun := date(2024, time.June, 1)
	sep := date(2024, time.September, 1)

	got, ok := Span(jan, jun).Intersect(Span(mar, sep))
	require.True(t, ok)
	assert.Equal(t, Span(mar, jun), got)

	got, ok = From(mar).Intersect(Until(jun))
	require.True(t, ok)
	assert.Equal(t, Span(mar, jun), got)

	got, ok = Always.Intersect(Span(jan, mar))
	require.True(t, ok)
	assert.Equal(t, Span(jan, mar), got)

	_, ok = Span(jan, mar).Intersect(Span(mar, jun))
	assert.False(t, ok, "touching boundaries share no instant")
}

func TestIntervalValidate(t *testing.T) {
	jan := date(2024, time.January, 1)
	jun := date(2024, time.June, 1)

	assert.NoError(t, Span(jan, jun).Validate())
	assert.NoError(t, From(jan).Validate())
	assert.NoError(t, Until(jun).Validate())
	assert.NoError(t, Always.Validate())

	err := Span(jan, jan).Validate()
	require.Error(t, err, "zero-width interval contains nothing")
	assert.True(t, errors.Is(err, errors.ErrInvalidInterval))

	err = Span(jun, jan).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInterval))
}

func TestIntervalString(t *testing.T) {
	jan := date(2024, time.January, 1)
	jun := date(2024, time.June, 1)

	assert.Equal(t, "[2024-01-01T00:00:00Z, 2024-06-01T00:00:00Z)", Span(jan, jun).String())
	assert.Equal(t, "[2024-01-01T00:00:00Z, +inf)", From(jan).String())
	assert.Equal(t, "[-inf, 2024-06-01T00:00:00Z)", Until(jun).String())
	assert.Equal(t, "[-inf, +inf)", Always.String())
}
