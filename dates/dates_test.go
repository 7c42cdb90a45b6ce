package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func TestParseMonth(t *testing.T) {
	t.Run("named month uses current year", func(t *testing.T) {
		start, end, ok := ParseMonth("January", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("abbreviated month", func(t *testing.T) {
		start, _, ok := ParseMonth("sept", now)
		require.True(t, ok)
		assert.Equal(t, time.September, start.Month())
	})

	t.Run("this month", func(t *testing.T) {
		start, end, ok := ParseMonth("this month", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("last month", func(t *testing.T) {
		start, end, ok := ParseMonth("last month", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("last month across year boundary", func(t *testing.T) {
		jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
		start, end, ok := ParseMonth("last month", jan)
		require.True(t, ok)
		assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("month year", func(t *testing.T) {
		start, end, ok := ParseMonth("Feb 2023", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("iso format", func(t *testing.T) {
		start, end, ok := ParseMonth("2023-12", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("december wraps to next year", func(t *testing.T) {
		_, end, ok := ParseMonth("December", now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("unparseable", func(t *testing.T) {
		for _, expr := range []string{"", "someday", "13-2024", "2024-13", "soon 2024"} {
			_, _, ok := ParseMonth(expr, now)
			assert.False(t, ok, "expr %q", expr)
		}
	})
}
