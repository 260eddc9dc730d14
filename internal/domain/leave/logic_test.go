package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDays(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	days, err := CalculateDays(start, start)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(1)))

	days, err = CalculateDays(start, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(3)))
}

func TestCalculateDaysIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2025, 3, 29, 18, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 6, 0, 0, 0, time.UTC)

	days, err := CalculateDays(start, end)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(3)), "got %s", days)
}

func TestCalculateDaysInvalid(t *testing.T) {
	_, err := CalculateDays(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCalculateRequestDaysHalfDays(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)

	days, err := CalculateRequestDays(start, end, true, false)
	require.NoError(t, err)
	assert.Equal(t, "2.5", days.String())

	days, err = CalculateRequestDays(start, end, true, true)
	require.NoError(t, err)
	assert.Equal(t, "2", days.String())

	days, err = CalculateRequestDays(start, start, true, false)
	require.NoError(t, err)
	assert.Equal(t, "0.5", days.String())

	_, err = CalculateRequestDays(start, start, true, true)
	assert.ErrorIs(t, err, ErrInvalidHalfDays)
}
