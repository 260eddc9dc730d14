package leave

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRange    = errors.New("end date before start date")
	ErrInvalidHalfDays = errors.New("invalid half-day range")
)

var half = decimal.NewFromFloat(0.5)

// CalculateDays returns the inclusive calendar day count between the dates
// of start and end. Times of day are ignored.
func CalculateDays(start, end time.Time) (decimal.Decimal, error) {
	s, e := dateOnly(start), dateOnly(end)
	if e.Before(s) {
		return decimal.Zero, ErrInvalidRange
	}
	days := int64(e.Sub(s).Hours()/24) + 1
	return decimal.NewFromInt(days), nil
}

// CalculateRequestDays returns inclusive leave day count with optional half-day start/end boundaries.
func CalculateRequestDays(start, end time.Time, startHalf, endHalf bool) (decimal.Decimal, error) {
	days, err := CalculateDays(start, end)
	if err != nil {
		return decimal.Zero, err
	}

	if dateOnly(start).Equal(dateOnly(end)) && startHalf && endHalf {
		return decimal.Zero, ErrInvalidHalfDays
	}
	if startHalf {
		days = days.Sub(half)
	}
	if endHalf {
		days = days.Sub(half)
	}
	if !days.IsPositive() {
		return decimal.Zero, ErrInvalidHalfDays
	}
	return days, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
