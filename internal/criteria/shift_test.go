package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

func TestShift(t *testing.T) {
	tests := []struct {
		date string
		days int
		want string
	}{
		{"2025-01-31", 1, "2025-02-01"},
		{"2025-03-01", -1, "2025-02-28"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2025-12-31", 1, "2026-01-01"},
		{"2026-01-01", -1, "2025-12-31"},
		{"2025-06-15", 0, "2025-06-15"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got, err := Shift(tt.date, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Shift("31/01/2025", 1)
	assert.Error(t, err)
}

func TestShiftCriteria(t *testing.T) {
	c, err := Normalize(validRaw())
	require.NoError(t, err)

	next, err := ShiftCriteria(c, ShiftDeparture, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", next.DepartureDate)
	assert.Equal(t, "2025-06-10", *next.ReturnDate)
	assert.Equal(t, "2025-06-01", c.DepartureDate, "input criteria untouched")

	ret, err := ShiftCriteria(c, ShiftReturn, -1)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-09", *ret.ReturnDate)
	assert.Equal(t, "2025-06-10", *c.ReturnDate)

	_, err = ShiftCriteria(c, ShiftDeparture, 10)
	assert.Equal(t, models.ErrCodeInvalidDateRange, errorCode(t, err))

	oneWay, err := Normalize(models.RawCriteria{From: "DAC", To: "CXB", DepartureDate: "2025-06-01"})
	require.NoError(t, err)
	_, err = ShiftCriteria(oneWay, ShiftReturn, 1)
	assert.ErrorIs(t, err, ErrNoReturnDate)
}
