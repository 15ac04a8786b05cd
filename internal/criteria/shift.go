package criteria

import (
	"errors"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/timefmt"
)

type ShiftTarget string

const (
	ShiftDeparture ShiftTarget = "departure"
	ShiftReturn    ShiftTarget = "return"
)

var ErrNoReturnDate = errors.New("criteria has no return date to shift")

// Shift moves a YYYY-MM-DD date by days, rolling over months and years.
func Shift(date string, days int) (string, error) {
	t, err := timefmt.ParseDate(date)
	if err != nil {
		return "", models.NewValidationError(models.ErrCodeInvalidDateRange, "date is missing or invalid")
	}
	return t.AddDate(0, 0, days).Format(timefmt.DateLayout), nil
}

// ShiftCriteria derives criteria for a previous/next day query. Everything
// but the targeted date is unchanged, and the result is re-validated.
func ShiftCriteria(c models.SearchCriteria, target ShiftTarget, days int) (models.SearchCriteria, error) {
	out := Clone(c)

	switch target {
	case ShiftReturn:
		if out.ReturnDate == nil {
			return models.SearchCriteria{}, ErrNoReturnDate
		}
		shifted, err := Shift(*out.ReturnDate, days)
		if err != nil {
			return models.SearchCriteria{}, err
		}
		out.ReturnDate = &shifted

	default:
		shifted, err := Shift(out.DepartureDate, days)
		if err != nil {
			return models.SearchCriteria{}, err
		}
		out.DepartureDate = shifted
		if out.TripType == models.TripMultiLeg && len(out.Legs) > 0 {
			out.Legs[0].Date = shifted
		}
	}

	if err := Validate(out); err != nil {
		return models.SearchCriteria{}, err
	}
	return out, nil
}
