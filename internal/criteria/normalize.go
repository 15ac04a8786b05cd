// Package criteria turns loosely typed search input into validated
// SearchCriteria and derives shifted criteria for day navigation.
package criteria

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/timefmt"
)

const DefaultCabin = "ECONOMY"

var (
	adultsRe   = regexp.MustCompile(`(?i)(\d+)\s*adult`)
	childrenRe = regexp.MustCompile(`(?i)(\d+)\s*child`)
	infantsRe  = regexp.MustCompile(`(?i)(\d+)\s*infant`)
)

// Normalize builds canonical criteria from raw input. Only the first
// violation is reported, checked in the order locations, dates, passengers.
func Normalize(raw models.RawCriteria) (models.SearchCriteria, error) {
	c := Coerce(raw)
	if err := Validate(c); err != nil {
		return models.SearchCriteria{}, err
	}
	return c, nil
}

// Coerce applies the same parsing and defaults as Normalize without
// rejecting anything. It is meant for reading stored data whose schema may
// predate the current one.
func Coerce(raw models.RawCriteria) models.SearchCriteria {
	c := models.SearchCriteria{
		TripType:          parseTripType(raw.TripType, raw.ReturnDate),
		Origin:            ExtractCode(raw.From),
		Destination:       ExtractCode(raw.To),
		DepartureDate:     strings.TrimSpace(raw.DepartureDate),
		Passengers:        parsePassengers(raw),
		CabinClass:        parseCabin(raw.Cabin),
		DirectOnly:        parseBool(raw.Direct),
		Markup:            parseMarkup(raw.Markup, raw.MarkupType),
		PreferredCarriers: parseCarriers(raw.Carriers),
	}

	if code := strings.TrimSpace(raw.CorporateCode); code != "" {
		c.CorporateCode = &code
	}

	switch c.TripType {
	case models.TripRoundTrip:
		if rd := strings.TrimSpace(raw.ReturnDate); rd != "" {
			c.ReturnDate = &rd
		}
	case models.TripMultiLeg:
		for _, l := range raw.Legs {
			c.Legs = append(c.Legs, models.Leg{
				Origin:      ExtractCode(l.Origin),
				Destination: ExtractCode(l.Destination),
				Date:        strings.TrimSpace(l.Date),
			})
		}
		if len(c.Legs) > 0 {
			c.Origin = c.Legs[0].Origin
			c.Destination = c.Legs[len(c.Legs)-1].Destination
			c.DepartureDate = c.Legs[0].Date
		}
	}

	return c
}

// Validate checks the rules for already typed criteria.
func Validate(c models.SearchCriteria) error {
	if err := validateLocations(c); err != nil {
		return err
	}
	if err := validateDates(c); err != nil {
		return err
	}
	return validatePassengers(c.Passengers)
}

func validateLocations(c models.SearchCriteria) error {
	if c.TripType == models.TripMultiLeg {
		if len(c.Legs) < 2 {
			return models.NewValidationError(models.ErrCodeInvalidLocation, "multi-leg search needs at least 2 legs")
		}
		for i, l := range c.Legs {
			if l.Origin == "" || l.Destination == "" {
				return models.NewValidationError(models.ErrCodeInvalidLocation, "leg "+strconv.Itoa(i+1)+" is missing a location")
			}
			if strings.EqualFold(l.Origin, l.Destination) {
				return models.NewValidationError(models.ErrCodeInvalidLocation, "leg "+strconv.Itoa(i+1)+" origin and destination must differ")
			}
		}
		return nil
	}

	if c.Origin == "" {
		return models.NewValidationError(models.ErrCodeInvalidLocation, "origin is required")
	}
	if c.Destination == "" {
		return models.NewValidationError(models.ErrCodeInvalidLocation, "destination is required")
	}
	if strings.EqualFold(c.Origin, c.Destination) {
		return models.NewValidationError(models.ErrCodeInvalidLocation, "origin and destination must differ")
	}
	return nil
}

func validateDates(c models.SearchCriteria) error {
	if c.TripType == models.TripMultiLeg {
		prev := ""
		for i, l := range c.Legs {
			if _, err := timefmt.ParseDate(l.Date); err != nil {
				return models.NewValidationError(models.ErrCodeInvalidDateRange, "leg "+strconv.Itoa(i+1)+" date is missing or invalid")
			}
			if prev != "" && l.Date < prev {
				return models.NewValidationError(models.ErrCodeInvalidDateRange, "leg "+strconv.Itoa(i+1)+" departs before the previous leg")
			}
			prev = l.Date
		}
		return nil
	}

	dep, err := timefmt.ParseDate(c.DepartureDate)
	if err != nil {
		return models.NewValidationError(models.ErrCodeInvalidDateRange, "departure date is missing or invalid")
	}

	if c.TripType != models.TripRoundTrip {
		return nil
	}

	if c.ReturnDate == nil || *c.ReturnDate == "" {
		return models.NewValidationError(models.ErrCodeInvalidDateRange, "return date is required for round trips")
	}
	ret, err := timefmt.ParseDate(*c.ReturnDate)
	if err != nil {
		return models.NewValidationError(models.ErrCodeInvalidDateRange, "return date is invalid")
	}
	if ret.Before(dep) {
		return models.NewValidationError(models.ErrCodeInvalidDateRange, "return date precedes departure date")
	}
	return nil
}

func validatePassengers(p models.Passengers) error {
	if p.Total() == 0 {
		return models.NewValidationError(models.ErrCodePassengerConstraint, "at least one passenger is required")
	}
	if p.Adults < 1 || p.Children < 0 || p.Infants < 0 {
		return models.NewValidationError(models.ErrCodePassengerConstraint, "at least one adult is required")
	}
	if p.Infants > p.Adults {
		return models.NewValidationError(models.ErrCodePassengerConstraint, "infants cannot outnumber adults")
	}
	return nil
}

// ExtractCode reduces "DAC - Dhaka, Hazrat Shahjalal Intl" to "DAC".
func ExtractCode(location string) string {
	code, _, _ := strings.Cut(location, " - ")
	return strings.ToUpper(strings.TrimSpace(code))
}

func parseTripType(s, returnDate string) models.TripType {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "oneway":
		return models.TripOneWay
	case "roundtrip", "return":
		return models.TripRoundTrip
	case "multileg", "multicity":
		return models.TripMultiLeg
	}
	if strings.TrimSpace(returnDate) != "" {
		return models.TripRoundTrip
	}
	return models.TripOneWay
}

func parsePassengers(raw models.RawCriteria) models.Passengers {
	if text := strings.TrimSpace(raw.Passengers); text != "" {
		return models.Passengers{
			Adults:   matchCount(adultsRe, text, 1),
			Children: matchCount(childrenRe, text, 0),
			Infants:  matchCount(infantsRe, text, 0),
		}
	}

	return models.Passengers{
		Adults:   parseInt(raw.Adults, 1),
		Children: parseInt(raw.Children, 0),
		Infants:  parseInt(raw.Infants, 0),
	}
}

func matchCount(re *regexp.Regexp, text string, def int) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	return parseInt(m[1], def)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		return int(f)
	}
	return n
}

func parseCabin(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultCabin
	}
	return strings.ToUpper(strings.Join(strings.Fields(s), "_"))
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func parseMarkup(amount, kind string) models.Markup {
	m := models.Markup{Type: models.MarkupFixed}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "percentage", "percent", "%":
		m.Type = models.MarkupPercentage
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return m
	}
	m.Amount = v
	return m
}

func parseCarriers(values []string) []string {
	seen := map[string]bool{}
	var result []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			code := strings.ToUpper(strings.TrimSpace(part))
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			result = append(result, code)
		}
	}
	return result
}

// Clone deep-copies criteria so callers can derive variants safely.
func Clone(c models.SearchCriteria) models.SearchCriteria {
	out := c
	if c.ReturnDate != nil {
		rd := *c.ReturnDate
		out.ReturnDate = &rd
	}
	if c.CorporateCode != nil {
		cc := *c.CorporateCode
		out.CorporateCode = &cc
	}
	if c.Legs != nil {
		out.Legs = append([]models.Leg(nil), c.Legs...)
	}
	if c.PreferredCarriers != nil {
		out.PreferredCarriers = append([]string(nil), c.PreferredCarriers...)
	}
	return out
}
