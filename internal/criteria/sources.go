package criteria

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

// FromQuery reads criteria from URL query parameters. Multi-leg searches
// pass each leg as leg=FROM,TO,YYYY-MM-DD.
func FromQuery(q url.Values) models.RawCriteria {
	raw := models.RawCriteria{
		From:          first(q, "from", "origin"),
		To:            first(q, "to", "destination"),
		DepartureDate: first(q, "departureDate", "departure_date", "date"),
		ReturnDate:    first(q, "returnDate", "return_date"),
		TripType:      first(q, "tripType", "trip_type"),
		Passengers:    q.Get("passengers"),
		Adults:        q.Get("adults"),
		Children:      q.Get("children"),
		Infants:       q.Get("infants"),
		Cabin:         first(q, "cabin", "cabinClass", "cabin_class"),
		Direct:        first(q, "direct", "directOnly", "direct_only"),
		Markup:        q.Get("markup"),
		MarkupType:    first(q, "markupType", "markup_type"),
		CorporateCode: first(q, "corporateCode", "corporate_code"),
		Carriers:      q["carriers"],
	}

	for _, leg := range q["leg"] {
		parts := strings.SplitN(leg, ",", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		raw.Legs = append(raw.Legs, models.RawLeg{Origin: parts[0], Destination: parts[1], Date: parts[2]})
	}

	return raw
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// FromJSON reads criteria from a JSON object of unknown shape, such as a
// request body or a blob persisted by an older release. Fields of the wrong
// type are skipped rather than failing the whole document.
func FromJSON(data []byte) (models.RawCriteria, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.RawCriteria{}, err
	}
	return FromMap(doc), nil
}

func FromMap(doc map[string]any) models.RawCriteria {
	raw := models.RawCriteria{
		From:          lookup(doc, "from", "origin"),
		To:            lookup(doc, "to", "destination"),
		DepartureDate: lookup(doc, "departureDate", "departure_date", "date"),
		ReturnDate:    lookup(doc, "returnDate", "return_date"),
		TripType:      lookup(doc, "tripType", "trip_type"),
		Adults:        lookup(doc, "adults"),
		Children:      lookup(doc, "children"),
		Infants:       lookup(doc, "infants"),
		Cabin:         lookup(doc, "cabin", "cabinClass", "cabin_class"),
		Direct:        lookup(doc, "direct", "directOnly", "direct_only"),
		MarkupType:    lookup(doc, "markupType", "markup_type"),
		CorporateCode: lookup(doc, "corporateCode", "corporate_code"),
	}

	switch p := doc["passengers"].(type) {
	case string:
		raw.Passengers = p
	case map[string]any:
		raw.Adults = lookup(p, "adults")
		raw.Children = lookup(p, "children")
		raw.Infants = lookup(p, "infants")
	}

	switch m := doc["markup"].(type) {
	case map[string]any:
		raw.Markup = lookup(m, "amount")
		if t := lookup(m, "type"); t != "" {
			raw.MarkupType = t
		}
	default:
		raw.Markup = scalar(m)
	}

	for _, key := range []string{"carriers", "preferredCarriers", "preferred_carriers"} {
		switch v := doc[key].(type) {
		case string:
			raw.Carriers = append(raw.Carriers, v)
		case []any:
			for _, item := range v {
				if s := scalar(item); s != "" {
					raw.Carriers = append(raw.Carriers, s)
				}
			}
		}
	}

	if legs, ok := doc["legs"].([]any); ok {
		for _, item := range legs {
			leg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			raw.Legs = append(raw.Legs, models.RawLeg{
				Origin:      lookup(leg, "from", "origin"),
				Destination: lookup(leg, "to", "destination"),
				Date:        lookup(leg, "date", "departureDate", "departure_date"),
			})
		}
	}

	return raw
}

func lookup(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := scalar(doc[k]); v != "" {
			return v
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// ToRaw renders typed criteria back into raw form, so stored criteria can be
// re-validated through Normalize.
func ToRaw(c models.SearchCriteria) models.RawCriteria {
	raw := models.RawCriteria{
		From:          c.Origin,
		To:            c.Destination,
		DepartureDate: c.DepartureDate,
		ReturnDate:    c.ReturnDateValue(),
		TripType:      string(c.TripType),
		Adults:        strconv.Itoa(c.Passengers.Adults),
		Children:      strconv.Itoa(c.Passengers.Children),
		Infants:       strconv.Itoa(c.Passengers.Infants),
		Cabin:         c.CabinClass,
		Direct:        strconv.FormatBool(c.DirectOnly),
		Markup:        strconv.FormatFloat(c.Markup.Amount, 'f', -1, 64),
		MarkupType:    string(c.Markup.Type),
		Carriers:      c.PreferredCarriers,
	}
	if c.CorporateCode != nil {
		raw.CorporateCode = *c.CorporateCode
	}
	for _, l := range c.Legs {
		raw.Legs = append(raw.Legs, models.RawLeg{Origin: l.Origin, Destination: l.Destination, Date: l.Date})
	}
	return raw
}
