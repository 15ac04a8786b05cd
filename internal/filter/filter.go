package filter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

// Apply returns the offers matching every active filter. The input slice is
// never modified, and an empty filter set returns a copy of the input.
func Apply(offers []models.Offer, filters *models.OfferFilters) []models.Offer {
	result := make([]models.Offer, 0, len(offers))

	for _, o := range offers {
		if filters.IsEmpty() || matchesFilters(o, filters) {
			result = append(result, o)
		}
	}

	return result
}

func matchesFilters(o models.Offer, filters *models.OfferFilters) bool {
	if len(filters.Airlines) > 0 && !containsFold(filters.Airlines, o.CarrierCode) {
		return false
	}

	if len(filters.Baggage) > 0 {
		label := BaggageLabel(o)
		if label == "" || !containsFold(filters.Baggage, label) {
			return false
		}
	}

	if filters.MinPrice != nil && o.Price < *filters.MinPrice {
		return false
	}
	if filters.MaxPrice != nil && o.Price > *filters.MaxPrice {
		return false
	}

	// Both stop flags together keep everything.
	if filters.Stops.Direct != filters.Stops.Connecting {
		if filters.Stops.Direct && !o.IsDirect() {
			return false
		}
		if filters.Stops.Connecting && o.IsDirect() {
			return false
		}
	}

	if len(filters.Cabins) > 0 && !containsFold(filters.Cabins, o.CabinLabel()) && !containsFold(filters.Cabins, o.CabinClass) {
		return false
	}

	return true
}

// BaggageLabel renders the checked allowance as "2 PC" or "23 KG". Offers
// without an allowance have no label.
func BaggageLabel(o models.Offer) string {
	if o.Baggage == nil {
		return ""
	}
	if o.Baggage.Quantity != nil {
		return strconv.Itoa(*o.Baggage.Quantity) + " PC"
	}
	if o.Baggage.Weight != nil && o.Baggage.Unit != "" {
		return strconv.FormatFloat(*o.Baggage.Weight, 'f', -1, 64) + " " + strings.ToUpper(o.Baggage.Unit)
	}
	return ""
}

// Bounds computes the price range across all given result sets.
func Bounds(sets ...[]models.Offer) models.PriceBounds {
	var bounds models.PriceBounds
	first := true
	for _, offers := range sets {
		for _, o := range offers {
			if first {
				bounds = models.PriceBounds{Min: o.Price, Max: o.Price}
				first = false
				continue
			}
			if o.Price < bounds.Min {
				bounds.Min = o.Price
			}
			if o.Price > bounds.Max {
				bounds.Max = o.Price
			}
		}
	}
	return bounds
}

// ClampMax carries the user's chosen upper bound over to freshly computed
// bounds. A nil result means "no upper bound chosen". The choice is dropped
// when the new range lies entirely below the previous lower bound.
func ClampMax(prev models.PriceBounds, selectedMax *float64, next models.PriceBounds) *float64 {
	if selectedMax == nil {
		return nil
	}
	if next.Max < prev.Min {
		return nil
	}

	v := *selectedMax
	if v < next.Min {
		v = next.Min
	}
	if v > next.Max {
		v = next.Max
	}
	return &v
}

// Options lists the distinct airline, baggage and cabin values present in
// the offers, for populating filter choices.
func Options(offers []models.Offer) models.FilterOptions {
	airlines := map[string]bool{}
	baggage := map[string]bool{}
	cabins := map[string]bool{}

	for _, o := range offers {
		if o.CarrierCode != "" {
			airlines[o.CarrierCode] = true
		}
		if label := BaggageLabel(o); label != "" {
			baggage[label] = true
		}
		if label := o.CabinLabel(); label != "" {
			cabins[label] = true
		}
	}

	return models.FilterOptions{
		Airlines: sortedKeys(airlines),
		Baggage:  sortedKeys(baggage),
		Cabins:   sortedKeys(cabins),
	}
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
