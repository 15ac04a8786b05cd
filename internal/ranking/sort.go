package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/timefmt"
)

type SortBy string

const (
	SortByPrice     SortBy = "price"
	SortByDuration  SortBy = "duration"
	SortByBestValue SortBy = "best_value"
)

func ParseSortBy(s string) (SortBy, bool) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPrice:
		return SortByPrice, true
	case SortByDuration:
		return SortByDuration, true
	case SortByBestValue:
		return SortByBestValue, true
	default:
		return SortByPrice, false
	}
}

// Sort returns a stably ordered copy of offers. Unknown orderings fall back
// to price.
func Sort(offers []models.Offer, by SortBy) []models.Offer {
	sorted := make([]models.Offer, len(offers))
	copy(sorted, offers)

	switch by {
	case SortByDuration:
		sort.SliceStable(sorted, func(i, j int) bool {
			return DurationMinutes(sorted[i]) < DurationMinutes(sorted[j])
		})

	case SortByBestValue:
		scores := bestValueScores(sorted)
		idx := make([]int, len(sorted))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool {
			return scores[idx[i]] < scores[idx[j]]
		})
		reordered := make([]models.Offer, len(sorted))
		for i, k := range idx {
			reordered[i] = sorted[k]
		}
		sorted = reordered

	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Price < sorted[j].Price
		})
	}

	return sorted
}

// ByReturnAffinity orders return candidates so that offers flown by the
// outbound carrier come first. Each group is ordered by ascending price.
func ByReturnAffinity(offers []models.Offer, outboundCarrier string) []models.Offer {
	sorted := make([]models.Offer, len(offers))
	copy(sorted, offers)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := outboundCarrier != "" && strings.EqualFold(sorted[i].CarrierCode, outboundCarrier)
		mj := outboundCarrier != "" && strings.EqualFold(sorted[j].CarrierCode, outboundCarrier)
		if mi != mj {
			return mi
		}
		return sorted[i].Price < sorted[j].Price
	})

	return sorted
}

// DurationMinutes is the total itinerary time. The offer-level duration
// wins; otherwise segment durations are summed.
func DurationMinutes(o models.Offer) int {
	if o.Duration != "" {
		return timefmt.ParseDurationMinutes(o.Duration)
	}

	total := 0
	for _, s := range o.Segments {
		if s.DurationMinutes > 0 {
			total += s.DurationMinutes
			continue
		}
		total += timefmt.ParseDurationMinutes(s.Duration)
	}
	return total
}

const (
	PriceWeight    = 0.5
	DurationWeight = 0.3
	StopsWeight    = 0.2
)

// Lower score = better value
func bestValueScores(offers []models.Offer) []float64 {
	maxPrice, maxDuration := 0.0, 0.0
	for _, o := range offers {
		maxPrice = math.Max(maxPrice, o.Price)
		maxDuration = math.Max(maxDuration, float64(DurationMinutes(o)))
	}

	scores := make([]float64, len(offers))
	for i, o := range offers {
		priceScore := 0.0
		if maxPrice > 0 {
			priceScore = (o.Price / maxPrice) * 100
		}

		durationScore := 0.0
		if maxDuration > 0 {
			durationScore = (float64(DurationMinutes(o)) / maxDuration) * 100
		}

		stopsScore := float64(o.Stops()) * 15
		score := (priceScore * PriceWeight) + (durationScore * DurationWeight) + (stopsScore * StopsWeight)
		scores[i] = math.Round(score*100) / 100
	}
	return scores
}
