// Package offerkey derives the identity used to recognise the same offer
// across refetches, since every search returns freshly built values.
package offerkey

import (
	"strconv"
	"strings"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

const delimiter = "|"

func Generate(o models.Offer) string {
	if id := strings.TrimSpace(o.ProviderID); id != "" {
		return "id:" + id
	}

	parts := []string{o.CarrierCode}

	if first, ok := o.FirstSegment(); ok {
		parts = append(parts, first.Origin, timestamp(first.DepartureRaw, first.DepartureTime))
	}
	if last, ok := o.LastSegment(); ok {
		parts = append(parts, last.Destination, timestamp(last.ArrivalRaw, last.ArrivalTime))
	}

	if o.BasePrice != 0 {
		parts = append(parts, strconv.FormatFloat(o.BasePrice, 'f', 2, 64))
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, delimiter)
}

func timestamp(raw string, t time.Time) string {
	if raw != "" {
		return raw
	}
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Tag returns copies of offers with Key populated.
func Tag(offers []models.Offer) []models.Offer {
	result := make([]models.Offer, len(offers))
	for i, o := range offers {
		result[i] = o
		result[i].Key = Generate(o)
	}
	return result
}

// Dedup keeps the first offer for each key. Offers must already be tagged.
func Dedup(offers []models.Offer) []models.Offer {
	seen := make(map[string]bool, len(offers))
	result := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if seen[o.Key] {
			continue
		}
		seen[o.Key] = true
		result = append(result, o)
	}
	return result
}

func Find(offers []models.Offer, key string) (models.Offer, bool) {
	for _, o := range offers {
		if o.Key == key {
			return o, true
		}
	}
	return models.Offer{}, false
}
