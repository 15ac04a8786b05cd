package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/pkg/currency"
)

// Price applies the agent markup to a provider base price. The result is
// idempotent for a given base and markup, so stored base prices can be
// re-priced on every redisplay.
func Price(base float64, markup models.Markup) float64 {
	if markup.Amount == 0 || math.IsNaN(markup.Amount) || math.IsInf(markup.Amount, 0) {
		return base
	}

	switch markup.Type {
	case models.MarkupPercentage:
		return Round2(base + base*markup.Amount/100)
	default:
		return Round2(base + markup.Amount)
	}
}

// Round2 rounds half-up to two decimal places. It works on the shortest
// decimal form of v, so 1.005 rounds to 1.01 even though its binary value
// is slightly below. Negative values round half away from zero.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	whole, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(v), 'f', -1, 64), ".")
	if len(frac) <= 2 {
		return v
	}

	cents, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return math.Floor(v*100+0.5) / 100
	}
	if frac[2] >= '5' {
		cents++
	}

	r := float64(cents) / 100
	if v < 0 {
		return -r
	}
	return r
}

// Apply returns copies of offers with Price computed from BasePrice.
func Apply(offers []models.Offer, markup models.Markup) []models.Offer {
	result := make([]models.Offer, len(offers))
	for i, o := range offers {
		result[i] = o
		result[i].Price = Price(o.BasePrice, markup)
		result[i].FormattedPrice = currency.Format(result[i].Price, o.Currency)
	}
	return result
}

func Total(offers ...*models.Offer) float64 {
	total := 0.0
	for _, o := range offers {
		if o != nil {
			total += o.Price
		}
	}
	return Round2(total)
}
