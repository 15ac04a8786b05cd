package providers

import (
	"strconv"
	"strings"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/timefmt"
)

type offersResponse struct {
	Data         []rawOffer      `json:"data"`
	Dictionaries rawDictionaries `json:"dictionaries"`
}

type rawDictionaries struct {
	Carriers map[string]string `json:"carriers"`
}

type rawOffer struct {
	ID                     string             `json:"id"`
	Source                 string             `json:"source"`
	NumberOfBookableSeats  *int               `json:"numberOfBookableSeats"`
	Itineraries            []rawItinerary     `json:"itineraries"`
	Price                  rawPrice           `json:"price"`
	ValidatingAirlineCodes []string           `json:"validatingAirlineCodes"`
	TravelerPricings       []rawTravelerPrice `json:"travelerPricings"`
}

type rawItinerary struct {
	Duration string       `json:"duration"`
	Segments []rawSegment `json:"segments"`
}

type rawSegment struct {
	Departure   rawEndpoint `json:"departure"`
	Arrival     rawEndpoint `json:"arrival"`
	CarrierCode string      `json:"carrierCode"`
	Number      string      `json:"number"`
	Duration    string      `json:"duration"`
}

type rawEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type rawPrice struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	GrandTotal string `json:"grandTotal"`
}

type rawTravelerPrice struct {
	FareDetailsBySegment []rawFareDetail `json:"fareDetailsBySegment"`
}

type rawFareDetail struct {
	Cabin               string      `json:"cabin"`
	Class               string      `json:"class"`
	IncludedCheckedBags *rawBaggage `json:"includedCheckedBags"`
}

type rawBaggage struct {
	Quantity   *int     `json:"quantity"`
	Weight     *float64 `json:"weight"`
	WeightUnit string   `json:"weightUnit"`
}

// normalize maps one raw offer to the domain model. Multi-leg offers carry
// one itinerary per leg; their segments are concatenated in order. Offers
// without segments or a readable price are skipped by the caller.
func normalize(provider string, r rawOffer, carriers map[string]string) (models.Offer, bool) {
	var segments []models.Segment
	var legSegments []int
	totalMinutes := 0
	for _, itinerary := range r.Itineraries {
		totalMinutes += timefmt.ParseDurationMinutes(itinerary.Duration)
		for _, s := range itinerary.Segments {
			segments = append(segments, normalizeSegment(s))
		}
		legSegments = append(legSegments, len(itinerary.Segments))
	}
	if len(segments) == 0 {
		return models.Offer{}, false
	}

	price, ok := parsePrice(r.Price)
	if !ok {
		return models.Offer{}, false
	}

	duration := r.Itineraries[0].Duration
	if len(r.Itineraries) > 1 {
		duration = timefmt.FormatDuration(totalMinutes)
	} else {
		legSegments = nil
	}

	carrier := segments[0].CarrierCode
	if len(r.ValidatingAirlineCodes) > 0 && r.ValidatingAirlineCodes[0] != "" {
		carrier = r.ValidatingAirlineCodes[0]
	}

	currency := r.Price.Currency
	if currency == "" {
		currency = "USD"
	}

	offer := models.Offer{
		ProviderID:    r.ID,
		Provider:      provider,
		CarrierCode:   carrier,
		CarrierName:   carriers[carrier],
		Segments:      segments,
		LegSegments:   legSegments,
		Duration:      duration,
		BasePrice:     price,
		Price:         price,
		Currency:      currency,
		BookableSeats: r.NumberOfBookableSeats,
		FareBadge:     r.Source,
	}

	seenClass := map[string]bool{}
	for _, tp := range r.TravelerPricings {
		for _, fd := range tp.FareDetailsBySegment {
			if offer.CabinClass == "" && fd.Cabin != "" {
				offer.CabinClass = strings.ToUpper(fd.Cabin)
			}
			if fd.Class != "" && !seenClass[fd.Class] {
				seenClass[fd.Class] = true
				offer.FareCodes = append(offer.FareCodes, fd.Class)
			}
			if offer.Baggage == nil && fd.IncludedCheckedBags != nil {
				offer.Baggage = &models.Baggage{
					Quantity: fd.IncludedCheckedBags.Quantity,
					Weight:   fd.IncludedCheckedBags.Weight,
					Unit:     strings.ToUpper(fd.IncludedCheckedBags.WeightUnit),
				}
			}
		}
	}

	return offer, true
}

func normalizeSegment(s rawSegment) models.Segment {
	seg := models.Segment{
		CarrierCode:     s.CarrierCode,
		FlightNumber:    s.CarrierCode + s.Number,
		Origin:          strings.ToUpper(s.Departure.IATACode),
		Destination:     strings.ToUpper(s.Arrival.IATACode),
		DepartureRaw:    s.Departure.At,
		ArrivalRaw:      s.Arrival.At,
		Duration:        s.Duration,
		DurationMinutes: timefmt.ParseDurationMinutes(s.Duration),
	}
	if t, err := timefmt.ParseTimestamp(s.Departure.At); err == nil {
		seg.DepartureTime = t
	}
	if t, err := timefmt.ParseTimestamp(s.Arrival.At); err == nil {
		seg.ArrivalTime = t
	}
	return seg
}

func parsePrice(p rawPrice) (float64, bool) {
	for _, s := range []string{p.GrandTotal, p.Total} {
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err == nil && v >= 0 {
			return v, true
		}
	}
	return 0, false
}

func normalizeAll(provider string, resp offersResponse) *models.ProviderResult {
	carriers := make(map[string]string, len(resp.Dictionaries.Carriers))
	for code, name := range resp.Dictionaries.Carriers {
		carriers[code] = name
	}

	result := &models.ProviderResult{
		Offers:   make([]models.Offer, 0, len(resp.Data)),
		Carriers: carriers,
	}
	for _, r := range resp.Data {
		if offer, ok := normalize(provider, r, carriers); ok {
			result.Offers = append(result.Offers, offer)
		}
	}
	return result
}
