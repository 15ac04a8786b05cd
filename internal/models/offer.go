package models

import (
	"strings"
	"time"
)

type Segment struct {
	CarrierCode     string    `json:"carrier_code"`
	FlightNumber    string    `json:"flight_number"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	DepartureRaw    string    `json:"departure_raw,omitempty"`
	ArrivalRaw      string    `json:"arrival_raw,omitempty"`
	Duration        string    `json:"duration,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Baggage is the checked allowance. Either Quantity or Weight+Unit is set
// by most providers; both may be absent.
type Baggage struct {
	Quantity *int     `json:"quantity,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

type Offer struct {
	Key            string    `json:"key"`
	ProviderID     string    `json:"provider_id,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	CarrierCode    string    `json:"carrier_code"`
	CarrierName    string    `json:"carrier_name,omitempty"`
	Segments       []Segment `json:"segments"`
	LegSegments    []int     `json:"leg_segments,omitempty"`
	CabinClass     string    `json:"cabin_class"`
	FareCodes      []string  `json:"fare_codes,omitempty"`
	Duration       string    `json:"duration,omitempty"`
	BasePrice      float64   `json:"base_price"`
	Price          float64   `json:"price"`
	FormattedPrice string    `json:"formatted_price,omitempty"`
	Currency       string    `json:"currency"`
	Baggage        *Baggage  `json:"baggage,omitempty"`
	BookableSeats  *int      `json:"bookable_seats,omitempty"`
	FareBadge      string    `json:"fare_badge,omitempty"`
}

// Stops is the highest number of stops on any one leg. LegSegments holds
// the segment count per leg of a multi-leg itinerary; without it the
// segments form a single leg.
func (o Offer) Stops() int {
	if len(o.LegSegments) == 0 {
		if len(o.Segments) == 0 {
			return 0
		}
		return len(o.Segments) - 1
	}

	stops := 0
	for _, n := range o.LegSegments {
		if n-1 > stops {
			stops = n - 1
		}
	}
	return stops
}

func (o Offer) IsDirect() bool {
	return o.Stops() == 0
}

func (o Offer) FirstSegment() (Segment, bool) {
	if len(o.Segments) == 0 {
		return Segment{}, false
	}
	return o.Segments[0], true
}

func (o Offer) LastSegment() (Segment, bool) {
	if len(o.Segments) == 0 {
		return Segment{}, false
	}
	return o.Segments[len(o.Segments)-1], true
}

// CabinLabel combines the cabin with the booking codes, e.g. "ECONOMY (Y)".
func (o Offer) CabinLabel() string {
	if len(o.FareCodes) == 0 {
		return o.CabinClass
	}
	return o.CabinClass + " (" + strings.Join(o.FareCodes, ", ") + ")"
}

type StopsFilter struct {
	Direct     bool `json:"direct"`
	Connecting bool `json:"connecting"`
}

type OfferFilters struct {
	Airlines []string    `json:"airlines,omitempty"`
	Baggage  []string    `json:"baggage,omitempty"`
	MinPrice *float64    `json:"min_price,omitempty"`
	MaxPrice *float64    `json:"max_price,omitempty"`
	Stops    StopsFilter `json:"stops"`
	Cabins   []string    `json:"cabins,omitempty"`
}

func (f *OfferFilters) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Airlines) == 0 && len(f.Baggage) == 0 && f.MinPrice == nil &&
		f.MaxPrice == nil && !f.Stops.Direct && !f.Stops.Connecting && len(f.Cabins) == 0
}

type PriceBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ProviderRequest is the subset of criteria sent to the offer provider.
// Markup is applied locally and never sent.
type ProviderRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	Adults        int    `json:"adults"`
	Children      int    `json:"children"`
	Infants       int    `json:"infants"`
	CabinClass    string `json:"cabin_class"`
	NonStop       bool   `json:"non_stop"`
	Currency      string `json:"currency"`
	Max           int    `json:"max"`
	Legs          []Leg  `json:"legs,omitempty"`
}

type ProviderResult struct {
	Offers   []Offer           `json:"offers"`
	Carriers map[string]string `json:"carriers"`
}
