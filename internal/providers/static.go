package providers

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/timefmt"
)

// StaticProvider answers searches from a fixture file in the provider's
// response format. It is used for demos and local development.
type StaticProvider struct {
	offers   []rawOffer
	carriers map[string]string
	latency  time.Duration
}

func NewStaticProvider(data []byte, latency time.Duration) (*StaticProvider, error) {
	var resp offersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &StaticProvider{
		offers:   resp.Data,
		carriers: resp.Dictionaries.Carriers,
		latency:  latency,
	}, nil
}

func NewStaticProviderFromFile(path string, latency time.Duration) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(data, latency)
}

func (p *StaticProvider) Name() string {
	return "static"
}

func (p *StaticProvider) Search(ctx context.Context, req models.ProviderRequest) (*models.ProviderResult, error) {
	if p.latency > 0 {
		delay := p.latency/2 + time.Duration(rand.Int63n(int64(p.latency/2)+1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, NewProviderError(p.Name(), ctx.Err())
		}
	}

	var matched []rawOffer
	for _, o := range p.offers {
		if !p.matches(o, req) {
			continue
		}
		matched = append(matched, o)
		if req.Max > 0 && len(matched) == req.Max {
			break
		}
	}

	return normalizeAll(p.Name(), offersResponse{
		Data:         matched,
		Dictionaries: rawDictionaries{Carriers: p.carriers},
	}), nil
}

func (p *StaticProvider) matches(o rawOffer, req models.ProviderRequest) bool {
	legs := req.Legs
	if len(legs) == 0 {
		legs = []models.Leg{{Origin: req.Origin, Destination: req.Destination, Date: req.DepartureDate}}
	}
	if len(o.Itineraries) != len(legs) {
		return false
	}

	for i, leg := range legs {
		segs := o.Itineraries[i].Segments
		if len(segs) == 0 {
			return false
		}
		first, last := segs[0], segs[len(segs)-1]

		if !strings.EqualFold(first.Departure.IATACode, leg.Origin) ||
			!strings.EqualFold(last.Arrival.IATACode, leg.Destination) {
			return false
		}

		if req.NonStop && len(segs) > 1 {
			return false
		}

		depTime, err := timefmt.ParseTimestamp(first.Departure.At)
		if err != nil || depTime.Format(timefmt.DateLayout) != leg.Date {
			return false
		}
	}

	return req.CabinClass == "" || cabinMatches(o, req.CabinClass)
}

func cabinMatches(o rawOffer, cabin string) bool {
	for _, tp := range o.TravelerPricings {
		for _, fd := range tp.FareDetailsBySegment {
			if strings.EqualFold(fd.Cabin, cabin) {
				return true
			}
		}
	}
	return len(o.TravelerPricings) == 0
}
