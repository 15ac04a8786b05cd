// Package selection holds the outbound/return choice for one search and
// the pricing and buy-readiness rules that go with it.
package selection

import (
	"errors"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/pricing"
)

var (
	ErrInvalidTransition = errors.New("return offer requires a chosen outbound offer")
	ErrNotRoundTrip      = errors.New("return offers only apply to round trips")
	ErrNotReady          = errors.New("selection is not complete")
	ErrEmptyOffer        = errors.New("offer has no key")
)

// Machine is not safe for concurrent use; callers serialise access.
type Machine struct {
	tripType models.TripType
	outbound *models.Offer
	ret      *models.Offer
}

func NewMachine(tripType models.TripType) *Machine {
	return &Machine{tripType: tripType}
}

// SetTripType resets the selection for new criteria.
func (m *Machine) SetTripType(tripType models.TripType) {
	m.tripType = tripType
	m.Reset()
}

func (m *Machine) Reset() {
	m.outbound = nil
	m.ret = nil
}

func (m *Machine) Stage() models.SelectionStage {
	switch {
	case m.outbound == nil:
		return models.StageIdle
	case m.tripType != models.TripRoundTrip:
		return models.StageComplete
	case m.ret == nil:
		return models.StageOutboundChosen
	default:
		return models.StageComplete
	}
}

func (m *Machine) State() models.SelectionState {
	return models.SelectionState{
		Outbound: cloneOffer(m.outbound),
		Return:   cloneOffer(m.ret),
		Stage:    m.Stage(),
	}
}

// SelectOutbound chooses (or replaces) the outbound offer. Any return offer
// picked against the previous outbound is dropped.
func (m *Machine) SelectOutbound(o models.Offer) error {
	if o.Key == "" {
		return ErrEmptyOffer
	}
	m.outbound = cloneOffer(&o)
	m.ret = nil
	return nil
}

func (m *Machine) SelectReturn(o models.Offer) error {
	if m.tripType != models.TripRoundTrip {
		return ErrNotRoundTrip
	}
	if m.outbound == nil {
		return ErrInvalidTransition
	}
	if o.Key == "" {
		return ErrEmptyOffer
	}
	m.ret = cloneOffer(&o)
	return nil
}

// RemoveOutbound clears the outbound and everything chosen after it.
func (m *Machine) RemoveOutbound() {
	m.Reset()
}

func (m *Machine) RemoveReturn() {
	m.ret = nil
}

func (m *Machine) OutboundCarrier() string {
	if m.outbound == nil {
		return ""
	}
	return m.outbound.CarrierCode
}

func (m *Machine) IsSelected(key string) bool {
	if key == "" {
		return false
	}
	return (m.outbound != nil && m.outbound.Key == key) || (m.ret != nil && m.ret.Key == key)
}

func (m *Machine) Total() float64 {
	if m.tripType == models.TripRoundTrip {
		return pricing.Total(m.outbound, m.ret)
	}
	return pricing.Total(m.outbound)
}

func (m *Machine) CanBuy() bool {
	return m.Stage() == models.StageComplete
}

// Buy snapshots the selection for the booking flow. It does not change the
// selection.
func (m *Machine) Buy(c models.SearchCriteria, id string, now time.Time) (models.BookingHandoff, error) {
	if !m.CanBuy() {
		return models.BookingHandoff{}, ErrNotReady
	}

	handoff := models.BookingHandoff{
		ID:            id,
		OutboundOffer: *cloneOffer(m.outbound),
		TotalPrice:    m.Total(),
		Criteria:      c,
		CreatedAt:     now,
	}
	if m.tripType == models.TripRoundTrip {
		handoff.ReturnOffer = cloneOffer(m.ret)
	}
	return handoff, nil
}

func cloneOffer(o *models.Offer) *models.Offer {
	if o == nil {
		return nil
	}
	c := *o
	c.Segments = append([]models.Segment(nil), o.Segments...)
	c.FareCodes = append([]string(nil), o.FareCodes...)
	return &c
}
