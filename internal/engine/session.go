// Package engine runs one agent's search session: criteria in, provider
// query out, offers tagged, priced, filtered and sorted, selection tracked
// until hand-off to booking.
package engine

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/aggregator"
	"github.com/dharmasatrya/flightoffers/internal/clock"
	"github.com/dharmasatrya/flightoffers/internal/criteria"
	"github.com/dharmasatrya/flightoffers/internal/filter"
	"github.com/dharmasatrya/flightoffers/internal/history"
	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/offerkey"
	"github.com/dharmasatrya/flightoffers/internal/pricing"
	"github.com/dharmasatrya/flightoffers/internal/ranking"
	"github.com/dharmasatrya/flightoffers/internal/selection"
	"github.com/dharmasatrya/flightoffers/internal/store"
)

var (
	ErrSuperseded    = errors.New("response superseded by a newer request")
	ErrNoCriteria    = errors.New("no search has been run in this session")
	ErrOfferNotFound = errors.New("offer not found in current results")
	ErrInvalidSort   = errors.New("unknown sort order")
	ErrNotRoundTrip  = selection.ErrNotRoundTrip
	ErrNotReady      = selection.ErrNotReady
	ErrInvalidState  = selection.ErrInvalidTransition
)

// QueryClass groups provider requests for last-request-wins handling.
type QueryClass string

const (
	QueryOutbound  QueryClass = "outbound"
	QueryReturn    QueryClass = "return"
	QueryDateShift QueryClass = "date_shift"
)

// Searcher is the provider side of the engine.
type Searcher interface {
	Search(ctx context.Context, req models.ProviderRequest) (*aggregator.Result, error)
}

type Deps struct {
	Searcher  Searcher
	Store     store.KV
	Recent    *history.RecentSearches
	Clock     clock.Clock
	NewID     func() string
	Currency  string
	ResultCap int
}

type storedResults struct {
	Outbound []models.Offer `json:"outbound"`
}

type Session struct {
	mu   sync.Mutex
	id   string
	deps Deps

	criteria *models.SearchCriteria
	outbound []models.Offer
	returns  []models.Offer
	carriers map[string]string

	filters  models.OfferFilters
	bounds   models.PriceBounds
	sortBy   ranking.SortBy
	affinity bool

	machine *selection.Machine

	tokens map[QueryClass]uint64

	// epoch advances whenever the outbound result set is replaced; return
	// results fetched against an older epoch are stale.
	epoch uint64

	banner   *models.ErrorResponse
	metadata models.SearchMetadata
}

func newSession(id string, deps Deps) *Session {
	return &Session{
		id:       id,
		deps:     deps,
		carriers: map[string]string{},
		sortBy:   ranking.SortByPrice,
		machine:  selection.NewMachine(models.TripOneWay),
		tokens:   map[QueryClass]uint64{},
	}
}

func (s *Session) ID() string {
	return s.id
}

// Search validates raw input and runs a fresh outbound query. Validation
// failures leave the session untouched.
func (s *Session) Search(ctx context.Context, raw models.RawCriteria) error {
	c, err := criteria.Normalize(raw)
	if err != nil {
		return err
	}
	return s.runOutbound(ctx, c, QueryOutbound)
}

// ShiftDate re-runs the search with the departure or return date moved by
// days. The selection is reset once the new results arrive.
func (s *Session) ShiftDate(ctx context.Context, target criteria.ShiftTarget, days int) error {
	s.mu.Lock()
	if s.criteria == nil {
		s.mu.Unlock()
		return ErrNoCriteria
	}
	current := criteria.Clone(*s.criteria)
	s.mu.Unlock()

	next, err := criteria.ShiftCriteria(current, target, days)
	if err != nil {
		return err
	}
	return s.runOutbound(ctx, next, QueryDateShift)
}

func (s *Session) runOutbound(ctx context.Context, c models.SearchCriteria, class QueryClass) error {
	s.mu.Lock()
	s.tokens[class]++
	token := s.tokens[class]
	epoch := s.epoch
	s.mu.Unlock()

	started := time.Now()
	res, err := s.deps.Searcher.Search(ctx, s.providerRequest(c, c.Origin, c.Destination, c.DepartureDate))

	s.mu.Lock()
	if s.tokens[class] != token || s.epoch != epoch {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.setBanner(err)
		s.mu.Unlock()
		return err
	}

	offers := prepare(res.Offers, c.Markup)

	s.epoch++
	s.criteria = &c
	s.outbound = offers
	s.returns = nil
	s.affinity = false
	s.machine.SetTripType(c.TripType)
	s.mergeCarriers(res.Carriers)
	s.recomputeBounds()
	s.banner = nil
	s.metadata = models.SearchMetadata{
		OutboundResults: len(offers),
		FailedProviders: res.FailedProviders,
		SearchTimeMs:    time.Since(started).Milliseconds(),
		NoOffersFound:   len(offers) == 0,
	}
	s.mu.Unlock()

	s.persistSearch(ctx, c, offers, res.Carriers)
	return nil
}

// SelectOutbound picks an outbound offer by key. For round trips the
// return candidates are fetched for the reversed route and ordered with the
// outbound carrier first.
func (s *Session) SelectOutbound(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.criteria == nil {
		s.mu.Unlock()
		return ErrNoCriteria
	}
	o, ok := offerkey.Find(s.outbound, key)
	if !ok {
		s.mu.Unlock()
		return ErrOfferNotFound
	}
	if err := s.machine.SelectOutbound(o); err != nil {
		s.mu.Unlock()
		return err
	}

	c := *s.criteria
	s.returns = nil
	s.recomputeBounds()
	if !c.IsRoundTrip() {
		s.mu.Unlock()
		return nil
	}

	s.tokens[QueryReturn]++
	token := s.tokens[QueryReturn]
	epoch := s.epoch
	s.mu.Unlock()

	res, err := s.deps.Searcher.Search(ctx, s.providerRequest(c, c.Destination, c.Origin, c.ReturnDateValue()))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens[QueryReturn] != token || s.epoch != epoch || !s.machine.IsSelected(key) {
		return ErrSuperseded
	}
	if err != nil {
		s.setBanner(err)
		return err
	}

	s.returns = prepare(res.Offers, c.Markup)
	s.affinity = true
	s.mergeCarriers(res.Carriers)
	s.recomputeBounds()
	s.banner = nil
	s.metadata.ReturnResults = len(s.returns)

	if _, err := store.MergeCarriers(ctx, s.deps.Store, res.Carriers); err != nil {
		log.Printf("Failed to persist carrier dictionary: %v", err)
	}
	return nil
}

func (s *Session) SelectReturn(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.criteria == nil {
		return ErrNoCriteria
	}
	if !s.criteria.IsRoundTrip() {
		return ErrNotRoundTrip
	}
	o, ok := offerkey.Find(s.returns, key)
	if !ok {
		return ErrOfferNotFound
	}
	return s.machine.SelectReturn(o)
}

// RemoveOutbound clears the outbound, the return and the return results.
// Any return query still in flight is discarded on arrival.
func (s *Session) RemoveOutbound() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.machine.RemoveOutbound()
	s.returns = nil
	s.affinity = false
	s.tokens[QueryReturn]++
	s.recomputeBounds()
}

func (s *Session) RemoveReturn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.machine.RemoveReturn()
}

// SetFilters replaces the active filters. The lower price bound always
// follows the result set; only the upper bound is taken from f, clamped.
func (s *Session) SetFilters(f models.OfferFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.MinPrice = nil
	if f.MaxPrice != nil && len(s.outbound)+len(s.returns) > 0 {
		f.MaxPrice = filter.ClampMax(s.bounds, f.MaxPrice, s.bounds)
	}
	s.filters = f
}

func (s *Session) SetSort(by string) error {
	sortBy, ok := ranking.ParseSortBy(by)
	if !ok {
		return ErrInvalidSort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sortBy = sortBy
	s.affinity = false
	return nil
}

func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.banner = nil
}

// Buy hands the completed selection to the booking flow through the
// store. The selection itself is left as is.
func (s *Session) Buy(ctx context.Context) (models.BookingHandoff, error) {
	s.mu.Lock()
	if s.criteria == nil {
		s.mu.Unlock()
		return models.BookingHandoff{}, ErrNoCriteria
	}
	handoff, err := s.machine.Buy(criteria.Clone(*s.criteria), s.deps.NewID(), s.deps.Clock.Now())
	s.mu.Unlock()
	if err != nil {
		return models.BookingHandoff{}, err
	}

	if err := store.SetJSON(ctx, s.deps.Store, store.KeyBookingHandoff, handoff); err != nil {
		return models.BookingHandoff{}, err
	}
	return handoff, nil
}

func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.activeFilters()

	outbound := ranking.Sort(filter.Apply(s.outbound, &active), s.sortBy)

	returns := filter.Apply(s.returns, &active)
	if s.affinity {
		returns = ranking.ByReturnAffinity(returns, s.machine.OutboundCarrier())
	} else {
		returns = ranking.Sort(returns, s.sortBy)
	}

	view := models.SessionView{
		ID:             s.id,
		OutboundOffers: outbound,
		ReturnOffers:   returns,
		Filters:        active,
		FilterOptions:  filter.Options(append(append([]models.Offer(nil), s.outbound...), s.returns...)),
		Bounds:         s.bounds,
		SortBy:         string(s.sortBy),
		Selection:      s.machine.State(),
		Total:          s.machine.Total(),
		CanBuy:         s.machine.CanBuy(),
		Carriers:       copyCarriers(s.carriers),
		Metadata:       s.metadata,
		Error:          s.banner,
	}
	if s.criteria != nil {
		c := criteria.Clone(*s.criteria)
		view.Criteria = &c
	}
	return view
}

// Restore reloads the last persisted search and its results, re-pricing
// stored base prices with the stored markup. It reports whether anything
// usable was found.
func (s *Session) Restore(ctx context.Context) bool {
	var doc map[string]any
	if !store.GetJSON(ctx, s.deps.Store, store.KeyLastCriteria, &doc) {
		return false
	}
	c, err := criteria.Normalize(criteria.FromMap(doc))
	if err != nil {
		log.Printf("Discarding stored criteria: %v", err)
		return false
	}

	var results storedResults
	store.GetJSON(ctx, s.deps.Store, store.KeyLastResults, &results)

	var carriers map[string]string
	store.GetJSON(ctx, s.deps.Store, store.KeyCarriers, &carriers)

	valid := make([]models.Offer, 0, len(results.Outbound))
	for _, o := range results.Outbound {
		if len(o.Segments) == 0 || o.BasePrice < 0 {
			continue
		}
		valid = append(valid, o)
	}
	offers := prepare(valid, c.Markup)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.criteria = &c
	s.outbound = offers
	s.returns = nil
	s.machine.SetTripType(c.TripType)
	s.mergeCarriers(carriers)
	s.recomputeBounds()
	s.metadata = models.SearchMetadata{
		OutboundResults: len(offers),
		NoOffersFound:   len(offers) == 0,
	}
	return true
}

func (s *Session) providerRequest(c models.SearchCriteria, origin, destination, date string) models.ProviderRequest {
	req := models.ProviderRequest{
		Origin:        origin,
		Destination:   destination,
		DepartureDate: date,
		Adults:        c.Passengers.Adults,
		Children:      c.Passengers.Children,
		Infants:       c.Passengers.Infants,
		CabinClass:    c.CabinClass,
		NonStop:       c.DirectOnly,
		Currency:      s.deps.Currency,
		Max:           s.deps.ResultCap,
	}
	if c.TripType == models.TripMultiLeg {
		req.Legs = append([]models.Leg(nil), c.Legs...)
	}
	return req
}

func (s *Session) activeFilters() models.OfferFilters {
	active := s.filters
	if len(s.outbound)+len(s.returns) > 0 {
		lower := s.bounds.Min
		active.MinPrice = &lower
	}
	return active
}

func (s *Session) recomputeBounds() {
	next := filter.Bounds(s.outbound, s.returns)
	s.filters.MaxPrice = filter.ClampMax(s.bounds, s.filters.MaxPrice, next)
	s.bounds = next
}

func (s *Session) mergeCarriers(carriers map[string]string) {
	for code, name := range carriers {
		if code != "" && name != "" {
			s.carriers[code] = name
		}
	}
}

func (s *Session) setBanner(err error) {
	s.banner = &models.ErrorResponse{
		Error:   string(models.ErrCodeProviderError),
		Message: err.Error(),
		Code:    http.StatusBadGateway,
	}
}

func (s *Session) persistSearch(ctx context.Context, c models.SearchCriteria, offers []models.Offer, carriers map[string]string) {
	if err := store.SetJSON(ctx, s.deps.Store, store.KeyLastCriteria, c); err != nil {
		log.Printf("Failed to persist last criteria: %v", err)
	}
	if err := store.SetJSON(ctx, s.deps.Store, store.KeyLastResults, storedResults{Outbound: offers}); err != nil {
		log.Printf("Failed to persist last results: %v", err)
	}
	if _, err := store.MergeCarriers(ctx, s.deps.Store, carriers); err != nil {
		log.Printf("Failed to persist carrier dictionary: %v", err)
	}
	if s.deps.Recent != nil {
		if err := s.deps.Recent.Record(ctx, c); err != nil {
			log.Printf("Failed to record recent search: %v", err)
		}
	}
}

// prepare prices, tags and de-duplicates a provider batch.
func prepare(offers []models.Offer, markup models.Markup) []models.Offer {
	return offerkey.Dedup(offerkey.Tag(pricing.Apply(offers, markup)))
}

func copyCarriers(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
