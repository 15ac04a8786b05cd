package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/flightoffers/internal/aggregator"
	"github.com/dharmasatrya/flightoffers/internal/clock"
	"github.com/dharmasatrya/flightoffers/internal/criteria"
	"github.com/dharmasatrya/flightoffers/internal/history"
	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/providers"
	"github.com/dharmasatrya/flightoffers/internal/store"
)

var now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	mu       sync.Mutex
	requests []models.ProviderRequest
	respond  func(req models.ProviderRequest) (*aggregator.Result, error)
}

func (f *fakeSearcher) Search(ctx context.Context, req models.ProviderRequest) (*aggregator.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	return respond(req)
}

func (f *fakeSearcher) calls() []models.ProviderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ProviderRequest(nil), f.requests...)
}

func makeOffer(id, carrier string, price float64, from, to, date string) models.Offer {
	dep, _ := time.Parse("2006-01-02", date)
	dep = dep.Add(8 * time.Hour)
	return models.Offer{
		ProviderID:  id,
		CarrierCode: carrier,
		BasePrice:   price,
		Price:       price,
		Currency:    "USD",
		CabinClass:  "ECONOMY",
		Segments: []models.Segment{{
			CarrierCode:   carrier,
			Origin:        from,
			Destination:   to,
			DepartureTime: dep,
			ArrivalTime:   dep.Add(5 * time.Hour),
		}},
	}
}

// routeResponder answers DAC->DXB with outbound offers and DXB->DAC with
// return offers, tagging ids with the requested date.
func routeResponder(req models.ProviderRequest) (*aggregator.Result, error) {
	res := &aggregator.Result{Carriers: map[string]string{"BG": "BIMAN", "EK": "EMIRATES", "QR": "QATAR"}}
	switch {
	case req.Origin == "DAC" && req.Destination == "DXB":
		res.Offers = []models.Offer{
			makeOffer("o1-"+req.DepartureDate, "BG", 400, "DAC", "DXB", req.DepartureDate),
			makeOffer("o2-"+req.DepartureDate, "EK", 350, "DAC", "DXB", req.DepartureDate),
			makeOffer("o2-"+req.DepartureDate, "EK", 350, "DAC", "DXB", req.DepartureDate),
		}
	case req.Origin == "DXB" && req.Destination == "DAC":
		res.Offers = []models.Offer{
			makeOffer("r1", "EK", 200, "DXB", "DAC", req.DepartureDate),
			makeOffer("r2", "BG", 150, "DXB", "DAC", req.DepartureDate),
			makeOffer("r3", "QR", 100, "DXB", "DAC", req.DepartureDate),
			makeOffer("r4", "EK", 180, "DXB", "DAC", req.DepartureDate),
		}
	}
	return res, nil
}

type harness struct {
	manager  *Manager
	searcher *fakeSearcher
	kv       *store.MemoryStore
	recent   *history.RecentSearches
}

func newHarness(respond func(models.ProviderRequest) (*aggregator.Result, error)) *harness {
	kv := store.NewMemoryStore()
	searcher := &fakeSearcher{respond: respond}
	recent := history.NewRecentSearches(kv, history.WithClock(clock.NewStepping(now, time.Minute)))

	ids := 0
	m := NewManager(Deps{
		Searcher: searcher,
		Store:    kv,
		Recent:   recent,
		Clock:    clock.NewStepping(now, time.Second),
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		ResultCap: 50,
	})
	return &harness{manager: m, searcher: searcher, kv: kv, recent: recent}
}

func roundTrip() models.RawCriteria {
	return models.RawCriteria{
		From:          "DAC - Dhaka",
		To:            "DXB - Dubai",
		DepartureDate: "2025-06-10",
		ReturnDate:    "2025-06-17",
		Passengers:    "2 Adults, 1 Child",
		Markup:        "10",
		MarkupType:    "fixed",
	}
}

func keysOf(offers []models.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ProviderID
	}
	return out
}

func TestSession_RoundTripFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	require.NoError(t, s.Search(ctx, roundTrip()))

	view := s.View()
	require.NotNil(t, view.Criteria)
	assert.Equal(t, []string{"o2-2025-06-10", "o1-2025-06-10"}, keysOf(view.OutboundOffers), "deduped and sorted by price")
	assert.Equal(t, 360.0, view.OutboundOffers[0].Price, "markup applied")
	assert.Equal(t, models.StageIdle, view.Selection.Stage)
	assert.Equal(t, models.PriceBounds{Min: 360, Max: 410}, view.Bounds)

	calls := h.searcher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.ProviderRequest{
		Origin: "DAC", Destination: "DXB", DepartureDate: "2025-06-10",
		Adults: 2, Children: 1, CabinClass: "ECONOMY", Currency: "USD", Max: 50,
	}, calls[0])

	outKey := view.OutboundOffers[1].Key
	require.NoError(t, s.SelectOutbound(ctx, outKey))

	calls = h.searcher.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "DXB", calls[1].Origin)
	assert.Equal(t, "DAC", calls[1].Destination)
	assert.Equal(t, "2025-06-17", calls[1].DepartureDate)

	view = s.View()
	assert.Equal(t, models.StageOutboundChosen, view.Selection.Stage)
	assert.Equal(t, []string{"r2", "r3", "r4", "r1"}, keysOf(view.ReturnOffers), "outbound carrier first, then by price")
	assert.Equal(t, models.PriceBounds{Min: 110, Max: 410}, view.Bounds, "bounds span outbound and return sets")

	retKey := view.ReturnOffers[0].Key
	require.NoError(t, s.SelectReturn(retKey))

	view = s.View()
	assert.Equal(t, models.StageComplete, view.Selection.Stage)
	assert.True(t, view.CanBuy)
	assert.Equal(t, 410.0+160.0, view.Total)

	handoff, err := s.Buy(ctx)
	require.NoError(t, err)
	assert.Equal(t, outKey, handoff.OutboundOffer.Key)
	require.NotNil(t, handoff.ReturnOffer)
	assert.Equal(t, retKey, handoff.ReturnOffer.Key)
	assert.Equal(t, 570.0, handoff.TotalPrice)

	var stored models.BookingHandoff
	require.True(t, store.GetJSON(ctx, h.kv, store.KeyBookingHandoff, &stored))
	assert.Equal(t, handoff.ID, stored.ID)
	assert.Equal(t, 570.0, stored.TotalPrice)

	assert.Equal(t, models.StageComplete, s.View().Selection.Stage, "buy leaves selection in place")

	var carriers map[string]string
	require.True(t, store.GetJSON(ctx, h.kv, store.KeyCarriers, &carriers))
	assert.Equal(t, "EMIRATES", carriers["EK"])

	recent := h.recent.List(ctx)
	require.Len(t, recent, 1)
	assert.Equal(t, "DXB", recent[0].Criteria.Destination)
}

func TestSession_ValidationErrorBlocksSearch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	raw := roundTrip()
	raw.To = "DAC"
	err := s.Search(ctx, raw)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.ErrCodeInvalidLocation, verr.Code)
	assert.Empty(t, h.searcher.calls())
	assert.Nil(t, s.View().Criteria)
}

func TestSession_ProviderErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	fail := false
	h := newHarness(func(req models.ProviderRequest) (*aggregator.Result, error) {
		if fail {
			return nil, providers.NewProviderError("http", errors.New("status 503"))
		}
		return routeResponder(req)
	})
	s := h.manager.Create(ctx, false)

	raw := roundTrip()
	raw.ReturnDate = ""
	raw.TripType = "one_way"
	require.NoError(t, s.Search(ctx, raw))
	key := s.View().OutboundOffers[0].Key
	require.NoError(t, s.SelectOutbound(ctx, key))

	fail = true
	err := s.ShiftDate(ctx, criteria.ShiftDeparture, 1)
	var perr *providers.ProviderError
	require.True(t, errors.As(err, &perr))

	view := s.View()
	require.NotNil(t, view.Error)
	assert.Equal(t, string(models.ErrCodeProviderError), view.Error.Error)
	assert.Len(t, view.OutboundOffers, 2)
	assert.Equal(t, "2025-06-10", view.Criteria.DepartureDate)
	assert.Equal(t, models.StageComplete, view.Selection.Stage)

	s.DismissError()
	assert.Nil(t, s.View().Error)
}

func TestSession_DateShiftResetsSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	require.NoError(t, s.Search(ctx, roundTrip()))
	require.NoError(t, s.SelectOutbound(ctx, s.View().OutboundOffers[0].Key))

	require.NoError(t, s.ShiftDate(ctx, criteria.ShiftDeparture, -1))

	view := s.View()
	assert.Equal(t, "2025-06-09", view.Criteria.DepartureDate)
	assert.Equal(t, "2025-06-17", *view.Criteria.ReturnDate)
	assert.Equal(t, models.StageIdle, view.Selection.Stage)
	assert.Empty(t, view.ReturnOffers)
	assert.Equal(t, "o2-2025-06-09", view.OutboundOffers[0].ProviderID)

	err := s.ShiftDate(ctx, criteria.ShiftReturn, -9)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.ErrCodeInvalidDateRange, verr.Code)
}

func TestSession_LastRequestWins(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	h := newHarness(func(req models.ProviderRequest) (*aggregator.Result, error) {
		if req.DepartureDate == "2025-06-11" {
			started <- struct{}{}
			<-release
		}
		return routeResponder(req)
	})
	s := h.manager.Create(ctx, false)
	require.NoError(t, s.Search(ctx, roundTrip()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ShiftDate(ctx, criteria.ShiftDeparture, 1)
	}()
	<-started

	require.NoError(t, s.ShiftDate(ctx, criteria.ShiftDeparture, -1))
	close(release)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Equal(t, "2025-06-09", s.View().Criteria.DepartureDate)
}

func TestSession_StaleReturnResultsDiscarded(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	h := newHarness(func(req models.ProviderRequest) (*aggregator.Result, error) {
		if req.Origin == "DXB" {
			started <- struct{}{}
			<-release
		}
		return routeResponder(req)
	})
	s := h.manager.Create(ctx, false)
	require.NoError(t, s.Search(ctx, roundTrip()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.SelectOutbound(ctx, s.View().OutboundOffers[0].Key)
	}()
	<-started

	s.RemoveOutbound()
	close(release)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	view := s.View()
	assert.Equal(t, models.StageIdle, view.Selection.Stage)
	assert.Empty(t, view.ReturnOffers)
}

func TestSession_RemoveOutboundClearsReturn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	require.NoError(t, s.Search(ctx, roundTrip()))
	require.NoError(t, s.SelectOutbound(ctx, s.View().OutboundOffers[0].Key))
	require.NoError(t, s.SelectReturn(s.View().ReturnOffers[0].Key))

	s.RemoveReturn()
	assert.Equal(t, models.StageOutboundChosen, s.View().Selection.Stage)

	require.NoError(t, s.SelectReturn(s.View().ReturnOffers[0].Key))
	s.RemoveOutbound()

	view := s.View()
	assert.Equal(t, models.StageIdle, view.Selection.Stage)
	assert.Nil(t, view.Selection.Return)
	assert.Empty(t, view.ReturnOffers)
	assert.Equal(t, models.PriceBounds{Min: 360, Max: 410}, view.Bounds)

	_, err := s.Buy(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSession_SelectionGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	assert.ErrorIs(t, s.SelectOutbound(ctx, "x"), ErrNoCriteria)
	assert.ErrorIs(t, s.ShiftDate(ctx, criteria.ShiftDeparture, 1), ErrNoCriteria)

	require.NoError(t, s.Search(ctx, roundTrip()))
	assert.ErrorIs(t, s.SelectOutbound(ctx, "missing"), ErrOfferNotFound)
	assert.ErrorIs(t, s.SelectReturn("missing"), ErrOfferNotFound)
	assert.ErrorIs(t, s.SetSort("stops"), ErrInvalidSort)
}

func TestSession_FiltersAndSort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)
	require.NoError(t, s.Search(ctx, roundTrip()))

	maxPrice := 1000.0
	s.SetFilters(models.OfferFilters{Airlines: []string{"BG", "EK"}, MaxPrice: &maxPrice})
	view := s.View()
	require.NotNil(t, view.Filters.MaxPrice)
	assert.Equal(t, 410.0, *view.Filters.MaxPrice, "clamped to bounds")
	require.NotNil(t, view.Filters.MinPrice)
	assert.Equal(t, 360.0, *view.Filters.MinPrice)

	maxPrice = 380
	s.SetFilters(models.OfferFilters{MaxPrice: &maxPrice})
	assert.Equal(t, []string{"o2-2025-06-10"}, keysOf(s.View().OutboundOffers))

	require.NoError(t, s.Search(ctx, roundTrip()))
	view = s.View()
	require.NotNil(t, view.Filters.MaxPrice)
	assert.Equal(t, 380.0, *view.Filters.MaxPrice, "upper bound survives refresh")

	require.NoError(t, s.SetSort("duration"))
	assert.Equal(t, "duration", s.View().SortBy)
	assert.Equal(t, []string{"BG", "EK"}, view.FilterOptions.Airlines)
}

func TestSession_NoOffersFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(func(req models.ProviderRequest) (*aggregator.Result, error) {
		return &aggregator.Result{}, nil
	})
	s := h.manager.Create(ctx, false)

	require.NoError(t, s.Search(ctx, roundTrip()))
	view := s.View()
	assert.True(t, view.Metadata.NoOffersFound)
	assert.Empty(t, view.OutboundOffers)
	assert.Nil(t, view.Error)
}

func TestSession_OneWayBuySkipsReturnQuery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	s := h.manager.Create(ctx, false)

	raw := roundTrip()
	raw.TripType = "OneWay"
	require.NoError(t, s.Search(ctx, raw))
	require.NoError(t, s.SelectOutbound(ctx, s.View().OutboundOffers[0].Key))
	assert.Len(t, h.searcher.calls(), 1)

	handoff, err := s.Buy(ctx)
	require.NoError(t, err)
	assert.Nil(t, handoff.ReturnOffer)
	assert.Equal(t, 360.0, handoff.TotalPrice)
	assert.ErrorIs(t, s.SelectReturn("r1"), ErrNotRoundTrip)
}

func TestSession_MultiLegRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(func(req models.ProviderRequest) (*aggregator.Result, error) {
		return &aggregator.Result{}, nil
	})
	s := h.manager.Create(ctx, false)

	require.NoError(t, s.Search(ctx, models.RawCriteria{
		TripType: "multi_leg",
		Legs: []models.RawLeg{
			{Origin: "DAC", Destination: "DXB", Date: "2025-06-10"},
			{Origin: "DXB", Destination: "IST", Date: "2025-06-14"},
		},
	}))

	calls := h.searcher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "DAC", calls[0].Origin)
	assert.Equal(t, "IST", calls[0].Destination)
	assert.Len(t, calls[0].Legs, 2)
}

func TestManager_RestoreRepricesStoredResults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)

	first := h.manager.Create(ctx, false)
	require.NoError(t, first.Search(ctx, roundTrip()))

	restored := h.manager.Create(ctx, true)
	assert.NotEqual(t, first.ID(), restored.ID())

	view := restored.View()
	require.NotNil(t, view.Criteria)
	want := first.View().OutboundOffers
	require.Len(t, view.OutboundOffers, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key, view.OutboundOffers[i].Key)
		assert.Equal(t, want[i].Price, view.OutboundOffers[i].Price)
	}
	assert.Equal(t, "BIMAN", view.Carriers["BG"])
	assert.Len(t, h.searcher.calls(), 1, "restore does not query the provider")

	got, err := h.manager.Get(restored.ID())
	require.NoError(t, err)
	assert.Same(t, restored, got)

	h.manager.Delete(restored.ID())
	_, err = h.manager.Get(restored.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_RestoreIgnoresCorruptData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(routeResponder)
	require.NoError(t, h.kv.Set(ctx, store.KeyLastCriteria, []byte(`{"origin":"DAC","destination":"DAC"}`)))

	s := h.manager.Create(ctx, true)
	assert.Nil(t, s.View().Criteria)
}
