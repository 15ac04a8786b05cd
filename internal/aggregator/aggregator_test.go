package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/providers"
	"github.com/dharmasatrya/flightoffers/internal/ratelimit"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Search(ctx context.Context, req models.ProviderRequest) (*models.ProviderResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.ProviderResult)
	return res, args.Error(1)
}

func testConfig() Config {
	return Config{
		MaxRetries:  2,
		RetryDelays: []time.Duration{time.Millisecond},
		RateLimiter: ratelimit.NewProviderLimiterWithDefaults(),
	}
}

var req = models.ProviderRequest{Origin: "DAC", Destination: "DXB", DepartureDate: "2025-06-10", Adults: 1}

func TestAggregator_MergesProviders(t *testing.T) {
	a := &mockProvider{name: "a"}
	a.On("Search", mock.Anything, req).Return(&models.ProviderResult{
		Offers:   []models.Offer{{ProviderID: "1", CarrierCode: "BG"}},
		Carriers: map[string]string{"BG": "BIMAN"},
	}, nil)

	b := &mockProvider{name: "b"}
	b.On("Search", mock.Anything, req).Return(&models.ProviderResult{
		Offers:   []models.Offer{{ProviderID: "2", CarrierCode: "EK"}},
		Carriers: map[string]string{"EK": "EMIRATES", "BG": ""},
	}, nil)

	agg := NewAggregator([]providers.Provider{a, b}, testConfig())
	result, err := agg.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, result.Offers, 2)
	assert.Equal(t, map[string]string{"BG": "BIMAN", "EK": "EMIRATES"}, result.Carriers)
	assert.Equal(t, 2, result.ProvidersSucceeded)
	a.AssertExpectations(t)
	b.AssertExpectations(t)
}

func TestAggregator_RetriesThenSucceeds(t *testing.T) {
	p := &mockProvider{name: "flaky"}
	p.On("Search", mock.Anything, req).Return(nil, errors.New("boom")).Once()
	p.On("Search", mock.Anything, req).Return(&models.ProviderResult{}, nil).Once()

	result, err := NewAggregator([]providers.Provider{p}, testConfig()).Search(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Offers)
	p.AssertNumberOfCalls(t, "Search", 2)
}

func TestAggregator_PartialFailure(t *testing.T) {
	ok := &mockProvider{name: "ok"}
	ok.On("Search", mock.Anything, req).Return(&models.ProviderResult{Offers: []models.Offer{{ProviderID: "1"}}}, nil)

	bad := &mockProvider{name: "bad"}
	bad.On("Search", mock.Anything, req).Return(nil, errors.New("boom"))

	result, err := NewAggregator([]providers.Provider{ok, bad}, testConfig()).Search(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Offers, 1)
	assert.Equal(t, []string{"bad"}, result.FailedProviders)
	bad.AssertNumberOfCalls(t, "Search", 3)
}

func TestAggregator_AllFail(t *testing.T) {
	bad := &mockProvider{name: "bad"}
	bad.On("Search", mock.Anything, req).Return(nil, errors.New("boom"))

	_, err := NewAggregator([]providers.Provider{bad}, testConfig()).Search(context.Background(), req)
	var perr *providers.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad", perr.Provider)
}

func TestAggregator_NoProviders(t *testing.T) {
	_, err := NewAggregator(nil, testConfig()).Search(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoProviders)

	var perr *providers.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "aggregator", perr.Provider)
}
