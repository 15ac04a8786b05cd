package aggregator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/providers"
	"github.com/dharmasatrya/flightoffers/internal/ratelimit"
)

var ErrNoProviders = errors.New("no offer providers configured")

type Config struct {
	// Timeout of zero leaves expiry to the caller's context.
	Timeout     time.Duration
	MaxRetries  int
	RetryDelays []time.Duration
	RateLimiter *ratelimit.ProviderLimiter
}

type Aggregator struct {
	providers []providers.Provider
	config    Config
}

type Result struct {
	Offers             []models.Offer
	Carriers           map[string]string
	ProvidersQueried   int
	ProvidersSucceeded int
	ProvidersFailed    int
	FailedProviders    []string
}

func NewAggregator(providerList []providers.Provider, config Config) *Aggregator {
	return &Aggregator{
		providers: providerList,
		config:    config,
	}
}

// Search queries every provider concurrently and merges their offers and
// carrier dictionaries. It fails only when every provider fails.
func (a *Aggregator) Search(ctx context.Context, req models.ProviderRequest) (*Result, error) {
	if len(a.providers) == 0 {
		return nil, providers.NewProviderError("aggregator", ErrNoProviders)
	}

	searchCtx := ctx
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	result := &Result{
		Offers:           make([]models.Offer, 0),
		Carriers:         make(map[string]string),
		ProvidersQueried: len(a.providers),
	}

	type providerResult struct {
		provider string
		result   *models.ProviderResult
		err      error
	}

	resultCh := make(chan providerResult, len(a.providers))
	var wg sync.WaitGroup

	for _, p := range a.providers {
		wg.Add(1)
		go func(provider providers.Provider) {
			defer wg.Done()

			if a.config.RateLimiter != nil {
				if err := a.config.RateLimiter.Wait(searchCtx, provider.Name()); err != nil {
					resultCh <- providerResult{
						provider: provider.Name(),
						err:      providers.NewProviderError(provider.Name(), err),
					}
					return
				}
			}

			res, err := a.searchWithRetry(searchCtx, provider, req)
			resultCh <- providerResult{
				provider: provider.Name(),
				result:   res,
				err:      err,
			}
		}(p)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var lastErr error
	for pr := range resultCh {
		if pr.err != nil {
			log.Printf("Provider %s failed: %v", pr.provider, pr.err)
			result.ProvidersFailed++
			result.FailedProviders = append(result.FailedProviders, pr.provider)
			lastErr = pr.err
			continue
		}

		result.ProvidersSucceeded++
		if pr.result == nil {
			continue
		}
		result.Offers = append(result.Offers, pr.result.Offers...)
		for code, name := range pr.result.Carriers {
			if name != "" {
				result.Carriers[code] = name
			}
		}
	}

	if result.ProvidersSucceeded == 0 {
		var perr *providers.ProviderError
		if errors.As(lastErr, &perr) {
			return nil, lastErr
		}
		return nil, providers.NewProviderError("aggregator", lastErr)
	}

	return result, nil
}

func (a *Aggregator) searchWithRetry(ctx context.Context, provider providers.Provider, req models.ProviderRequest) (*models.ProviderResult, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, providers.NewProviderError(provider.Name(), ctx.Err())
		default:
		}

		if attempt > 0 && len(a.config.RetryDelays) > 0 {
			delayIdx := attempt - 1
			if delayIdx >= len(a.config.RetryDelays) {
				delayIdx = len(a.config.RetryDelays) - 1
			}
			delay := a.config.RetryDelays[delayIdx]

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, providers.NewProviderError(provider.Name(), ctx.Err())
			}
		}

		res, err := provider.Search(ctx, req)
		if err == nil {
			return res, nil
		}

		lastErr = err
		log.Printf("Provider %s attempt %d failed: %v", provider.Name(), attempt+1, err)
	}

	var perr *providers.ProviderError
	if errors.As(lastErr, &perr) {
		return nil, lastErr
	}
	return nil, providers.NewProviderError(provider.Name(), lastErr)
}
