package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type Limit struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultLimit() Limit {
	return Limit{
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

// ProviderLimiter throttles offer searches per provider so bursts of
// date-shift requests stay inside the provider's quota. Providers without
// an explicit limit share the default settings, each with its own bucket.
type ProviderLimiter struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	fallback Limit
}

func NewProviderLimiter(fallback Limit) *ProviderLimiter {
	return &ProviderLimiter{
		buckets:  make(map[string]*rate.Limiter),
		fallback: fallback,
	}
}

func NewProviderLimiterWithDefaults() *ProviderLimiter {
	return NewProviderLimiter(DefaultLimit())
}

func (p *ProviderLimiter) For(provider string) *rate.Limiter {
	p.mu.RLock()
	bucket, ok := p.buckets[provider]
	p.mu.RUnlock()
	if ok {
		return bucket
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if bucket, ok = p.buckets[provider]; ok {
		return bucket
	}
	bucket = newBucket(p.fallback)
	p.buckets[provider] = bucket
	return bucket
}

func (p *ProviderLimiter) Configure(provider string, l Limit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buckets[provider] = newBucket(l)
}

func (p *ProviderLimiter) Wait(ctx context.Context, provider string) error {
	return p.For(provider).Wait(ctx)
}

func newBucket(l Limit) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.RequestsPerSecond), l.BurstSize)
}
