// Package history keeps the agent's most recent distinct searches.
package history

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/clock"
	"github.com/dharmasatrya/flightoffers/internal/criteria"
	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/store"
)

const MaxEntries = 5

type RecentSearches struct {
	kv    store.KV
	clock clock.Clock
	max   int
	mu    sync.Mutex
}

type Option func(*RecentSearches)

func WithClock(c clock.Clock) Option {
	return func(r *RecentSearches) {
		r.clock = c
	}
}

func NewRecentSearches(kv store.KV, opts ...Option) *RecentSearches {
	r := &RecentSearches{
		kv:    kv,
		clock: clock.NewSystem(),
		max:   MaxEntries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DedupKey identifies "the same search" regardless of display labels or
// markup.
func DedupKey(c models.SearchCriteria) string {
	parts := []string{
		criteria.ExtractCode(c.Origin),
		criteria.ExtractCode(c.Destination),
		c.DepartureDate,
		c.ReturnDateValue(),
		string(c.TripType),
		strconv.Itoa(c.Passengers.Adults),
		strconv.Itoa(c.Passengers.Children),
		strconv.Itoa(c.Passengers.Infants),
		strings.ToUpper(c.CabinClass),
		strconv.FormatBool(c.DirectOnly),
	}
	for _, l := range c.Legs {
		parts = append(parts, criteria.ExtractCode(l.Origin)+">"+criteria.ExtractCode(l.Destination)+"@"+l.Date)
	}
	return strings.Join(parts, "|")
}

// Record moves the search to the front of the list, replacing any entry
// with the same dedup key, and keeps at most MaxEntries.
func (r *RecentSearches) Record(ctx context.Context, c models.SearchCriteria) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := models.RecentSearchEntry{
		Criteria:   criteria.Clone(c),
		SearchedAt: r.clock.Now().Format(time.RFC3339),
		Key:        DedupKey(c),
	}

	entries := []models.RecentSearchEntry{entry}
	for _, e := range r.load(ctx) {
		if e.Key == entry.Key {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > r.max {
		entries = entries[:r.max]
	}

	return store.SetJSON(ctx, r.kv, store.KeyRecentSearches, entries)
}

// List returns the stored searches, newest first.
func (r *RecentSearches) List(ctx context.Context) []models.RecentSearchEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(ctx)
}

func (r *RecentSearches) load(ctx context.Context) []models.RecentSearchEntry {
	var stored []any
	if !store.GetJSON(ctx, r.kv, store.KeyRecentSearches, &stored) {
		return []models.RecentSearchEntry{}
	}

	seen := map[string]bool{}
	entries := make([]models.RecentSearchEntry, 0, len(stored))
	for _, item := range stored {
		e, ok := coerceEntry(item)
		if !ok || seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		entries = append(entries, e)
		if len(entries) == r.max {
			break
		}
	}
	return entries
}

// coerceEntry accepts the current {criteria, searched_at} shape as well as
// older flat entries that stored criteria fields at the top level.
func coerceEntry(item any) (models.RecentSearchEntry, bool) {
	doc, ok := item.(map[string]any)
	if !ok {
		return models.RecentSearchEntry{}, false
	}

	fields := doc
	if nested, ok := doc["criteria"].(map[string]any); ok {
		fields = nested
	}

	c := criteria.Coerce(criteria.FromMap(fields))
	if c.Origin == "" && c.Destination == "" {
		return models.RecentSearchEntry{}, false
	}

	searchedAt, _ := doc["searched_at"].(string)
	if searchedAt == "" {
		searchedAt, _ = doc["timestamp"].(string)
	}

	return models.RecentSearchEntry{
		Criteria:   c,
		SearchedAt: searchedAt,
		Key:        DedupKey(c),
	}, true
}
