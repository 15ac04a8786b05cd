package models

import "time"

type SelectionStage string

const (
	StageIdle           SelectionStage = "idle"
	StageOutboundChosen SelectionStage = "outbound_chosen"
	StageComplete       SelectionStage = "complete"
)

type SelectionState struct {
	Outbound *Offer         `json:"outbound"`
	Return   *Offer         `json:"return"`
	Stage    SelectionStage `json:"stage"`
}

// BookingHandoff is the snapshot emitted on "buy" for the external booking
// flow to pick up.
type BookingHandoff struct {
	ID            string         `json:"id"`
	OutboundOffer Offer          `json:"outbound_offer"`
	ReturnOffer   *Offer         `json:"return_offer"`
	TotalPrice    float64        `json:"total_price"`
	Criteria      SearchCriteria `json:"criteria"`
	CreatedAt     time.Time      `json:"created_at"`
}

type RecentSearchEntry struct {
	Criteria   SearchCriteria `json:"criteria"`
	SearchedAt string         `json:"searched_at"`
	Key        string         `json:"key"`
}

type SearchMetadata struct {
	OutboundResults int      `json:"outbound_results"`
	ReturnResults   int      `json:"return_results"`
	FailedProviders []string `json:"failed_providers,omitempty"`
	SearchTimeMs    int64    `json:"search_time_ms"`
	NoOffersFound   bool     `json:"no_offers_found"`
}

type FilterOptions struct {
	Airlines []string `json:"airlines"`
	Baggage  []string `json:"baggage"`
	Cabins   []string `json:"cabins"`
}

type SessionView struct {
	ID             string            `json:"id"`
	Criteria       *SearchCriteria   `json:"criteria,omitempty"`
	OutboundOffers []Offer           `json:"outbound_offers"`
	ReturnOffers   []Offer           `json:"return_offers"`
	Filters        OfferFilters      `json:"filters"`
	FilterOptions  FilterOptions     `json:"filter_options"`
	Bounds         PriceBounds       `json:"price_bounds"`
	SortBy         string            `json:"sort_by"`
	Selection      SelectionState    `json:"selection"`
	Total          float64           `json:"total"`
	CanBuy         bool              `json:"can_buy"`
	Carriers       map[string]string `json:"carriers,omitempty"`
	Metadata       SearchMetadata    `json:"metadata"`
	Error          *ErrorResponse    `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
