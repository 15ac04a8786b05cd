package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// HTTPProvider queries a flight-offers search endpoint. Timeouts belong to
// the supplied client and the caller's context.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
	}, nil
}

func (p *HTTPProvider) Name() string {
	return "http"
}

func (p *HTTPProvider) Search(ctx context.Context, req models.ProviderRequest) (*models.ProviderResult, error) {
	q := url.Values{}
	q.Set("originLocationCode", req.Origin)
	q.Set("destinationLocationCode", req.Destination)
	q.Set("departureDate", req.DepartureDate)
	q.Set("adults", strconv.Itoa(req.Adults))
	if req.Children > 0 {
		q.Set("children", strconv.Itoa(req.Children))
	}
	if req.Infants > 0 {
		q.Set("infants", strconv.Itoa(req.Infants))
	}
	if req.CabinClass != "" {
		q.Set("travelClass", req.CabinClass)
	}
	q.Set("nonStop", strconv.FormatBool(req.NonStop))
	if req.Currency != "" {
		q.Set("currencyCode", req.Currency)
	}
	if req.Max > 0 {
		q.Set("max", strconv.Itoa(req.Max))
	}
	for _, leg := range req.Legs {
		q.Add("leg", leg.Origin+","+leg.Destination+","+leg.Date)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewProviderError(p.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var parsed offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewProviderError(p.Name(), fmt.Errorf("decode response: %w", err))
	}

	return normalizeAll(p.Name(), parsed), nil
}
