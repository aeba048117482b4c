// Package geo resolves a client IP address to a coarse location.
//
// Lookups sit on the critical path of session creation, so every provider
// must fail fast and callers must treat any error as "no location" rather
// than propagating it.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// UnknownIP is the sentinel stored when no usable client address could be
// derived from the request. Providers are never asked to resolve it.
const UnknownIP = "unknown"

// Location is the result of one successful lookup. All fields may be empty.
type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	Region      string `json:"region"`
	Timezone    string `json:"timezone"`
}

// Provider resolves an IP address to a Location. Implementations must
// honour ctx cancellation and return an error instead of blocking.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// HTTPProvider queries an ip-api.com compatible JSON endpoint.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

// NewHTTPProvider creates a provider against the given base endpoint
// (e.g. "http://ip-api.com/json"). The timeout bounds the whole lookup.
func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// httpResponse mirrors the ip-api.com JSON payload fields we consume.
type httpResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	RegionName  string `json:"regionName"`
	Timezone    string `json:"timezone"`
}

// Lookup performs one HTTP geolocation query.
func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	if ip == "" || ip == UnknownIP {
		return nil, fmt.Errorf("no resolvable ip address")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/"+ip, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}

	if body.Status != "success" {
		return nil, fmt.Errorf("geo lookup failed for %s: %s", ip, body.Message)
	}

	return &Location{
		Country:     body.Country,
		CountryCode: body.CountryCode,
		City:        body.City,
		Region:      body.RegionName,
		Timezone:    body.Timezone,
	}, nil
}

// NoopProvider always fails the lookup. Used when geolocation is disabled;
// sessions are then stored with null geo fields.
type NoopProvider struct{}

// Lookup implements Provider.
func (NoopProvider) Lookup(_ context.Context, _ string) (*Location, error) {
	return nil, fmt.Errorf("geolocation disabled")
}
