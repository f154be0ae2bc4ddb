// Package geocode looks up human-readable addresses for coordinates against a
// Nominatim-compatible endpoint. Lookups are best effort: callers treat any
// failure as "no address" and carry on.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a reverse-geocoding client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for the given base URL. An empty base URL yields a
// client whose lookups always fail, which the callers absorb.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Reverse returns the address for the given coordinates
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("geocode base url not configured")
	}

	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%f&lon=%f", c.BaseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode lookup returned status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.DisplayName, nil
}
