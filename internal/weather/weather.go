// Package weather fetches current conditions from a weatherapi.com
// compatible endpoint. Read-only: the agent uses conditions to reason
// about cooling and heating load.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ParamSingh24/PrakashAI/internal/httpkit"
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("weather API key is not configured")

// Current is the condition snapshot the agent sees.
type Current struct {
	Location           string  `json:"location"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
	Condition          string  `json:"condition"`
	HumidityPercent    int     `json:"humidity_percent"`
}

// Client calls the weather API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a weather client. baseURL empty uses the public
// endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.weatherapi.com/v1"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpkit.NewClient(),
	}
}

type apiResponse struct {
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
		Humidity int `json:"humidity"`
	} `json:"current"`
}

// Fetch returns current conditions for the given location query.
func (c *Client) Fetch(ctx context.Context, location string) (Current, error) {
	if c.apiKey == "" {
		return Current{}, ErrNotConfigured
	}
	if strings.TrimSpace(location) == "" {
		return Current{}, errors.New("location is not set")
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return Current{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Current{}, fmt.Errorf("fetch weather: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return Current{}, fmt.Errorf("weather API status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Current{}, fmt.Errorf("decode weather response: %w", err)
	}

	return Current{
		Location:           body.Location.Name,
		TemperatureCelsius: body.Current.TempC,
		Condition:          body.Current.Condition.Text,
		HumidityPercent:    body.Current.Humidity,
	}, nil
}
