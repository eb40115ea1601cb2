// Package news fetches a handful of top headlines for the user's
// country from a newsapi.org compatible endpoint.
package news

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
var ErrNotConfigured = errors.New("news API key is not configured")

// Headline is one article, reduced to what the agent needs.
type Headline struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// Client calls the news API.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a news client. baseURL empty uses the public
// endpoint; five headlines per fetch.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pageSize:   5,
		httpClient: httpkit.NewClient(),
	}
}

type apiResponse struct {
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// TopHeadlines returns the top headlines for a two-letter country code.
func (c *Client) TopHeadlines(ctx context.Context, countryCode string) ([]Headline, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(countryCode) == "" {
		return nil, errors.New("country code is not set")
	}

	q := url.Values{}
	q.Set("country", countryCode)
	q.Set("apiKey", c.apiKey)
	q.Set("pageSize", fmt.Sprint(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	headlines := make([]Headline, 0, len(body.Articles))
	for _, a := range body.Articles {
		headlines = append(headlines, Headline{Title: a.Title, Source: a.Source.Name})
	}
	return headlines, nil
}
