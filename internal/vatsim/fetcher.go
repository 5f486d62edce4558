// Package vatsim downloads and parses the VATSIM presence feed.
package vatsim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"towerwatch/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError is any network, HTTP, or parse failure while retrieving the
// presence feed. It surfaces as the error aggregate status and is retried
// on the next poll cycle; the fetcher itself never retries.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch presence feed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the list of currently connected controllers.
type Fetcher struct {
	client  HTTPClient
	url     string
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client and feed URL.
func New(client HTTPClient, url string) *Fetcher {
	return &Fetcher{
		client:  client,
		url:     url,
		timeout: 10 * time.Second,
	}
}

type feedController struct {
	CID       int    `json:"cid"`
	Callsign  string `json:"callsign"`
	Frequency string `json:"frequency"`
	Name      string `json:"name"`
	Rating    int    `json:"rating"`
	LogonTime string `json:"logon_time"`
}

type feedDocument struct {
	Controllers []feedController `json:"controllers"`
}

// Fetch performs one GET of the presence feed and returns every listed
// controller. Any failure is a *FetchError; a non-2xx response or
// malformed payload never yields a partial result.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", "TowerWatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("read body: %w", err)}
	}

	var doc feedDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("parse feed: %w", err)}
	}

	controllers := make([]model.Controller, 0, len(doc.Controllers))
	for _, fc := range doc.Controllers {
		controllers = append(controllers, model.Controller{
			CID:       fc.CID,
			Callsign:  fc.Callsign,
			Frequency: fc.Frequency,
			Name:      fc.Name,
			Rating:    fc.Rating,
			LogonTime: parseLogonTime(fc.LogonTime),
		})
	}
	return controllers, nil
}

// parseLogonTime is lenient: connection start times are cosmetic, so an
// unparseable value becomes the zero time instead of failing the fetch.
func parseLogonTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
