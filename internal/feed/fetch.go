// Package feed downloads and decodes the JSON events feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

var (
	// ErrFetch is returned when the feed cannot be retrieved.
	ErrFetch = errors.New("feed fetch failed")
	// ErrDecode is returned when the feed body is not a JSON array of events.
	ErrDecode = errors.New("feed decode failed")
)

const userAgent = "eventcal/1.0 (+https://github.com/bigfoott/ScrapedDuck)"

// Fetcher retrieves the events feed over HTTP.
type Fetcher struct {
	client   *http.Client
	url      string
	validate *validator.Validate
}

// NewFetcher creates a Fetcher for url. A zero timeout falls back to 30s.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewFetcherWithClient(url, &http.Client{Timeout: timeout})
}

// NewFetcherWithClient is like NewFetcher but uses the given client.
func NewFetcherWithClient(url string, client *http.Client) *Fetcher {
	return &Fetcher{
		client:   client,
		url:      url,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Fetch downloads the feed and returns its valid records in feed order.
// Records missing required fields, or that fail to decode individually, are
// dropped with a warning.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.SourceEvent, error) {
	body, err := f.download(ctx)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	events := make([]model.SourceEvent, 0, len(raw))
	dropped := 0
	for i, msg := range raw {
		var ev model.SourceEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			appLog.Warn("feed record skipped: decode", "index", i, "error", err.Error())
			dropped++
			continue
		}
		if err := f.validate.Struct(ev); err != nil {
			appLog.Warn("feed record skipped: missing fields", "index", i, "event_id", ev.EventID, "error", err.Error())
			dropped++
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("feed decoded", "url", redactURL(f.url), "events", len(events), "dropped", dropped)
	return events, nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, fmt.Errorf("%w: feed URL is empty", ErrFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	appLog.Info("feed fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	appLog.Info("feed fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "size", humanize.Bytes(uint64(len(body))))
	return body, nil
}

// redactURL hides everything after the host for logging purposes.
//
//	https://example.com/path/to/feed.json?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "feed://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
