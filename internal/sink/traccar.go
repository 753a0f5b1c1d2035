package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// Traccar forwards positions to a Traccar server using the OsmAnd protocol:
// a plain GET with id, lat and lon query parameters.
type Traccar struct {
	base   *url.URL
	client *http.Client
}

// StatusError is returned when Traccar answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("traccar: unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

func NewTraccar(rawURL string, timeout time.Duration) (*Traccar, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("traccar url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("traccar url: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &Traccar{base: u, client: &http.Client{Timeout: timeout}}, nil
}

func (t *Traccar) Name() string { return "traccar" }

// URL returns the request URL for r.
func (t *Traccar) URL(r station.Report) string {
	u := *t.base
	q := u.Query()
	q.Set("id", r.ID)
	q.Set("lat", formatCoord(r.Latitude))
	q.Set("lon", formatCoord(r.Longitude))
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *Traccar) Send(ctx context.Context, r station.Report) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(r), nil)
	if err != nil {
		return fmt.Errorf("traccar: build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("traccar: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (t *Traccar) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// formatCoord renders the shortest decimal form, e.g. 135.569 rather than
// 135.569000.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
