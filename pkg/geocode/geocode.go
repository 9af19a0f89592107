// Package geocode resolves coordinates to short human-readable place
// names using the OpenStreetMap Nominatim API.
//
// Lookups are best-effort: [Client.Reverse] returns a [Result] instead
// of an error so a failed or slow lookup degrades the caller to "no
// location name" rather than failing its request. Results are cached
// by coordinates rounded to four decimals (roughly 11 meters), and
// upstream calls are paced to at most one per second per Nominatim's
// usage policy.
package geocode

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout bounds one reverse lookup.
	DefaultTimeout = 5 * time.Second

	// DefaultInterval spaces upstream calls. Nominatim allows at most
	// one request per second.
	DefaultInterval = time.Second

	// Nominatim rejects clients without an identifying User-Agent.
	userAgent = "earshot/1.0"

	// cacheSize caps the result cache. A full cache stops inserting;
	// entries are never evicted.
	cacheSize = 1000
)

type cacheKey struct {
	lat, lon float64
}

// Result is the outcome of one best-effort lookup. Err carries the
// diagnostic when the lookup failed; Name may be empty even on success
// when Nominatim resolves nothing at the coordinates.
type Result struct {
	Name string
	Err  error
}

// Client is a reverse-geocoding client. Safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	interval time.Duration
	log      *slog.Logger
	cacheCap int

	mu    sync.Mutex
	cache map[cacheKey]string
	next  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

// WithInterval overrides the minimum spacing between upstream calls.
func WithInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a reverse-geocoding client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		interval: DefaultInterval,
		cacheCap: cacheSize,
		cache:    make(map[cacheKey]string),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Reverse resolves coordinates to a place name like
// "1600 Larimer Street, Denver, CO". Failures are logged and returned
// as the Result diagnostic, never as an error the caller must handle.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) Result {
	key := cacheKey{lat: round4(lat), lon: round4(lon)}

	c.mu.Lock()
	if name, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return Result{Name: name}
	}
	c.mu.Unlock()

	if err := c.pace(ctx); err != nil {
		return Result{Err: err}
	}

	name, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.log.Warn("reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		return Result{Err: err}
	}

	// Empty names are cached too, so unresolvable coordinates are not
	// retried on every chunk.
	c.mu.Lock()
	if len(c.cache) < c.cacheCap {
		c.cache[key] = name
	}
	c.mu.Unlock()

	c.log.Debug("reverse geocoded", "lat", lat, "lon", lon, "location", name)
	return Result{Name: name}
}

// pace reserves the next upstream call slot and waits out the spacing
// to the previous one. The lock is released before waiting.
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.next = now.Add(wait + c.interval)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// response is the subset of a Nominatim reverse payload we read.
type response struct {
	Error       string  `json:"error"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Hamlet        string `json:"hamlet"`
	Village       string `json:"village"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Municipality  string `json:"municipality"`
	State         string `json:"state"`
	CountryCode   string `json:"country_code"`
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	// Zoom 18 is building-level detail.
	q.Set("zoom", "18")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("geocode: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode: unexpected status %s", resp.Status)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("geocode: decode response: %w", err)
	}
	if r.Error != "" {
		// Nothing at these coordinates (open ocean, bad fix).
		return "", nil
	}
	return formatName(r), nil
}

// formatName composes a concise name from the most specific address
// parts available: street (or neighbourhood-level area), city, state.
// US states are abbreviated. With no usable parts it falls back to the
// first three segments of the display name.
func formatName(r response) string {
	var parts []string

	switch {
	case r.Address.Road != "" && r.Address.HouseNumber != "":
		parts = append(parts, r.Address.HouseNumber+" "+r.Address.Road)
	case r.Address.Road != "":
		parts = append(parts, r.Address.Road)
	default:
		for _, area := range []string{r.Address.Neighbourhood, r.Address.Suburb, r.Address.Hamlet, r.Address.Village} {
			if area != "" {
				parts = append(parts, area)
				break
			}
		}
	}

	if city := cmp.Or(r.Address.City, r.Address.Town, r.Address.Municipality); city != "" {
		parts = append(parts, city)
	}

	if state := r.Address.State; state != "" {
		if strings.EqualFold(r.Address.CountryCode, "us") {
			state = abbreviateUSState(state)
		}
		parts = append(parts, state)
	}

	if len(parts) == 0 {
		if r.DisplayName == "" {
			return ""
		}
		head := strings.Split(r.DisplayName, ", ")
		if len(head) > 3 {
			head = head[:3]
		}
		return strings.Join(head, ", ")
	}
	return strings.Join(parts, ", ")
}

// round4 rounds to four decimals so nearby fixes share a cache entry.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
