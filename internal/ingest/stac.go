package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"

	"github.com/arborlab/phenotrack/internal/circuitbreaker"
)

// ErrCatalogUnavailable means the catalog breaker is open and the call
// was rejected without touching the network.
var ErrCatalogUnavailable = errors.New("stac catalog unavailable")

// StatusError is a non-200 catalog response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stac search: %s returned status %d", e.URL, e.Code)
}

// HTTPStatus feeds breaker weighing.
func (e *StatusError) HTTPStatus() int { return e.Code }

// ndviAssetKey is the STAC asset every plan entry must carry.
const ndviAssetKey = "ndvi"

// searchPageLimit is the item page size requested from the catalog.
const searchPageLimit = 100

// maxSearchPages caps pagination so a catalog that keeps handing out
// next links cannot run the planner forever.
const maxSearchPages = 100

// BBox is (minLon, minLat, maxLon, maxLat), STAC axis order.
type BBox [4]float64

func (b BBox) String() string {
	parts := make([]string, 4)
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 comma-separated values, got %q", s)
	}
	var b BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox component %d: %w", i, err)
		}
		b[i] = v
	}
	return b, nil
}

// Item is one STAC item reduced to the fields the planner needs.
type Item struct {
	ID       string `json:"item_id"`
	Datetime string `json:"datetime"` // ISO datetime from item properties
	Href     string `json:"href"`     // NDVI asset href
}

// Client searches a STAC API. Search results are cached per
// (collection, year, bbox) so repeated planning runs within one process
// do not re-walk the catalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *otter.Cache[string, []Item]
	breaker    *circuitbreaker.Breaker
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	token    string
	cacheTTL time.Duration
	resolver *dnscache.Resolver
	client   *http.Client
	breaker  circuitbreaker.Options
}

// WithToken attaches a static bearer token to every catalog request.
func WithToken(token string) ClientOption {
	return func(c *clientConfig) { c.token = token }
}

// WithSearchCacheTTL overrides how long search results stay cached.
func WithSearchCacheTTL(ttl time.Duration) ClientOption {
	return func(c *clientConfig) { c.cacheTTL = ttl }
}

// WithResolver enables DNS caching for the catalog host.
func WithResolver(r *dnscache.Resolver) ClientOption {
	return func(c *clientConfig) { c.resolver = r }
}

// WithHTTPClient replaces the HTTP client entirely. Tests use this.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.client = hc }
}

// WithBreakerOptions overrides the catalog circuit breaker tuning.
func WithBreakerOptions(opts circuitbreaker.Options) ClientOption {
	return func(c *clientConfig) { c.breaker = opts }
}

// NewClient returns a Client for the STAC API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	cfg := clientConfig{cacheTTL: 10 * time.Minute, breaker: circuitbreaker.DefaultOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}
	hc := cfg.client
	if hc == nil {
		hc = newHTTPClient(cfg.token, cfg.resolver)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		cache: otter.Must(&otter.Options[string, []Item]{
			MaximumSize:      64,
			ExpiryCalculator: otter.ExpiryWriting[string, []Item](cfg.cacheTTL),
		}),
		breaker: circuitbreaker.New(cfg.breaker),
	}
}

// Search returns the NDVI items of a collection for one year and bbox.
// An item without a datetime or without an "ndvi" asset fails the whole
// search: a partial plan would silently produce gappy NDVI stacks.
func (c *Client) Search(ctx context.Context, collection string, year int, bbox BBox) ([]Item, error) {
	cacheKey := fmt.Sprintf("%s:%d:%s", collection, year, bbox)
	if items, ok := c.cache.GetIfPresent(cacheKey); ok {
		return items, nil
	}

	q := url.Values{}
	q.Set("collections", collection)
	q.Set("bbox", bbox.String())
	q.Set("datetime", fmt.Sprintf("%d-01-01T00:00:00Z/%d-12-31T23:59:59Z", year, year))
	q.Set("limit", strconv.Itoa(searchPageLimit))
	next := c.baseURL + "/search?" + q.Encode()

	var items []Item
	for page := 0; next != ""; page++ {
		if page >= maxSearchPages {
			return nil, fmt.Errorf("stac search exceeded %d pages", maxSearchPages)
		}
		body, err := c.fetch(ctx, next)
		if err != nil {
			return nil, err
		}

		var parseErr error
		gjson.GetBytes(body, "features").ForEach(func(_, feature gjson.Result) bool {
			item, err := parseItem(feature)
			if err != nil {
				parseErr = err
				return false
			}
			items = append(items, item)
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}

		next = nextLink(body)
	}

	c.cache.Set(cacheKey, items)
	return items, nil
}

// fetch performs one catalog GET behind the circuit breaker.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, ErrCatalogUnavailable
	}
	body, err := c.doFetch(ctx, rawURL)
	if err != nil {
		c.breaker.RecordError(circuitbreaker.Weigh(err))
		return nil, err
	}
	c.breaker.RecordSuccess()
	return body, nil
}

func (c *Client) doFetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stac search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stac search: read body: %w", err)
	}
	return body, nil
}

func parseItem(feature gjson.Result) (Item, error) {
	id := feature.Get("id").String()

	dt := feature.Get("properties.datetime").String()
	if dt == "" {
		// Interval items carry start/end instead of a single datetime.
		dt = feature.Get("properties.start_datetime").String()
	}
	if dt == "" {
		dt = feature.Get("properties.end_datetime").String()
	}
	if dt == "" {
		return Item{}, fmt.Errorf("stac item %q missing datetime fields", id)
	}

	href := feature.Get("assets." + ndviAssetKey + ".href").String()
	if href == "" {
		var keys []string
		feature.Get("assets").ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return true
		})
		return Item{}, fmt.Errorf("stac item %q has no %q asset (assets: %v)", id, ndviAssetKey, keys)
	}

	return Item{ID: id, Datetime: dt, Href: href}, nil
}

func nextLink(body []byte) string {
	var href string
	gjson.GetBytes(body, "links").ForEach(func(_, link gjson.Result) bool {
		if link.Get("rel").String() == "next" {
			href = link.Get("href").String()
			return false
		}
		return true
	})
	return href
}
