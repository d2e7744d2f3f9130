// Package river fetches discharge and water temperature for USGS stations
// and falls back to the last cached reading when the service is unavailable.
package river

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"riverdash/internal/logging"
	"riverdash/internal/respcache"
	"riverdash/internal/upstream"
)

// ErrUnavailable means neither the service nor the cache produced a reading.
var ErrUnavailable = errors.New("river data unavailable")

const DefaultBaseURL = "https://waterservices.usgs.gov"

type Options struct {
	BaseURL string
	HTTP    *http.Client
	Cache   *respcache.Store
	Logger  *slog.Logger
	Breaker *gobreaker.CircuitBreaker
}

type Client struct {
	endpoint string
	http     *upstream.Client
	cache    *respcache.Store
	logger   *slog.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint: base + "/nwis/iv/",
		http: &upstream.Client{
			HTTP:    httpClient,
			Headers: map[string]string{"Accept": "application/json"},
			Breaker: opts.Breaker,
		},
		cache:  opts.Cache,
		logger: logging.Component(opts.Logger, "river"),
	}
}

func cacheKey(siteID string) string { return "usgs_" + siteID }

// FetchSite returns the current reading for siteID. On any upstream or parse
// failure it returns the cached reading (Cached=true) if one exists, else an
// error wrapping ErrUnavailable.
func (c *Client) FetchSite(ctx context.Context, siteID string) (*StationReading, error) {
	reading, err := c.fetch(ctx, siteID)
	if err == nil {
		if c.cache != nil {
			if perr := c.cache.Put(cacheKey(siteID), reading); perr != nil {
				c.logger.Warn("cache write failed", "site_id", siteID, "error", perr)
			}
		}
		return reading, nil
	}

	c.logger.Warn("usgs fetch failed", "site_id", siteID, "error", err)
	cached, cerr := c.Cached(siteID)
	if cerr != nil {
		return nil, fmt.Errorf("site %s: %w", siteID, errors.Join(ErrUnavailable, err))
	}
	c.logger.Info("serving cached river reading", "site_id", siteID, "timestamp", cached.Timestamp)
	return cached, nil
}

// FetchSites fetches each site in order. Sites with no data are left out.
func (c *Client) FetchSites(ctx context.Context, siteIDs []string) map[string]StationReading {
	out := make(map[string]StationReading, len(siteIDs))
	for _, id := range siteIDs {
		if ctx.Err() != nil {
			break
		}
		r, err := c.FetchSite(ctx, id)
		if err != nil {
			continue
		}
		out[id] = *r
	}
	return out
}

// Cached returns the last stored reading for siteID, or respcache.ErrMiss.
func (c *Client) Cached(siteID string) (*StationReading, error) {
	if c.cache == nil {
		return nil, respcache.ErrMiss
	}
	var r StationReading
	if err := c.cache.Get(cacheKey(siteID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) fetch(ctx context.Context, siteID string) (*StationReading, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", siteID)
	q.Set("parameterCd", paramDischarge+","+paramTemperature)
	q.Set("period", "P1D")

	var resp usgsResponse
	if err := c.http.GetJSON(ctx, c.endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return parseResponse(resp, siteID)
}
