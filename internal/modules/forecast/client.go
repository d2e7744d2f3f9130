// Package forecast fetches point forecasts from the National Weather Service
// and falls back to the last cached bundle when the service is unavailable.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"riverdash/internal/logging"
	"riverdash/internal/respcache"
	"riverdash/internal/upstream"
)

// ErrUnavailable means neither the service nor the cache produced a forecast.
var ErrUnavailable = errors.New("forecast unavailable")

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "(riverdash, contact@example.com)"
)

type Options struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
	Cache     *respcache.Store
	Logger    *slog.Logger
	Limiter   *rate.Limiter
	Breaker   *gobreaker.CircuitBreaker
}

type Client struct {
	baseURL string
	http    *upstream.Client
	cache   *respcache.Store
	logger  *slog.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: base,
		http: &upstream.Client{
			HTTP: httpClient,
			Headers: map[string]string{
				"User-Agent": ua,
				"Accept":     "application/geo+json, application/json",
			},
			Limiter: opts.Limiter,
			Breaker: opts.Breaker,
		},
		cache:  opts.Cache,
		logger: logging.Component(opts.Logger, "forecast"),
	}
}

func cacheKey(label string) string { return "nws_" + label }

// FetchForecast returns the forecast for the point, labelled name. On any
// failure it returns the cached bundle (Cached=true) if one exists, else an
// error wrapping ErrUnavailable.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, name string) (*Bundle, error) {
	b, err := c.fetch(ctx, lat, lon, name)
	if err == nil {
		if c.cache != nil {
			if perr := c.cache.Put(cacheKey(name), b); perr != nil {
				c.logger.Warn("cache write failed", "location", name, "error", perr)
			}
		}
		return b, nil
	}

	c.logger.Warn("nws fetch failed", "location", name, "error", err)
	cached, cerr := c.Cached(name)
	if cerr != nil {
		return nil, fmt.Errorf("location %s: %w", name, errors.Join(ErrUnavailable, err))
	}
	c.logger.Info("serving cached forecast", "location", name, "timestamp", cached.Timestamp)
	return cached, nil
}

// FetchLocations fetches each location in order, keyed by Label. Locations
// with no data are left out.
func (c *Client) FetchLocations(ctx context.Context, locs []Location) map[string]Bundle {
	out := make(map[string]Bundle, len(locs))
	for _, l := range locs {
		if ctx.Err() != nil {
			break
		}
		b, err := c.FetchForecast(ctx, l.Lat, l.Lon, l.Label())
		if err != nil {
			continue
		}
		out[l.Label()] = *b
	}
	return out
}

// Cached returns the last stored bundle for the label, or respcache.ErrMiss.
func (c *Client) Cached(name string) (*Bundle, error) {
	if c.cache == nil {
		return nil, respcache.ErrMiss
	}
	var b Bundle
	if err := c.cache.Get(cacheKey(name), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, name string) (*Bundle, error) {
	var points pointsResponse
	pointsURL := fmt.Sprintf("%s/points/%s,%s", c.baseURL, formatCoord(lat), formatCoord(lon))
	if err := c.http.GetJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	if points.Properties.Forecast == "" || points.Properties.ForecastHourly == "" {
		return nil, fmt.Errorf("%w: points response has no forecast urls", errMalformed)
	}

	var daily, hourly forecastResponse
	if err := c.http.GetJSON(ctx, points.Properties.Forecast, &daily); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	if err := c.http.GetJSON(ctx, points.Properties.ForecastHourly, &hourly); err != nil {
		return nil, fmt.Errorf("hourly forecast: %w", err)
	}
	return parseForecast(daily, hourly, name)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
