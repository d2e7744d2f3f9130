package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"riverdash/internal/config"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/river"
	"riverdash/internal/respcache"
	"riverdash/internal/upstream"
)

const breakerCooldown = 2 * time.Minute

// Clients are the upstream data clients sharing one response cache.
type Clients struct {
	Cache    *respcache.Store
	Rivers   *river.Client
	Forecast *forecast.Client
}

func NewClients(cfg config.Config, logger *slog.Logger) (*Clients, error) {
	cache, err := respcache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	return &Clients{
		Cache: cache,
		Rivers: river.NewClient(river.Options{
			BaseURL: cfg.USGSBaseURL,
			HTTP:    httpClient,
			Cache:   cache,
			Logger:  logger,
			Breaker: upstream.NewBreaker("usgs", breakerCooldown),
		}),
		Forecast: forecast.NewClient(forecast.Options{
			BaseURL:   cfg.NWSBaseURL,
			UserAgent: cfg.NWSUserAgent,
			HTTP:      httpClient,
			Cache:     cache,
			Logger:    logger,
			Limiter:   rate.NewLimiter(rate.Limit(cfg.NWSRatePerSec), 1),
			Breaker:   upstream.NewBreaker("nws", breakerCooldown),
		}),
	}, nil
}
