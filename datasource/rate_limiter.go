package datasource

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"omni-weather/models"
)

// RateLimitedSource wraps a WeatherSource with rate limiting.
// Searches fire while the user types, so they get their own limiter and
// cannot starve forecast and history lookups.
type RateLimitedSource struct {
	source        WeatherSource
	searchLimiter *rate.Limiter
	fetchLimiter  *rate.Limiter
	name          string
}

// NewRateLimitedSource creates a rate limited source.
// searchRPS and fetchRPS are the maximum requests per second (can be fractional),
// burst is the maximum burst size allowed for each.
func NewRateLimitedSource(source WeatherSource, searchRPS, fetchRPS float64, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		source:        source,
		searchLimiter: rate.NewLimiter(rate.Limit(searchRPS), burst),
		fetchLimiter:  rate.NewLimiter(rate.Limit(fetchRPS), burst),
		name:          fmt.Sprintf("%s [Rate Limited]", source.Name()),
	}
}

// SearchLocations waits for the search limiter, then forwards
func (r *RateLimitedSource) SearchLocations(ctx context.Context, req SearchRequest) ([]models.Location, error) {
	if err := r.searchLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.SearchLocations(ctx, req)
}

// FetchForecast waits for the fetch limiter, then forwards
func (r *RateLimitedSource) FetchForecast(ctx context.Context, req ForecastRequest) (models.Forecast, error) {
	if err := r.fetchLimiter.Wait(ctx); err != nil {
		return models.Forecast{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.FetchForecast(ctx, req)
}

// FetchHistory waits for the fetch limiter, then forwards
func (r *RateLimitedSource) FetchHistory(ctx context.Context, req HistoryRequest) (models.History, error) {
	if err := r.fetchLimiter.Wait(ctx); err != nil {
		return models.History{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.FetchHistory(ctx, req)
}

// Name returns the provider name
func (r *RateLimitedSource) Name() string {
	return r.name
}

// Close closes the wrapped source if it holds resources
func (r *RateLimitedSource) Close() error {
	if c, ok := r.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Verify that the rate limited type implements the required interface
var _ WeatherSource = (*RateLimitedSource)(nil)
