package datasource

import (
	"context"
	"time"

	"omni-weather/models"
)

// LocationSearcher resolves a partial city name into candidate locations
type LocationSearcher interface {
	SearchLocations(ctx context.Context, req SearchRequest) ([]models.Location, error)
}

// ForecastSource fetches current conditions plus a daily forecast for a city
type ForecastSource interface {
	FetchForecast(ctx context.Context, req ForecastRequest) (models.Forecast, error)
}

// HistorySource fetches the recorded weather of a city on one date
type HistorySource interface {
	FetchHistory(ctx context.Context, req HistoryRequest) (models.History, error)
}

// WeatherSource is a provider that serves all three lookups
type WeatherSource interface {
	LocationSearcher
	ForecastSource
	HistorySource

	// Name returns the provider's name
	Name() string
}

// Observer receives one call per finished API request.
// outcome is one of "ok", "empty" or "error".
type Observer interface {
	ObserveRequest(endpoint, outcome string, elapsed time.Duration)
}
