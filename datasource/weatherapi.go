package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"omni-weather/models"
)

// DefaultBaseURL is the WeatherAPI.com v1 endpoint root
const DefaultBaseURL = "https://api.weatherapi.com/v1"

const (
	endpointForecast = "/forecast.json"
	endpointSearch   = "/search.json"
	endpointHistory  = "/history.json"

	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

// WeatherAPIClient implements WeatherSource against WeatherAPI.com
type WeatherAPIClient struct {
	apiKey   string
	http     *resty.Client
	logger   *zap.Logger
	observer Observer
}

// Ensure WeatherAPIClient implements WeatherSource
var _ WeatherSource = (*WeatherAPIClient)(nil)

// ClientOption customises a WeatherAPIClient
type ClientOption func(*WeatherAPIClient)

// WithBaseURL points the client at another host, e.g. a test server
func WithBaseURL(baseURL string) ClientOption {
	return func(c *WeatherAPIClient) {
		if baseURL != "" {
			c.http.SetBaseURL(baseURL)
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests bounded only by their context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *WeatherAPIClient) {
		c.http.SetTimeout(d)
	}
}

// WithLogger sets the logger used for request failures
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *WeatherAPIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports every finished request to o
func WithObserver(o Observer) ClientOption {
	return func(c *WeatherAPIClient) {
		c.observer = o
	}
}

// NewWeatherAPIClient creates a client for the given API key
func NewWeatherAPIClient(apiKey string, opts ...ClientOption) *WeatherAPIClient {
	c := &WeatherAPIClient{
		apiKey: apiKey,
		http: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(10 * time.Second),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetLogger(c.logger.Sugar())
	return c
}

// Name returns the provider name
func (c *WeatherAPIClient) Name() string {
	return "WeatherAPI"
}

// Close releases the underlying transport
func (c *WeatherAPIClient) Close() error {
	return c.http.Close()
}

type forecastResponse struct {
	Location models.Location `json:"location"`
	Current  models.Current  `json:"current"`
	Forecast struct {
		ForecastDay []models.ForecastDay `json:"forecastday"`
	} `json:"forecast"`
}

// FetchForecast gets current conditions and the daily forecast for a city
func (c *WeatherAPIClient) FetchForecast(ctx context.Context, req ForecastRequest) (models.Forecast, error) {
	params, err := req.params()
	if err != nil {
		return models.Forecast{}, err
	}

	start := time.Now()
	var resp forecastResponse
	if err := c.get(ctx, endpointForecast, params, &resp); err != nil {
		c.observe(endpointForecast, outcomeOf(err), start)
		return models.Forecast{}, err
	}

	if resp.Location.Name == "" {
		c.observe(endpointForecast, outcomeEmpty, start)
		return models.Forecast{}, fmt.Errorf("%w: forecast for %q has no location", ErrNoData, params["q"])
	}

	c.observe(endpointForecast, outcomeOK, start)
	return models.Forecast{
		Location: resp.Location,
		Current:  resp.Current,
		Days:     resp.Forecast.ForecastDay,
	}, nil
}

// SearchLocations returns the provider's candidates for a partial name.
// No match is an empty slice, not an error.
func (c *WeatherAPIClient) SearchLocations(ctx context.Context, req SearchRequest) ([]models.Location, error) {
	params, err := req.params()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var locations []models.Location
	if err := c.get(ctx, endpointSearch, params, &locations); err != nil {
		if errors.Is(err, ErrNoData) {
			c.observe(endpointSearch, outcomeEmpty, start)
			return []models.Location{}, nil
		}
		c.observe(endpointSearch, outcomeError, start)
		return nil, err
	}

	if len(locations) == 0 {
		c.observe(endpointSearch, outcomeEmpty, start)
		return []models.Location{}, nil
	}
	c.observe(endpointSearch, outcomeOK, start)
	return locations, nil
}

// FetchHistory gets the recorded weather of a city on one date
func (c *WeatherAPIClient) FetchHistory(ctx context.Context, req HistoryRequest) (models.History, error) {
	params, err := req.params()
	if err != nil {
		return models.History{}, err
	}

	start := time.Now()
	var resp forecastResponse
	if err := c.get(ctx, endpointHistory, params, &resp); err != nil {
		c.observe(endpointHistory, outcomeOf(err), start)
		return models.History{}, err
	}

	if len(resp.Forecast.ForecastDay) == 0 {
		c.observe(endpointHistory, outcomeEmpty, start)
		return models.History{}, fmt.Errorf("%w: no history for %q on %s", ErrNoData, params["q"], params["dt"])
	}

	c.observe(endpointHistory, outcomeOK, start)
	return models.History{
		Location: resp.Location,
		Day:      resp.Forecast.ForecastDay[0],
	}, nil
}

// get performs one GET and decodes the body into out
func (c *WeatherAPIClient) get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("key", c.apiKey).
		Get(endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("weather api request canceled", zap.String("endpoint", endpoint), zap.String("q", params["q"]))
		} else {
			c.logger.Warn("weather api request failed", zap.String("endpoint", endpoint), zap.String("q", params["q"]), zap.Error(err))
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}

	body := resp.Bytes()
	if status := resp.StatusCode(); status < 200 || status > 299 {
		apiErr := parseAPIError(status, body)
		if apiErr.Code == codeNoMatchingLocation {
			return fmt.Errorf("%w: %s", ErrNoData, apiErr.Message)
		}
		c.logger.Warn("weather api returned an error",
			zap.String("endpoint", endpoint),
			zap.String("q", params["q"]),
			zap.Int("status", status),
			zap.Int("code", apiErr.Code),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("weather api response could not be parsed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *WeatherAPIClient) observe(endpoint, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, outcome, time.Since(start))
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrNoData) {
		return outcomeEmpty
	}
	return outcomeError
}
