package datasource

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultForecastDays is the number of days the app asks for
	DefaultForecastDays = 8
	// MaxForecastDays is the provider's upper bound
	MaxForecastDays = 14

	// DateLayout is the ISO date format used by the history endpoint
	DateLayout = "2006-01-02"
)

// earliestHistory is the first date the provider keeps history for
var earliestHistory = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// ForecastRequest asks for the forecast of a city
type ForecastRequest struct {
	City string
	Days int // 0 means DefaultForecastDays
}

// Validate checks the request without applying defaults
func (r ForecastRequest) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if r.Days < 1 || r.Days > MaxForecastDays {
		return fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidRequest, MaxForecastDays, r.Days)
	}
	return nil
}

func (r ForecastRequest) params() (map[string]string, error) {
	if r.Days == 0 {
		r.Days = DefaultForecastDays
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return map[string]string{
		"q":      strings.TrimSpace(r.City),
		"days":   strconv.Itoa(r.Days),
		"aqi":    "no",
		"alerts": "no",
	}, nil
}

// SearchRequest asks for locations matching a prefix
type SearchRequest struct {
	Query string
}

// Validate checks the request
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	return nil
}

func (r SearchRequest) params() (map[string]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return map[string]string{"q": strings.TrimSpace(r.Query)}, nil
}

// HistoryRequest asks for the weather of a city on one calendar date.
// Only the year, month and day of Date are used.
type HistoryRequest struct {
	City string
	Date time.Time
}

// Validate checks the request
func (r HistoryRequest) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	y, m, d := r.Date.Date()
	if time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Before(earliestHistory) {
		return fmt.Errorf("%w: history starts on %s", ErrInvalidRequest, earliestHistory.Format(DateLayout))
	}
	return nil
}

func (r HistoryRequest) params() (map[string]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return map[string]string{
		"q":  strings.TrimSpace(r.City),
		"dt": r.Date.Format(DateLayout),
	}, nil
}
