package screen

import (
	"context"
	"fmt"
	"time"

	"omni-weather/datasource"
	"omni-weather/models"
)

// ForecastSearcher is what the current and forecast screens need
type ForecastSearcher interface {
	datasource.LocationSearcher
	datasource.ForecastSource
}

// HistorySearcher is what the history screen needs
type HistorySearcher interface {
	datasource.LocationSearcher
	datasource.HistorySource
}

// Current is the current-conditions screen
type Current = Controller[models.CurrentSnapshot]

// Forecast is the daily forecast screen
type Forecast = Controller[models.ForecastSnapshot]

// NewCurrent creates the current-conditions screen
func NewCurrent(src ForecastSearcher, opts Options) *Current {
	opts = opts.withDefaults()
	load := func(ctx context.Context, loc models.Location, _ time.Time) (models.CurrentSnapshot, error) {
		forecast, err := src.FetchForecast(ctx, datasource.ForecastRequest{City: queryFor(loc), Days: opts.ForecastDays})
		if err != nil {
			return models.CurrentSnapshot{}, err
		}
		return models.CurrentSnapshot{Location: forecast.Location, Current: forecast.Current}, nil
	}
	return newController("current", src, load, opts)
}

// NewForecast creates the forecast screen. Only days after the location's
// today are kept.
func NewForecast(src ForecastSearcher, opts Options) *Forecast {
	opts = opts.withDefaults()
	load := func(ctx context.Context, loc models.Location, _ time.Time) (models.ForecastSnapshot, error) {
		forecast, err := src.FetchForecast(ctx, datasource.ForecastRequest{City: queryFor(loc), Days: opts.ForecastDays})
		if err != nil {
			return models.ForecastSnapshot{}, err
		}
		today := localToday(forecast.Location, opts.Now())
		return models.ForecastSnapshot{
			Location: forecast.Location,
			Days:     upcoming(forecast.Days, today),
		}, nil
	}
	return newController("forecast", src, load, opts)
}

// History is the history screen; it adds a selected date
type History struct {
	*Controller[models.HistorySnapshot]
}

// NewHistory creates the history screen with today selected
func NewHistory(src HistorySearcher, opts Options) *History {
	opts = opts.withDefaults()
	load := func(ctx context.Context, loc models.Location, date time.Time) (models.HistorySnapshot, error) {
		history, err := src.FetchHistory(ctx, datasource.HistoryRequest{City: queryFor(loc), Date: date})
		if err != nil {
			return models.HistorySnapshot{}, err
		}
		return models.HistorySnapshot{
			Location: history.Location,
			Date:     date,
			Day:      history.Day.Day,
			Astro:    history.Day.Astro,
		}, nil
	}
	c := newController("history", src, load, opts)
	c.state.Date = opts.Now()
	return &History{Controller: c}
}

// ChangeDate selects a date and, when a location is selected, refetches it
func (h *History) ChangeDate(date time.Time) {
	c := h.Controller
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Date = date
	var st State[models.HistorySnapshot]
	if c.state.Location != nil {
		st = c.startFetchLocked(*c.state.Location)
	} else {
		c.state.Version++
		st = c.state.clone()
	}
	c.mu.Unlock()
	c.publish(st)
}

// queryFor picks the most precise q parameter for a location.
// Candidates from search carry coordinates, which avoids same-name ambiguity.
func queryFor(loc models.Location) string {
	if loc.Lat != 0 || loc.Lon != 0 {
		return fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon)
	}
	return loc.Name
}

// localToday returns the location's current date, falling back to now
func localToday(loc models.Location, now time.Time) string {
	if len(loc.Localtime) >= len(datasource.DateLayout) {
		day := loc.Localtime[:len(datasource.DateLayout)]
		if _, err := time.Parse(datasource.DateLayout, day); err == nil {
			return day
		}
	}
	return now.Format(datasource.DateLayout)
}

// upcoming keeps the days strictly after today. ISO dates compare as strings.
func upcoming(days []models.ForecastDay, today string) []models.ForecastDay {
	out := make([]models.ForecastDay, 0, len(days))
	for _, d := range days {
		if d.Date > today {
			out = append(out, d)
		}
	}
	return out
}
