package models

import "time"

// DayStats aggregates one day of weather
type DayStats struct {
	MaxTempC      float64   `json:"maxtemp_c"`
	MinTempC      float64   `json:"mintemp_c"`
	AvgTempC      float64   `json:"avgtemp_c"`
	MaxWindKph    float64   `json:"maxwind_kph"`
	TotalPrecipMm float64   `json:"totalprecip_mm"`
	TotalSnowCm   float64   `json:"totalsnow_cm"`
	AvgHumidity   float64   `json:"avghumidity"`
	UV            float64   `json:"uv"`
	Condition     Condition `json:"condition"`
}

// Astro holds sun and moon data for a day
type Astro struct {
	Sunrise   string `json:"sunrise"`
	Sunset    string `json:"sunset"`
	MoonPhase string `json:"moon_phase"`
}

// ForecastDay is one entry of a forecast or history response
type ForecastDay struct {
	Date      string   `json:"date"` // YYYY-MM-DD
	DateEpoch int64    `json:"date_epoch"`
	Day       DayStats `json:"day"`
	Astro     Astro    `json:"astro"`
}

// Forecast is the result of a forecast lookup
type Forecast struct {
	Location Location      `json:"location"`
	Current  Current       `json:"current"`
	Days     []ForecastDay `json:"days"`
}

// History is the result of a history lookup for a single date
type History struct {
	Location Location    `json:"location"`
	Day      ForecastDay `json:"day"`
}

// CurrentSnapshot is what the current-conditions screen shows
type CurrentSnapshot struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
}

// ForecastSnapshot is what the forecast screen shows
type ForecastSnapshot struct {
	Location Location      `json:"location"`
	Days     []ForecastDay `json:"days"`
}

// HistorySnapshot is what the history screen shows
type HistorySnapshot struct {
	Location Location  `json:"location"`
	Date     time.Time `json:"date"`
	Day      DayStats  `json:"day"`
	Astro    Astro     `json:"astro"`
}

// Where returns the location the snapshot describes
func (s CurrentSnapshot) Where() Location  { return s.Location }
func (s ForecastSnapshot) Where() Location { return s.Location }
func (s HistorySnapshot) Where() Location  { return s.Location }
