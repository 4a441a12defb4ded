package models

// Location is a place as reported by the weather provider
type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	TzID      string  `json:"tz_id,omitempty"`
	Localtime string  `json:"localtime,omitempty"` // "2006-01-02 15:04" in the location's zone
}

// Label returns "Name, Country", or just the name when the country is unknown
func (l Location) Label() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Condition is the provider's textual weather description
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Code int    `json:"code,omitempty"`
}

// Current represents the current conditions at a location
type Current struct {
	LastUpdated string    `json:"last_updated"`
	TempC       float64   `json:"temp_c"`
	FeelsLikeC  float64   `json:"feelslike_c"`
	Condition   Condition `json:"condition"`
	WindKph     float64   `json:"wind_kph"`
	WindDir     string    `json:"wind_dir"`
	Humidity    int       `json:"humidity"`
	Cloud       int       `json:"cloud"`
	UV          float64   `json:"uv"`
	PrecipMm    float64   `json:"precip_mm"`
}
