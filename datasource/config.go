package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that reads "1s"-style strings from JSON
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a duration string or a number of milliseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(ms) * time.Millisecond
	return nil
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config represents the application configuration
type Config struct {
	// API provider configuration
	WeatherAPI struct {
		APIKey    string   `json:"apiKey"`
		BaseURL   string   `json:"baseURL"`
		Timeout   Duration `json:"timeout"`
		RateLimit float64  `json:"rateLimit"` // requests per second, <= 0 disables
		Burst     int      `json:"burst"`
	} `json:"weatherAPI"`

	// Screen behaviour
	DefaultCity    string   `json:"defaultCity"`
	ForecastDays   int      `json:"forecastDays"`
	SearchDebounce Duration `json:"searchDebounce"`
	MinQueryLength int      `json:"minQueryLength"`

	// The single account accepted by the login screen
	Login struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		PasswordHash string `json:"passwordHash"` // bcrypt, wins over Password
	} `json:"login"`

	LogLevel string `json:"logLevel"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.WeatherAPI.BaseURL = DefaultBaseURL
	config.WeatherAPI.Timeout = Duration{10 * time.Second}
	// WeatherAPI free tier allows ~23 calls/minute = 0.4 calls per second
	config.WeatherAPI.RateLimit = 0.4
	config.WeatherAPI.Burst = 3
	config.DefaultCity = "Calgary"
	config.ForecastDays = DefaultForecastDays
	config.SearchDebounce = Duration{time.Second}
	config.MinQueryLength = 3
	config.Login.Username = "test"
	config.Login.Password = "test"
	config.LogLevel = "info"
	return config
}

// LoadConfig loads configuration from a JSON file on top of the defaults.
// A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()
	if filename == "" {
		return config, nil
	}

	file, err := os.Open(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables read through getenv
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("WEATHERAPI_KEY"); v != "" {
		c.WeatherAPI.APIKey = v
	}
	if v := getenv("WEATHERAPI_BASE_URL"); v != "" {
		c.WeatherAPI.BaseURL = v
	}
	if v := getenv("WEATHERAPI_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid WEATHERAPI_RATE_LIMIT %q: %w", v, err)
		}
		c.WeatherAPI.RateLimit = rps
	}
	if v := getenv("OMNI_DEFAULT_CITY"); v != "" {
		c.DefaultCity = v
	}
	if v := getenv("OMNI_SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OMNI_SEARCH_DEBOUNCE %q: %w", v, err)
		}
		c.SearchDebounce = Duration{d}
	}
	if v := getenv("OMNI_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("OMNI_LOGIN_USER"); v != "" {
		c.Login.Username = v
	}
	if v := getenv("OMNI_LOGIN_PASSWORD"); v != "" {
		c.Login.Password = v
		c.Login.PasswordHash = ""
	}
	return nil
}

// Validate checks the configuration before any network access
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.WeatherAPI.APIKey) == "" {
		problems = append(problems, "weatherAPI.apiKey is required (or set WEATHERAPI_KEY)")
	}
	if strings.TrimSpace(c.DefaultCity) == "" {
		problems = append(problems, "defaultCity is required")
	}
	if c.ForecastDays < 1 || c.ForecastDays > MaxForecastDays {
		problems = append(problems, fmt.Sprintf("forecastDays must be between 1 and %d", MaxForecastDays))
	}
	if c.SearchDebounce.Duration < 0 {
		problems = append(problems, "searchDebounce must not be negative")
	}
	if c.MinQueryLength < 1 {
		problems = append(problems, "minQueryLength must be at least 1")
	}
	if c.WeatherAPI.RateLimit > 0 && c.WeatherAPI.Burst < 1 {
		problems = append(problems, "weatherAPI.burst must be at least 1 when rate limiting")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NewSource builds the configured weather source
func (c *Config) NewSource(opts ...ClientOption) WeatherSource {
	opts = append([]ClientOption{
		WithBaseURL(c.WeatherAPI.BaseURL),
		WithTimeout(c.WeatherAPI.Timeout.Duration),
	}, opts...)
	client := NewWeatherAPIClient(c.WeatherAPI.APIKey, opts...)
	if c.WeatherAPI.RateLimit <= 0 {
		return client
	}
	return NewRateLimitedSource(client, c.WeatherAPI.RateLimit, c.WeatherAPI.RateLimit, c.WeatherAPI.Burst)
}
