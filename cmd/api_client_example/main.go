package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"omni-weather/datasource"
	"omni-weather/logging"
)

func main() {
	fmt.Println("Weather API Client Example")
	fmt.Println("=========================")

	_ = godotenv.Load()

	city := flag.String("city", "Calgary", "City to look up")
	days := flag.Int("days", 3, "Forecast days to request")
	flag.Parse()

	apiKey := os.Getenv("WEATHERAPI_KEY")
	if apiKey == "" {
		fmt.Println("WEATHERAPI_KEY is not set")
		os.Exit(1)
	}

	logger, err := logging.New("debug", true)
	if err != nil {
		fmt.Printf("Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := datasource.NewWeatherAPIClient(apiKey, datasource.WithLogger(logger))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Search first so the forecast request is pinned to coordinates
	fmt.Printf("\nSearching locations matching %q...\n", *city)
	locations, err := client.SearchLocations(ctx, datasource.SearchRequest{Query: *city})
	if err != nil {
		fmt.Printf("Error searching locations: %v\n", err)
		os.Exit(1)
	}
	if len(locations) == 0 {
		fmt.Println("No locations matched.")
		return
	}
	for i, loc := range locations {
		fmt.Printf("  %d) %s (%.2f, %.2f)\n", i+1, loc.Label(), loc.Lat, loc.Lon)
	}

	location := locations[0]
	fmt.Printf("\nFetching forecast for %s...\n", location.Label())
	forecast, err := client.FetchForecast(ctx, datasource.ForecastRequest{
		City: fmt.Sprintf("%.4f,%.4f", location.Lat, location.Lon),
		Days: *days,
	})
	if err != nil {
		fmt.Printf("Error fetching forecast: %v\n", err)
		os.Exit(1)
	}

	// Pretty print the result
	prettyJSON, _ := json.MarshalIndent(forecast, "", "  ")
	fmt.Printf("\nForecast for %s:\n%s\n", forecast.Location.Label(), string(prettyJSON))

	yesterday := time.Now().AddDate(0, 0, -1)
	history, err := client.FetchHistory(ctx, datasource.HistoryRequest{City: location.Name, Date: yesterday})
	if err != nil {
		fmt.Printf("Error fetching history: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nYesterday in %s: %.1f° avg, %s\n", history.Location.Name, history.Day.Day.AvgTempC, history.Day.Day.Condition.Text)
}
