package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"omni-weather/datasource"
	"omni-weather/models"
)

// MockWeatherSource is a simple mock that simulates latency and counts calls
type MockWeatherSource struct {
	callCount  int
	mutex      sync.Mutex
	latency    time.Duration
	shouldFail bool
	failAfter  int
}

func NewMockWeatherSource(latency time.Duration, shouldFail bool, failAfter int) *MockWeatherSource {
	return &MockWeatherSource{
		latency:    latency,
		shouldFail: shouldFail,
		failAfter:  failAfter,
	}
}

// call records a request and simulates the round trip
func (m *MockWeatherSource) call(ctx context.Context, what string) error {
	m.mutex.Lock()
	m.callCount++
	currentCount := m.callCount
	m.mutex.Unlock()

	// Log request time
	now := time.Now()
	fmt.Printf("%s - Processing request #%d for %s\n", now.Format("15:04:05.000"), currentCount, what)

	// Simulate work/latency
	select {
	case <-time.After(m.latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	// Check if we should fail after a certain number of requests
	if m.shouldFail && currentCount > m.failAfter {
		return fmt.Errorf("service unavailable (too many requests)")
	}
	return nil
}

func (m *MockWeatherSource) SearchLocations(ctx context.Context, req datasource.SearchRequest) ([]models.Location, error) {
	if err := m.call(ctx, "search "+req.Query); err != nil {
		return nil, err
	}
	return []models.Location{{Name: req.Query, Country: "Mockland"}}, nil
}

func (m *MockWeatherSource) FetchForecast(ctx context.Context, req datasource.ForecastRequest) (models.Forecast, error) {
	if err := m.call(ctx, req.City); err != nil {
		return models.Forecast{}, err
	}
	return models.Forecast{
		Location: models.Location{Name: req.City, Country: "Mockland"},
		Current: models.Current{
			TempC:     22.5,
			Humidity:  60,
			WindKph:   5.5,
			Condition: models.Condition{Text: "Sunny"},
		},
	}, nil
}

func (m *MockWeatherSource) FetchHistory(ctx context.Context, req datasource.HistoryRequest) (models.History, error) {
	if err := m.call(ctx, req.City+" on "+req.Date.Format(datasource.DateLayout)); err != nil {
		return models.History{}, err
	}
	return models.History{Location: models.Location{Name: req.City}}, nil
}

func (m *MockWeatherSource) Name() string {
	return "MockSource"
}

func (m *MockWeatherSource) GetCallCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.callCount
}

// run issues n calls through call from the given number of workers and
// returns the slowest single wait
func run(ctx context.Context, label string, n, workers int, call func(ctx context.Context, i int) error) time.Duration {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		slowest time.Duration
	)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				before := time.Now()
				err := call(ctx, i)
				elapsed := time.Since(before)
				if err != nil {
					log.Printf("%s #%d failed: %v", label, i, err)
					continue
				}
				mu.Lock()
				if elapsed > slowest {
					slowest = elapsed
				}
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return slowest
}

func main() {
	fetchRPS := flag.Float64("fetch-rps", 1.0, "Forecast/history requests per second")
	searchRPS := flag.Float64("search-rps", 2.0, "Search requests per second")
	burst := flag.Int("burst", 3, "Maximum burst size for each budget")
	fetches := flag.Int("fetches", 10, "Forecast requests to make")
	searches := flag.Int("searches", 6, "Search requests to make while forecasts are queued")
	workers := flag.Int("concurrent", 5, "Concurrent forecast workers")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mockSource := NewMockWeatherSource(200*time.Millisecond, false, 0)
	limited := datasource.NewRateLimitedSource(mockSource, *searchRPS, *fetchRPS, *burst)

	fmt.Printf("Rate limiting %s: fetch %.2f/s, search %.2f/s, burst %d\n",
		limited.Name(), *fetchRPS, *searchRPS, *burst)

	start := time.Now()
	var wg sync.WaitGroup
	var slowestFetch, slowestSearch time.Duration

	// Forecasts saturate their budget
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowestFetch = run(ctx, "forecast", *fetches, *workers, func(ctx context.Context, i int) error {
			_, err := limited.FetchForecast(ctx, datasource.ForecastRequest{City: fmt.Sprintf("Location-%d", i)})
			return err
		})
	}()

	// A single typist searches while forecasts queue up
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowestSearch = run(ctx, "search", *searches, 1, func(ctx context.Context, i int) error {
			_, err := limited.SearchLocations(ctx, datasource.SearchRequest{Query: fmt.Sprintf("Cal%d", i)})
			return err
		})
	}()

	wg.Wait()
	total := time.Since(start)

	fmt.Printf("\nFinished %d calls in %.2fs\n", mockSource.GetCallCount(), total.Seconds())
	fmt.Printf("Slowest forecast: %v (queued behind %.2f/s)\n", slowestFetch.Round(time.Millisecond), *fetchRPS)
	fmt.Printf("Slowest search:   %v\n", slowestSearch.Round(time.Millisecond))

	// A search only waits on its own budget, so it never queues behind forecasts
	searchBound := time.Duration(float64(time.Second)/(*searchRPS)) + time.Second
	if slowestSearch > searchBound {
		fmt.Println("Searches were held up longer than their own budget allows")
		return
	}
	fmt.Println("Searches kept their own budget while forecasts were throttled")
}
