package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"omni-weather/datasource"
	"omni-weather/debounce"
	"omni-weather/metrics"
	"omni-weather/models"
)

// fakeSource answers from canned data. A city with a gate blocks until the
// gate is closed; stubborn cities also ignore cancellation.
type fakeSource struct {
	mu        sync.Mutex
	searches  []string
	forecasts []string
	histories []time.Time
	gates     map[string]chan struct{}
	stubborn  map[string]bool
	errs      map[string]error
	results   map[string][]models.Location
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		gates:    map[string]chan struct{}{},
		stubborn: map[string]bool{},
		errs:     map[string]error{},
		results:  map[string][]models.Location{},
	}
}

func (f *fakeSource) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	gate, gated := f.gates[key]
	stubborn := f.stubborn[key]
	err := f.errs[key]
	f.mu.Unlock()

	if gated {
		if stubborn {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (f *fakeSource) SearchLocations(ctx context.Context, req datasource.SearchRequest) ([]models.Location, error) {
	f.mu.Lock()
	f.searches = append(f.searches, req.Query)
	f.mu.Unlock()
	if err := f.wait(ctx, "search:"+req.Query); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Location{}, f.results[req.Query]...), nil
}

func (f *fakeSource) FetchForecast(ctx context.Context, req datasource.ForecastRequest) (models.Forecast, error) {
	f.mu.Lock()
	f.forecasts = append(f.forecasts, req.City)
	f.mu.Unlock()
	if err := f.wait(ctx, req.City); err != nil {
		return models.Forecast{}, err
	}
	return models.Forecast{
		Location: models.Location{Name: req.City, Country: "Canada", Localtime: "2024-08-05 10:15"},
		Current:  models.Current{TempC: 20, Condition: models.Condition{Text: "Sunny"}},
		Days: []models.ForecastDay{
			{Date: "2024-08-05"},
			{Date: "2024-08-06"},
			{Date: "2024-08-07"},
		},
	}, nil
}

func (f *fakeSource) FetchHistory(ctx context.Context, req datasource.HistoryRequest) (models.History, error) {
	f.mu.Lock()
	f.histories = append(f.histories, req.Date)
	f.mu.Unlock()
	if err := f.wait(ctx, req.City); err != nil {
		return models.History{}, err
	}
	return models.History{
		Location: models.Location{Name: req.City, Country: "Canada"},
		Day: models.ForecastDay{
			Date:  req.Date.Format(datasource.DateLayout),
			Day:   models.DayStats{MaxTempC: 25},
			Astro: models.Astro{MoonPhase: "Full Moon"},
		},
	}, nil
}

func (f *fakeSource) gate(key string, stubborn bool) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	f.stubborn[key] = stubborn
	return ch
}

func (f *fakeSource) counts() (searches, forecasts, histories int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches), len(f.forecasts), len(f.histories)
}

// manualClock fires timers only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

var testNow = time.Date(2024, time.August, 5, 16, 0, 0, 0, time.UTC)

func testOptions(t *testing.T, clock debounce.Clock, m *metrics.Metrics) Options {
	return Options{
		DefaultCity:    "Calgary",
		Debounce:       time.Second,
		MinQueryLength: 3,
		Clock:          clock,
		Now:            func() time.Time { return testNow },
		Logger:         zaptest.NewLogger(t),
		Metrics:        m,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMount_FetchesDefaultCityOnce(t *testing.T) {
	src := newFakeSource()
	c := NewCurrent(src, testOptions(t, &manualClock{}, nil))
	defer c.Unmount()

	c.Mount()
	c.Mount()
	c.Wait()

	if _, forecasts, _ := src.counts(); forecasts != 1 {
		t.Fatalf("forecast calls = %d, want 1", forecasts)
	}
	st := c.State()
	if st.Loading || st.Status != StatusReady {
		t.Fatalf("state = %+v", st)
	}
	if st.Snapshot == nil || st.Snapshot.Location.Name != "Calgary" || st.Snapshot.Current.TempC != 20 {
		t.Fatalf("snapshot = %+v", st.Snapshot)
	}
	if st.Location == nil || st.Location.Name != "Calgary" {
		t.Fatalf("location = %+v", st.Location)
	}
}

func TestChangeText_DebouncesSearch(t *testing.T) {
	src := newFakeSource()
	src.results["Calg"] = []models.Location{{Name: "Calgary", Country: "Canada"}}
	clock := &manualClock{}
	m := metrics.New()
	c := NewCurrent(src, testOptions(t, clock, m))
	defer c.Unmount()

	c.ToggleSearch()
	for _, text := range []string{"C", "Ca", "Cal", "Calg"} {
		c.ChangeText(text)
		clock.Advance(200 * time.Millisecond)
	}
	if searches, _, _ := src.counts(); searches != 0 {
		t.Fatalf("searched %d times while typing", searches)
	}

	clock.Advance(time.Second)
	c.Wait()

	if searches, _, _ := src.counts(); searches != 1 {
		t.Fatalf("searches = %d, want 1", searches)
	}
	if src.searches[0] != "Calg" {
		t.Fatalf("searched for %q", src.searches[0])
	}
	st := c.State()
	if st.Query != "Calg" || !st.SearchOpen || st.SearchStatus != StatusReady {
		t.Fatalf("state = %+v", st)
	}
	if len(st.Candidates) != 1 || st.Candidates[0].Name != "Calgary" {
		t.Fatalf("candidates = %+v", st.Candidates)
	}
	if got := counterValue(t, m, "omniweather_searches_total", map[string]string{"screen": "current"}); got != 1 {
		t.Fatalf("searches counter = %v, want 1", got)
	}
}

func TestChangeText_ShortQueryDoesNotSearch(t *testing.T) {
	src := newFakeSource()
	clock := &manualClock{}
	c := NewCurrent(src, testOptions(t, clock, nil))
	defer c.Unmount()

	c.ChangeText("Ca ")
	clock.Advance(2 * time.Second)
	c.Wait()

	if searches, _, _ := src.counts(); searches != 0 {
		t.Fatalf("searches = %d, want 0", searches)
	}
}

func TestChangeText_EmptyResult(t *testing.T) {
	src := newFakeSource()
	clock := &manualClock{}
	c := NewCurrent(src, testOptions(t, clock, nil))
	defer c.Unmount()

	c.ChangeText("Zzyzx")
	clock.Advance(time.Second)
	c.Wait()

	st := c.State()
	if st.SearchStatus != StatusEmpty || len(st.Candidates) != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestSelectLocation_ClearsCandidatesAndClosesSearch(t *testing.T) {
	src := newFakeSource()
	src.results["Edm"] = []models.Location{{Name: "Edmonton", Country: "Canada"}}
	clock := &manualClock{}
	c := NewCurrent(src, testOptions(t, clock, nil))
	defer c.Unmount()

	c.ToggleSearch()
	c.ChangeText("Edm")
	clock.Advance(time.Second)
	c.Wait()

	loc := c.State().Candidates[0]
	for i := 0; i < 2; i++ {
		c.SelectLocation(loc)
		st := c.State()
		if len(st.Candidates) != 0 || st.SearchOpen {
			t.Fatalf("selection %d: candidates=%v open=%v", i, st.Candidates, st.SearchOpen)
		}
		if !st.Loading && st.Status != StatusReady {
			t.Fatalf("selection %d: unexpected state %+v", i, st)
		}
		c.Wait()
	}

	st := c.State()
	if st.Loading || st.Snapshot == nil || st.Snapshot.Location.Name != "Edmonton" {
		t.Fatalf("state = %+v", st)
	}
	if _, forecasts, _ := src.counts(); forecasts != 2 {
		t.Fatalf("forecasts = %d, want 2", forecasts)
	}
}

func TestSelectLocation_CancelsPendingSearch(t *testing.T) {
	src := newFakeSource()
	clock := &manualClock{}
	c := NewCurrent(src, testOptions(t, clock, nil))
	defer c.Unmount()

	c.ChangeText("Banff")
	c.SelectLocation(models.Location{Name: "Canmore"})
	clock.Advance(2 * time.Second)
	c.Wait()

	if searches, _, _ := src.counts(); searches != 0 {
		t.Fatalf("debounced search survived selection: %d calls", searches)
	}
}

func TestSelectLocation_DropsInFlightSearch(t *testing.T) {
	src := newFakeSource()
	src.results["Banff"] = []models.Location{{Name: "Banff"}}
	release := src.gate("search:Banff", true)
	clock := &manualClock{}
	m := metrics.New()
	c := NewCurrent(src, testOptions(t, clock, m))
	defer c.Unmount()

	c.ChangeText("Banff")
	clock.Advance(time.Second)
	waitFor(t, func() bool { s, _, _ := src.counts(); return s == 1 })

	c.SelectLocation(models.Location{Name: "Canmore"})
	close(release)
	c.Wait()

	st := c.State()
	if len(st.Candidates) != 0 {
		t.Fatalf("late search result leaked into state: %+v", st.Candidates)
	}
	if got := staleCount(t, m, "current", "search"); got != 1 {
		t.Fatalf("stale searches = %v, want 1", got)
	}
}

func TestFetch_StaleResponseIsDiscarded(t *testing.T) {
	src := newFakeSource()
	release := src.gate("Slowtown", true)
	m := metrics.New()
	c := NewCurrent(src, testOptions(t, &manualClock{}, m))
	defer c.Unmount()

	c.SelectLocation(models.Location{Name: "Slowtown"})
	c.SelectLocation(models.Location{Name: "Fastville"})
	waitFor(t, func() bool {
		st := c.State()
		return st.Status == StatusReady
	})

	close(release)
	c.Wait()

	st := c.State()
	if st.Snapshot == nil || st.Snapshot.Location.Name != "Fastville" {
		t.Fatalf("stale response overwrote state: %+v", st.Snapshot)
	}
	if st.Location.Name != "Fastville" || st.Loading {
		t.Fatalf("state = %+v", st)
	}
	if got := staleCount(t, m, "current", "snapshot"); got != 1 {
		t.Fatalf("stale responses = %v, want 1", got)
	}
}

func TestFetch_SupersededRequestIsCanceled(t *testing.T) {
	src := newFakeSource()
	src.gate("Slowtown", false)
	c := NewCurrent(src, testOptions(t, &manualClock{}, nil))
	defer c.Unmount()

	c.SelectLocation(models.Location{Name: "Slowtown"})
	c.SelectLocation(models.Location{Name: "Fastville"})
	// Wait returns only because the first request saw its context canceled
	c.Wait()

	if st := c.State(); st.Snapshot == nil || st.Snapshot.Location.Name != "Fastville" {
		t.Fatalf("state = %+v", st)
	}
}

func TestFetch_FailureIsDistinguishable(t *testing.T) {
	src := newFakeSource()
	c := NewCurrent(src, testOptions(t, &manualClock{}, nil))
	defer c.Unmount()

	c.Mount()
	c.Wait()

	boom := errors.New("connection refused")
	src.errs["Nowhere"] = boom
	c.SelectLocation(models.Location{Name: "Nowhere"})
	c.Wait()

	st := c.State()
	if st.Loading {
		t.Fatal("loading flag stuck after failure")
	}
	if st.Status != StatusFailed || !errors.Is(st.Err, boom) {
		t.Fatalf("status=%s err=%v", st.Status, st.Err)
	}
	if st.Snapshot == nil || st.Snapshot.Location.Name != "Calgary" {
		t.Fatalf("previous snapshot should stay visible, got %+v", st.Snapshot)
	}
}

func TestFetch_NoDataIsEmpty(t *testing.T) {
	src := newFakeSource()
	src.errs["Atlantis"] = fmt.Errorf("%w: no matching location", datasource.ErrNoData)
	c := NewCurrent(src, testOptions(t, &manualClock{}, nil))
	defer c.Unmount()

	c.SelectLocation(models.Location{Name: "Atlantis"})
	c.Wait()

	st := c.State()
	if st.Status != StatusEmpty || st.Snapshot != nil || st.Err != nil || st.Loading {
		t.Fatalf("state = %+v", st)
	}
}

func TestSubscribe_SeesOrderedStates(t *testing.T) {
	src := newFakeSource()
	c := NewCurrent(src, testOptions(t, &manualClock{}, nil))
	defer c.Unmount()

	var mu sync.Mutex
	var seen []State[models.CurrentSnapshot]
	c.Subscribe(func(st State[models.CurrentSnapshot]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})

	c.Mount()
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("saw %d states, want 2", len(seen))
	}
	if !seen[0].Loading || seen[1].Loading {
		t.Fatalf("loading sequence wrong: %v then %v", seen[0].Loading, seen[1].Loading)
	}
	if seen[0].Version >= seen[1].Version {
		t.Fatal("versions must increase")
	}
}

func TestUnmount_StopsEverything(t *testing.T) {
	src := newFakeSource()
	src.gate("Calgary", false)
	clock := &manualClock{}
	c := NewCurrent(src, testOptions(t, clock, nil))

	c.Mount()
	c.ChangeText("Calgary")
	c.Unmount()

	clock.Advance(2 * time.Second)
	c.SelectLocation(models.Location{Name: "Banff"})
	c.Wait()

	searches, forecasts, _ := src.counts()
	if searches != 0 || forecasts != 1 {
		t.Fatalf("searches=%d forecasts=%d after unmount", searches, forecasts)
	}
}

func staleCount(t *testing.T, m *metrics.Metrics, screen, kind string) float64 {
	t.Helper()
	return counterValue(t, m, "omniweather_stale_responses_total", map[string]string{"screen": screen, "kind": kind})
}

func counterValue(t *testing.T, m *metrics.Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
