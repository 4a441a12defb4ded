// Package screen holds the view state behind each weather screen and drives
// the weather source from user input.
//
// A Controller is safe for concurrent use. Every fetch and every search is
// tagged with a sequence number; starting a newer one cancels the previous
// request and any response that is not the latest is dropped, so a slow
// answer can never overwrite a fresher one.
package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"omni-weather/datasource"
	"omni-weather/debounce"
	"omni-weather/metrics"
	"omni-weather/models"
)

// Status is the outcome of the latest request
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Snapshot is the payload a screen renders
type Snapshot interface {
	Where() models.Location
}

// State is what a screen renders. Values returned by Controller.State and
// passed to subscribers are copies.
type State[S Snapshot] struct {
	Query        string
	SearchOpen   bool
	Candidates   []models.Location
	SearchStatus Status
	SearchErr    error

	Location *models.Location
	Date     time.Time // only used by the history screen
	Snapshot *S
	Loading  bool
	Status   Status
	Err      error

	// Version increases with every change
	Version uint64
}

func (s State[S]) clone() State[S] {
	if s.Candidates != nil {
		s.Candidates = append([]models.Location(nil), s.Candidates...)
	}
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	return s
}

// Loader fetches the snapshot for a location. date is zero except on the history screen.
type Loader[S Snapshot] func(ctx context.Context, loc models.Location, date time.Time) (S, error)

// Options configures a screen
type Options struct {
	DefaultCity    string
	ForecastDays   int
	Debounce       time.Duration
	MinQueryLength int

	Clock   debounce.Clock
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.DefaultCity == "" {
		o.DefaultCity = "Calgary"
	}
	if o.ForecastDays == 0 {
		o.ForecastDays = datasource.DefaultForecastDays
	}
	if o.Debounce == 0 {
		o.Debounce = time.Second
	}
	if o.MinQueryLength == 0 {
		o.MinQueryLength = 3
	}
	if o.Clock == nil {
		o.Clock = debounce.RealClock
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Controller owns the state of one screen
type Controller[S Snapshot] struct {
	name     string
	searcher datasource.LocationSearcher
	load     Loader[S]
	opts     Options
	logger   *zap.Logger

	debouncer *debounce.Debouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu           sync.Mutex
	state        State[S]
	mounted      bool
	closed       bool
	fetchSeq     uint64
	searchSeq    uint64
	cancelFetch  context.CancelFunc
	cancelSearch context.CancelFunc

	notifyMu    sync.Mutex
	published   uint64
	subscribers []func(State[S])
}

func newController[S Snapshot](name string, searcher datasource.LocationSearcher, load Loader[S], opts Options) *Controller[S] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller[S]{
		name:      name,
		searcher:  searcher,
		load:      load,
		opts:      opts,
		logger:    opts.Logger.With(zap.String("screen", name)),
		debouncer: debounce.New(opts.Debounce, opts.Clock),
		ctx:       ctx,
		cancel:    cancel,
		state: State[S]{
			SearchStatus: StatusIdle,
			Status:       StatusIdle,
		},
	}
}

// Name returns the screen name
func (c *Controller[S]) Name() string {
	return c.name
}

// State returns a copy of the current state
func (c *Controller[S]) State() State[S] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive every new state, oldest first.
// fn runs on the goroutine that made the change and must not call back into the controller.
func (c *Controller[S]) Subscribe(fn func(State[S])) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Mount fetches the default city. Only the first call does anything.
func (c *Controller[S]) Mount() {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	st := c.startFetchLocked(models.Location{Name: c.opts.DefaultCity})
	c.mu.Unlock()
	c.publish(st)
}

// Unmount cancels pending searches and in-flight requests and waits for them to finish
func (c *Controller[S]) Unmount() {
	c.debouncer.Cancel()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

// Wait blocks until every request started so far has been applied or dropped.
// Debounced searches that have not fired yet are not waited for.
func (c *Controller[S]) Wait() {
	c.wg.Wait()
}

// ToggleSearch opens or closes the search box
func (c *Controller[S]) ToggleSearch() {
	c.update(func(st *State[S]) {
		st.SearchOpen = !st.SearchOpen
	})
}

// ChangeText records the search text and schedules a search once typing pauses
func (c *Controller[S]) ChangeText(text string) {
	c.update(func(st *State[S]) {
		st.Query = text
	})
	c.debouncer.Trigger(func() {
		c.search(text)
	})
}

// SelectLocation commits a candidate: the list is cleared, the search box
// closes and the snapshot for loc is fetched.
func (c *Controller[S]) SelectLocation(loc models.Location) {
	c.debouncer.Cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	// drop any search still in flight so it cannot repopulate the list
	c.searchSeq++
	if c.cancelSearch != nil {
		c.cancelSearch()
		c.cancelSearch = nil
	}
	c.state.Candidates = nil
	c.state.SearchOpen = false
	c.state.SearchStatus = StatusIdle
	c.state.SearchErr = nil
	st := c.startFetchLocked(loc)
	c.mu.Unlock()
	c.publish(st)
}

// Refresh refetches the current location, or the default city if none is selected
func (c *Controller[S]) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	loc := models.Location{Name: c.opts.DefaultCity}
	if c.state.Location != nil {
		loc = *c.state.Location
	}
	st := c.startFetchLocked(loc)
	c.mu.Unlock()
	c.publish(st)
}

// update applies fn to the state and publishes the result
func (c *Controller[S]) update(fn func(*State[S])) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	c.state.Version++
	st := c.state.clone()
	c.mu.Unlock()
	c.publish(st)
}

func (c *Controller[S]) publish(st State[S]) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if st.Version <= c.published {
		return
	}
	c.published = st.Version
	for _, fn := range c.subscribers {
		fn(st)
	}
}

// startFetchLocked supersedes any running fetch and starts one for loc.
// c.mu must be held. It returns the state to publish once the lock is released.
func (c *Controller[S]) startFetchLocked(loc models.Location) State[S] {
	c.fetchSeq++
	seq := c.fetchSeq
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelFetch = cancel

	date := c.state.Date
	c.state.Location = &loc
	c.state.Loading = true
	c.state.Status = StatusLoading
	c.state.Err = nil
	c.state.Version++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		snap, err := c.load(ctx, loc, date)
		c.finishFetch(seq, snap, err)
	}()

	return c.state.clone()
}

func (c *Controller[S]) finishFetch(seq uint64, snap S, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if seq != c.fetchSeq {
		c.mu.Unlock()
		c.opts.Metrics.StaleResponse(c.name, "snapshot")
		c.logger.Debug("discarding superseded snapshot", zap.Uint64("seq", seq))
		return
	}

	c.cancelFetch = nil
	c.state.Loading = false
	switch {
	case err == nil:
		c.state.Snapshot = &snap
		if where := snap.Where(); where.Name != "" {
			c.state.Location = &where
		}
		c.state.Status = StatusReady
	case errors.Is(err, datasource.ErrNoData):
		c.state.Snapshot = nil
		c.state.Status = StatusEmpty
	default:
		// keep the previous snapshot on screen next to the error
		c.state.Status = StatusFailed
		c.state.Err = err
	}
	c.state.Version++
	st := c.state.clone()
	c.mu.Unlock()

	if st.Status == StatusFailed {
		c.logger.Warn("snapshot fetch failed", zap.String("location", st.Location.Name), zap.Error(err))
	}
	c.publish(st)
}

// search runs when the debounce timer fires
func (c *Controller[S]) search(text string) {
	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < c.opts.MinQueryLength {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.searchSeq++
	seq := c.searchSeq
	if c.cancelSearch != nil {
		c.cancelSearch()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelSearch = cancel
	c.state.SearchStatus = StatusLoading
	c.state.SearchErr = nil
	c.state.Version++
	st := c.state.clone()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		locs, err := c.searcher.SearchLocations(ctx, datasource.SearchRequest{Query: query})
		c.finishSearch(seq, locs, err)
	}()
	c.mu.Unlock()

	c.opts.Metrics.SearchIssued(c.name)
	c.publish(st)
}

func (c *Controller[S]) finishSearch(seq uint64, locs []models.Location, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if seq != c.searchSeq {
		c.mu.Unlock()
		c.opts.Metrics.StaleResponse(c.name, "search")
		c.logger.Debug("discarding superseded search", zap.Uint64("seq", seq))
		return
	}

	c.cancelSearch = nil
	if err != nil {
		c.state.Candidates = nil
		c.state.SearchStatus = StatusFailed
		c.state.SearchErr = err
	} else {
		// results replace the previous list
		c.state.Candidates = locs
		c.state.SearchStatus = StatusReady
		if len(locs) == 0 {
			c.state.SearchStatus = StatusEmpty
		}
	}
	c.state.Version++
	st := c.state.clone()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("location search failed", zap.String("query", st.Query), zap.Error(err))
	}
	c.publish(st)
}
