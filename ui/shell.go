package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"omni-weather/auth"
	"omni-weather/datasource"
	"omni-weather/models"
	"omni-weather/screen"
	"omni-weather/suggestion"
)

// ErrQuit is returned by Exec when the user asks to leave
var ErrQuit = errors.New("quit")

const helpText = `commands:
  login <user> <password>
  open current|forecast|history|suggestion
  search                 toggle the search box
  type <text>            update the search text
  pick <n>               select a search result
  date <YYYY-MM-DD>      history date
  suggest <name> | <email> | <text>
  refresh
  show
  logout
  quit
`

// control is the part of a screen controller the shell drives
type control interface {
	Mount()
	Unmount()
	Wait()
	ToggleSearch()
	ChangeText(text string)
	SelectLocation(loc models.Location)
	Refresh()
}

type page struct {
	control
	candidates func() []models.Location
	render     func(w io.Writer, asJSON bool) error
}

func newPage[S screen.Snapshot](ctrl control, c *screen.Controller[S], render func(io.Writer, screen.State[S]) error) *page {
	return &page{
		control:    ctrl,
		candidates: func() []models.Location { return c.State().Candidates },
		render: func(w io.Writer, asJSON bool) error {
			st := c.State()
			if asJSON {
				return RenderJSON(w, st.Snapshot)
			}
			return render(w, st)
		},
	}
}

// Shell is the drawer navigation: a login gate in front of the weather
// screens and the suggestion box. Screens are created on first open and stay
// mounted until logout.
type Shell struct {
	out    io.Writer
	auth   *auth.Authenticator
	src    datasource.WeatherSource
	box    *suggestion.Box
	opts   screen.Options
	logger *zap.Logger
	asJSON bool

	loggedIn bool
	active   string
	pages    map[string]*page
	history  *screen.History
}

// ShellOption configures a Shell
type ShellOption func(*Shell)

// WithJSON makes show print raw snapshots
func WithJSON(enabled bool) ShellOption {
	return func(s *Shell) {
		s.asJSON = enabled
	}
}

// NewShell creates a shell writing to out
func NewShell(out io.Writer, authn *auth.Authenticator, src datasource.WeatherSource, box *suggestion.Box, opts screen.Options, options ...ShellOption) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shell{
		out:    out,
		auth:   authn,
		src:    src,
		box:    box,
		opts:   opts,
		logger: logger,
		pages:  make(map[string]*page),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run reads commands from in until quit, EOF or ctx is done
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	defer s.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := s.Exec(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				fmt.Fprintf(s.out, "Error: %v\n", err)
			}
			s.prompt()
		}
	}
}

// Exec runs one command line
func (s *Shell) Exec(ctx context.Context, line string) error {
	cmd, rest := splitCommand(line)
	switch cmd {
	case "":
		return nil
	case "help":
		_, err := io.WriteString(s.out, helpText)
		return err
	case "quit", "exit":
		return ErrQuit
	case "login":
		return s.login(rest)
	}

	if !s.loggedIn {
		return errors.New("please log in first")
	}

	switch cmd {
	case "logout":
		s.logout()
		fmt.Fprintln(s.out, "Logged out")
		return nil
	case "open":
		return s.open(rest)
	case "suggest":
		return s.suggest(ctx, rest)
	case "show":
		return s.show()
	}

	p, err := s.activePage()
	if err != nil {
		return err
	}
	switch cmd {
	case "search":
		p.ToggleSearch()
	case "type":
		p.ChangeText(rest)
	case "pick":
		return s.pick(p, rest)
	case "refresh":
		p.Refresh()
	case "date":
		return s.date(rest)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

// Close unmounts every open screen
func (s *Shell) Close() {
	for _, p := range s.pages {
		p.Unmount()
	}
	s.pages = make(map[string]*page)
	s.history = nil
	s.active = ""
}

func (s *Shell) prompt() {
	name := s.active
	if !s.loggedIn {
		name = "login"
	}
	fmt.Fprintf(s.out, "%s> ", name)
}

func (s *Shell) login(args string) error {
	fields := strings.Fields(args)
	var user, pass string
	if len(fields) > 0 {
		user = fields[0]
	}
	if len(fields) > 1 {
		pass = fields[1]
	}
	if err := s.auth.Login(user, pass); err != nil {
		return err
	}
	s.loggedIn = true
	s.logger.Info("user logged in", zap.String("user", user))
	fmt.Fprintln(s.out, "Welcome to Omni Weather")
	return s.open("current")
}

func (s *Shell) logout() {
	s.Close()
	s.loggedIn = false
}

func (s *Shell) open(name string) error {
	name = strings.TrimSpace(name)
	if name == "suggestion" {
		s.active = name
		return nil
	}
	if _, ok := s.pages[name]; !ok {
		p, err := s.buildPage(name)
		if err != nil {
			return err
		}
		s.pages[name] = p
		p.Mount()
	}
	s.active = name
	return nil
}

func (s *Shell) buildPage(name string) (*page, error) {
	switch name {
	case "current":
		c := screen.NewCurrent(s.src, s.opts)
		return newPage(c, c, RenderCurrent), nil
	case "forecast":
		c := screen.NewForecast(s.src, s.opts)
		return newPage(c, c, RenderForecast), nil
	case "history":
		h := screen.NewHistory(s.src, s.opts)
		s.history = h
		return newPage(h, h.Controller, RenderHistory), nil
	}
	return nil, fmt.Errorf("unknown screen %q (choose from current, forecast, history, suggestion)", name)
}

func (s *Shell) activePage() (*page, error) {
	p, ok := s.pages[s.active]
	if !ok {
		return nil, errors.New("open a weather screen first")
	}
	return p, nil
}

func (s *Shell) show() error {
	if s.active == "suggestion" {
		_, err := io.WriteString(s.out, "== Suggestion Box ==\n  suggest <name> | <email> | <text>\n")
		return err
	}
	p, err := s.activePage()
	if err != nil {
		return err
	}
	p.Wait()
	return p.render(s.out, s.asJSON)
}

func (s *Shell) pick(p *page, arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("pick needs a result number: %w", err)
	}
	candidates := p.candidates()
	if n < 1 || n > len(candidates) {
		return fmt.Errorf("no search result %d", n)
	}
	p.SelectLocation(candidates[n-1])
	return nil
}

func (s *Shell) date(arg string) error {
	if s.active != "history" || s.history == nil {
		return errors.New("date only applies to the history screen")
	}
	date, err := time.ParseInLocation(datasource.DateLayout, strings.TrimSpace(arg), time.Local)
	if err != nil {
		return fmt.Errorf("invalid date %q, use YYYY-MM-DD", arg)
	}
	s.history.ChangeDate(date)
	return nil
}

func (s *Shell) suggest(ctx context.Context, args string) error {
	parts := strings.SplitN(args, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	form := suggestion.Form{
		Name:  strings.TrimSpace(parts[0]),
		Email: strings.TrimSpace(parts[1]),
		Text:  strings.TrimSpace(parts[2]),
	}
	if _, err := s.box.Submit(ctx, form); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Your suggestion has been submitted")
	return nil
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}
