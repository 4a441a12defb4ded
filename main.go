package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omni-weather/auth"
	"omni-weather/datasource"
	"omni-weather/logging"
	"omni-weather/metrics"
	"omni-weather/screen"
	"omni-weather/suggestion"
	"omni-weather/ui"
)

type rootFlags struct {
	configFile  string
	asJSON      bool
	logLevel    string
	development bool
	metricsAddr string
}

// app is everything a command needs once configuration has been read
type app struct {
	cfg     *datasource.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	source  datasource.WeatherSource
	server  *http.Server
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "omni-weather",
		Short:        "Current weather, forecasts and history from WeatherAPI",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "config.json", "Path to configuration file")
	pf.BoolVar(&flags.asJSON, "json", false, "Print raw snapshots as JSON")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (overrides config)")
	pf.BoolVar(&flags.development, "dev", false, "Human readable logs")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Interactive drawer with login, screens and suggestion box",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runShell(cmd, flags)
			},
		},
		newCurrentCmd(flags),
		newForecastCmd(flags),
		newHistoryCmd(flags),
		newSearchCmd(flags),
	)
	return cmd
}

func newCurrentCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "current [city]",
		Short: "Show current conditions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			opts := a.screenOptions(args)
			c := screen.NewCurrent(a.source, opts)
			defer c.Unmount()
			c.Mount()
			c.Wait()
			return printState(cmd.OutOrStdout(), flags, c.State(), ui.RenderCurrent)
		},
	}
}

func newForecastCmd(flags *rootFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "forecast [city]",
		Short: "Show the daily forecast",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			opts := a.screenOptions(args)
			if days > 0 {
				opts.ForecastDays = days
			}
			c := screen.NewForecast(a.source, opts)
			defer c.Unmount()
			c.Mount()
			c.Wait()
			return printState(cmd.OutOrStdout(), flags, c.State(), ui.RenderForecast)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, fmt.Sprintf("Number of days to request (1-%d)", datasource.MaxForecastDays))
	return cmd
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "history [city]",
		Short: "Show the observed weather for a past date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			h := screen.NewHistory(a.source, a.screenOptions(args))
			defer h.Unmount()
			if date != "" {
				d, err := time.ParseInLocation(datasource.DateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q, use YYYY-MM-DD", date)
				}
				// no location yet, so this only sets the date used by Mount
				h.ChangeDate(d)
			}
			h.Mount()
			h.Wait()
			return printState(cmd.OutOrStdout(), flags, h.State(), ui.RenderHistory)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	return cmd
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "List locations matching a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.close()

			locs, err := a.source.SearchLocations(cmd.Context(), datasource.SearchRequest{Query: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.asJSON {
				return ui.RenderJSON(out, locs)
			}
			if len(locs) == 0 {
				fmt.Fprintln(out, "No matching locations")
			}
			for _, l := range locs {
				fmt.Fprintf(out, "%s\t%.4f,%.4f\n", l.Label(), l.Lat, l.Lon)
			}
			return nil
		},
	}
}

func runShell(cmd *cobra.Command, flags *rootFlags) error {
	a, err := setup(flags)
	if err != nil {
		return err
	}
	defer a.close()

	authn, err := a.authenticator()
	if err != nil {
		return err
	}
	box := suggestion.NewBox(suggestion.LogSink{Logger: a.logger})
	shell := ui.NewShell(cmd.OutOrStdout(), authn, a.source, box, a.screenOptions(nil), ui.WithJSON(flags.asJSON))

	fmt.Fprintln(cmd.OutOrStdout(), "Omni Weather. Type help for commands.")
	return shell.Run(cmd.Context(), cmd.InOrStdin())
}

// setup loads configuration and builds the logger, metrics and weather source
func setup(flags *rootFlags) (*app, error) {
	cfg, err := datasource.LoadConfig(flags.configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, flags.development)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		source:  cfg.NewSource(datasource.WithLogger(logger), datasource.WithObserver(m)),
	}
	logger.Info("weather source ready",
		zap.String("source", a.source.Name()),
		zap.String("defaultCity", cfg.DefaultCity))

	if flags.metricsAddr != "" {
		a.serveMetrics(flags.metricsAddr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("serving metrics", zap.String("addr", addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

func (a *app) screenOptions(args []string) screen.Options {
	city := a.cfg.DefaultCity
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		city = args[0]
	}
	return screen.Options{
		DefaultCity:    city,
		ForecastDays:   a.cfg.ForecastDays,
		Debounce:       a.cfg.SearchDebounce.Duration,
		MinQueryLength: a.cfg.MinQueryLength,
		Logger:         a.logger,
		Metrics:        a.metrics,
	}
}

func (a *app) authenticator() (*auth.Authenticator, error) {
	if a.cfg.Login.PasswordHash != "" {
		return auth.NewFromHash(a.cfg.Login.Username, a.cfg.Login.PasswordHash)
	}
	return auth.New(a.cfg.Login.Username, a.cfg.Login.Password)
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if c, ok := a.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing weather source", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// printState renders a one-shot screen state and turns failed/empty into an exit error
func printState[S screen.Snapshot](w io.Writer, flags *rootFlags, st screen.State[S], render func(io.Writer, screen.State[S]) error) error {
	var err error
	if flags.asJSON {
		err = ui.RenderJSON(w, st.Snapshot)
	} else {
		err = render(w, st)
	}
	if err != nil {
		return err
	}
	switch st.Status {
	case screen.StatusFailed:
		return st.Err
	case screen.StatusEmpty:
		return datasource.ErrNoData
	}
	return nil
}
