// Package ui renders the weather screens as text and drives them from a
// line-oriented shell.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"omni-weather/conditions"
	"omni-weather/models"
	"omni-weather/screen"
)

// RenderCurrent writes the current-conditions screen
func RenderCurrent(w io.Writer, st screen.State[models.CurrentSnapshot]) error {
	p := &printer{w: w}
	header(p, "Current weather", st.Location, st.Status, st.Err)
	search(p, st.SearchOpen, st.Query, st.SearchStatus, st.SearchErr, st.Candidates)
	if st.Snapshot != nil {
		c := st.Snapshot.Current
		p.printf("  %.1f° %s [%s]\n", c.TempC, c.Condition.Text, conditions.ImageFor(c.Condition.Text))
		p.printf("  Feels like   %.1f°\n", c.FeelsLikeC)
		p.printf("  UV           %.0f\n", c.UV)
		p.printf("  Wind         %.1f km/h %s\n", c.WindKph, c.WindDir)
		p.printf("  Humidity     %d%%\n", c.Humidity)
		p.printf("  Cloud        %d%%\n", c.Cloud)
		p.printf("  Precip       %.1fmm\n", c.PrecipMm)
		p.printf("  Last update  %s\n", c.LastUpdated)
	}
	return p.err
}

// RenderForecast writes the daily forecast screen as a table
func RenderForecast(w io.Writer, st screen.State[models.ForecastSnapshot]) error {
	p := &printer{w: w}
	header(p, "Daily forecast", st.Location, st.Status, st.Err)
	search(p, st.SearchOpen, st.Query, st.SearchStatus, st.SearchErr, st.Candidates)
	if p.err != nil || st.Snapshot == nil {
		return p.err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  DAY\tCONDITION\tIMAGE\tAVG\tHUMIDITY")
	for _, d := range st.Snapshot.Days {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.1f°\t%.0f%%\n",
			weekday(d.Date), d.Day.Condition.Text, conditions.ImageFor(d.Day.Condition.Text),
			d.Day.AvgTempC, d.Day.AvgHumidity)
	}
	return tw.Flush()
}

// RenderHistory writes the history screen
func RenderHistory(w io.Writer, st screen.State[models.HistorySnapshot]) error {
	p := &printer{w: w}
	header(p, "History for "+st.Date.Format("2006-01-02"), st.Location, st.Status, st.Err)
	search(p, st.SearchOpen, st.Query, st.SearchStatus, st.SearchErr, st.Candidates)
	if st.Snapshot != nil {
		d := st.Snapshot.Day
		p.printf("  %.1f° %s [%s]\n", d.AvgTempC, d.Condition.Text, conditions.ImageFor(d.Condition.Text))
		p.printf("  Moon         %s\n", st.Snapshot.Astro.MoonPhase)
		p.printf("  Min / Max    %.1f° / %.1f°\n", d.MinTempC, d.MaxTempC)
		p.printf("  UV           %.0f\n", d.UV)
		p.printf("  Max wind     %.1f km/h\n", d.MaxWindKph)
		p.printf("  Humidity     %.0f%%\n", d.AvgHumidity)
		p.printf("  Snow         %.1f cm\n", d.TotalSnowCm)
		p.printf("  Precip       %.1fmm\n", d.TotalPrecipMm)
	}
	return p.err
}

// RenderJSON writes v as indented JSON
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printer remembers the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func header(p *printer, title string, loc *models.Location, status screen.Status, err error) {
	p.printf("== %s ==\n", title)
	if loc != nil {
		p.printf("  %s\n", loc.Label())
	}
	switch status {
	case screen.StatusLoading:
		p.printf("  loading...\n")
	case screen.StatusEmpty:
		p.printf("  No data found\n")
	case screen.StatusFailed:
		p.printf("  Error: %v\n", err)
	}
}

func search(p *printer, open bool, query string, status screen.Status, err error, candidates []models.Location) {
	if !open && len(candidates) == 0 {
		return
	}
	p.printf("  search: %q\n", query)
	switch status {
	case screen.StatusLoading:
		p.printf("    searching...\n")
	case screen.StatusEmpty:
		p.printf("    no matching locations\n")
	case screen.StatusFailed:
		p.printf("    search failed: %v\n", err)
	}
	for i, c := range candidates {
		p.printf("    %d) %s\n", i+1, c.Label())
	}
}

// weekday turns an ISO date into a day name; unparsable dates are shown as-is
func weekday(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Weekday().String()
}
