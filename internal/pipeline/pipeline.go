// Package pipeline runs one fetch, format and write cycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"

	"eventcal/internal/categorize"
	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/observability"
)

// Fetcher retrieves the current feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.SourceEvent, error)
}

// Formatter converts one event into calendar entries.
type Formatter interface {
	Format(ev model.SourceEvent) ([]model.CalendarEntry, error)
}

// CalendarWriter persists one calendar file.
type CalendarWriter interface {
	Write(name string, entries []model.CalendarEntry, opts ...ics.WriteOption) (ics.WriteResult, error)
}

// CalendarResult is the outcome for one configured calendar.
type CalendarResult struct {
	File    string
	Path    string
	Events  int
	Entries int
	Bytes   int
	Skipped int
	Err     error
}

// Result summarizes a run.
type Result struct {
	Fetched   int
	Calendars []CalendarResult
	Duration  time.Duration
}

// Err combines the per-calendar errors, nil when every calendar was written.
func (r Result) Err() error {
	var err error
	for _, c := range r.Calendars {
		err = multierr.Append(err, c.Err)
	}
	return err
}

// Skipped is the number of events that could not be formatted.
func (r Result) Skipped() int {
	n := 0
	for _, c := range r.Calendars {
		n += c.Skipped
	}
	return n
}

type Pipeline struct {
	fetcher   Fetcher
	formatter Formatter
	writer    CalendarWriter
	calendars []config.CalendarConfig
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used for run timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func New(f Fetcher, fm Formatter, w CalendarWriter, calendars []config.CalendarConfig, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   f,
		formatter: fm,
		writer:    w,
		calendars: calendars,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches the feed and rewrites every configured calendar. The returned
// error is non-nil only when the feed could not be obtained; in that case no
// file is touched. Failures of individual events or calendars are logged,
// counted and reported through Result.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := p.clock.Now()
	var res Result

	events, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues(observability.OutcomeFailed).Inc()
		appLog.Error("feed unavailable; calendars left unchanged", err)
		return res, fmt.Errorf("fetch: %w", err)
	}
	res.Fetched = len(events)
	p.metrics.EventsFetched.Set(float64(len(events)))

	if tags := categorize.Unmapped(events, p.calendars); len(tags) > 0 {
		appLog.Debug("events with unmapped categories ignored", "categories", tags)
	}

	for _, g := range categorize.Partition(events, p.calendars) {
		if err := ctx.Err(); err != nil {
			res.Calendars = append(res.Calendars, CalendarResult{File: g.Calendar.File, Err: err})
			continue
		}
		res.Calendars = append(res.Calendars, p.writeGroup(g))
	}

	res.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(res.Duration.Seconds())

	outcome := observability.OutcomeSuccess
	if res.Err() != nil {
		outcome = observability.OutcomePartial
	} else {
		p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()

	appLog.Info("run complete",
		"outcome", outcome,
		"events", res.Fetched,
		"calendars", len(res.Calendars),
		"skipped", res.Skipped(),
		"duration", res.Duration.String(),
	)
	return res, nil
}

func (p *Pipeline) writeGroup(g categorize.Group) CalendarResult {
	cr := CalendarResult{File: g.Calendar.File, Events: len(g.Events)}

	entries := make([]model.CalendarEntry, 0, len(g.Events))
	for _, ev := range g.Events {
		out, err := p.formatter.Format(ev)
		if err != nil {
			cr.Skipped++
			p.metrics.FormatErrors.Inc()
			appLog.Warn("event skipped", "calendar", g.Calendar.File, "event_id", ev.EventID, "error", err.Error())
			continue
		}
		entries = append(entries, out...)
	}

	wr, err := p.writer.Write(g.Calendar.File, entries, ics.WithDisplayName(g.Calendar.Name))
	if err != nil {
		cr.Err = err
		p.metrics.WriteErrors.WithLabelValues(g.Calendar.File).Inc()
		appLog.Error("calendar not written", err, "calendar", g.Calendar.File, "entries", len(entries))
		return cr
	}

	cr.Path = wr.Path
	cr.Entries = wr.Entries
	cr.Bytes = wr.Bytes
	p.metrics.EntriesWritten.WithLabelValues(g.Calendar.File).Set(float64(wr.Entries))
	p.metrics.CalendarBytes.WithLabelValues(g.Calendar.File).Set(float64(wr.Bytes))
	return cr
}
