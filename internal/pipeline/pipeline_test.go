package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/config"
	"eventcal/internal/feed"
	"eventcal/internal/format"
	"eventcal/internal/ics"
	"eventcal/internal/model"
	"eventcal/internal/observability"
	"eventcal/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	events []model.SourceEvent
	err    error
}

func (m *mockFetcher) Fetch(context.Context) ([]model.SourceEvent, error) {
	return m.events, m.err
}

// failingWriter fails for the named calendars and delegates the rest.
type failingWriter struct {
	next  pipeline.CalendarWriter
	fails map[string]bool
}

func (w *failingWriter) Write(name string, entries []model.CalendarEntry, opts ...ics.WriteOption) (ics.WriteResult, error) {
	if w.fails[name] {
		return ics.WriteResult{}, errors.New("disk full")
	}
	return w.next.Write(name, entries, opts...)
}

func newFormatter() *format.Formatter {
	return format.New(format.Options{
		RaidHourPlaceholder: config.DefaultRaidHourPlaceholder,
		SourceLabel:         config.DefaultSourceLabel,
		Location:            time.UTC,
	})
}

func event(id, tag, start, end string) model.SourceEvent {
	return model.SourceEvent{
		EventID:   id,
		Name:      id,
		EventType: tag,
		Link:      "https://leekduck.com/events/" + id + "/",
		Start:     start,
		End:       end,
	}
}

func sampleEvents() []model.SourceEvent {
	raids := event("legendary-raids", "raid-battles", "2024-01-06T10:00:00.000", "2024-02-25T18:00:00.000")
	raids.Extra = model.RaidBattles{Bosses: []model.ShinySpawn{{Spawn: model.Spawn{Name: "Zapdos", Image: "z.png"}}}}

	return []model.SourceEvent{
		event("chansey-community-day", "community-day", "2024-01-13T14:00:00.000", "2024-01-13T17:00:00.000"),
		raids,
		event("kyogre-raid-hour", "raid-hour", "2024-01-10T18:00:00.000", "2024-01-10T19:00:00.000"),
		event("broken-raid-day", "raid-day", "not a date", "2024-01-10T19:00:00.000"),
		event("go-battle-league", "go-battle-league", "2024-01-01T00:00:00.000Z", "2024-02-01T00:00:00.000Z"),
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	dir := t.TempDir()
	metrics := observability.NewMetricsForTesting()
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	p := pipeline.New(
		&mockFetcher{events: sampleEvents()},
		newFormatter(),
		ics.NewWriter(dir, "eventcal"),
		config.DefaultCalendars(),
		metrics,
		pipeline.WithClock(fakeClock),
	)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, 5, res.Fetched)
	assert.Equal(t, 1, res.Skipped())
	require.Len(t, res.Calendars, 4)

	byFile := map[string]pipeline.CalendarResult{}
	for _, c := range res.Calendars {
		byFile[c.File] = c
		assert.FileExists(t, filepath.Join(dir, c.File+ics.FileExt))
	}

	assert.Equal(t, 1, byFile["communityDays"].Entries)
	// Three weekend entries plus the raid hour; the malformed raid day is skipped.
	assert.Equal(t, 3, byFile["raids"].Events)
	assert.Equal(t, 4, byFile["raids"].Entries)
	assert.Equal(t, 1, byFile["raids"].Skipped)
	assert.Equal(t, 0, byFile["spotlightHours"].Entries)
	assert.Equal(t, 0, byFile["otherMajorEvents"].Entries)

	body, err := os.ReadFile(byFile["raids"].Path)
	require.NoError(t, err)
	parsed, err := ics.ParseEntries(body)
	require.NoError(t, err)
	assert.Len(t, parsed, 4)

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.EventsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FormatErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.EntriesWritten.WithLabelValues("raids")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(observability.OutcomeSuccess)))
	assert.Equal(t, float64(fakeClock.Now().Unix()), testutil.ToFloat64(metrics.LastSuccess))
}

func TestPipeline_Run_FetchFailureTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "raids.ics")
	require.NoError(t, os.WriteFile(existing, []byte("previous"), 0o644))

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(
		&mockFetcher{err: feed.ErrFetch},
		newFormatter(),
		ics.NewWriter(dir, "eventcal"),
		config.DefaultCalendars(),
		metrics,
	)

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, feed.ErrFetch)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(observability.OutcomeFailed)))
}

func TestPipeline_Run_CategoryFailureIsolated(t *testing.T) {
	dir := t.TempDir()
	metrics := observability.NewMetricsForTesting()
	w := &failingWriter{next: ics.NewWriter(dir, "eventcal"), fails: map[string]bool{"raids": true}}

	p := pipeline.New(&mockFetcher{events: sampleEvents()}, newFormatter(), w, config.DefaultCalendars(), metrics)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Error(t, res.Err())
	assert.Contains(t, res.Err().Error(), "disk full")

	assert.NoFileExists(t, filepath.Join(dir, "raids.ics"))
	assert.FileExists(t, filepath.Join(dir, "communityDays.ics"))
	assert.FileExists(t, filepath.Join(dir, "spotlightHours.ics"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WriteErrors.WithLabelValues("raids")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(observability.OutcomePartial)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LastSuccess))
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pipeline.New(&mockFetcher{events: sampleEvents()}, newFormatter(), ics.NewWriter(dir, "eventcal"),
		config.DefaultCalendars(), observability.NewMetricsForTesting())

	res, err := p.Run(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err(), context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResult_Err(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	res := pipeline.Result{Calendars: []pipeline.CalendarResult{{Err: e1}, {}, {Err: e2}}}

	err := res.Err()
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.NoError(t, pipeline.Result{}.Err())
}
