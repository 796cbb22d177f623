// Package ics renders calendar entries as iCalendar files.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"eventcal/internal/config"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

var (
	// ErrInvalidEntry is returned when an entry's date components are out of range.
	ErrInvalidEntry = errors.New("invalid calendar entry")
	// ErrVerify is returned when the serialized calendar does not parse back
	// to the expected number of events.
	ErrVerify = errors.New("calendar verification failed")
)

const (
	// FileExt is appended to every calendar file name.
	FileExt = ".ics"

	propAltDesc    = ical.ComponentProperty("X-ALT-DESC")
	propBusyStatus = ical.ComponentProperty("X-MICROSOFT-CDO-BUSYSTATUS")

	utcLayout      = "20060102T150405Z"
	floatingLayout = "20060102T150405"
)

var (
	clockMu sync.RWMutex
	clock   clockwork.Clock = clockwork.NewRealClock()
)

// SetClock swaps the time source for DTSTAMP. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	clockMu.Lock()
	defer clockMu.Unlock()
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

func now() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock.Now()
}

// WriteResult describes one written calendar file.
type WriteResult struct {
	Path    string
	Entries int
	Bytes   int
}

// Writer serializes entries into <dir>/<name>.ics.
type Writer struct {
	dir       string
	productID string
}

func NewWriter(dir, productID string) *Writer {
	if productID == "" {
		productID = config.DefaultProductID
	}
	return &Writer{dir: dir, productID: productID}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteOption customizes a single Write call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	displayName string
}

// WithDisplayName sets X-WR-CALNAME; by default the file name is used.
func WithDisplayName(name string) WriteOption {
	return func(o *writeOptions) { o.displayName = name }
}

// Write renders entries as one calendar and replaces <dir>/<name>.ics. On any
// error the existing file is left untouched.
func (w *Writer) Write(name string, entries []model.CalendarEntry, opts ...WriteOption) (WriteResult, error) {
	o := writeOptions{displayName: name}
	for _, opt := range opts {
		opt(&o)
	}

	body, err := w.Render(o.displayName, entries)
	if err != nil {
		return WriteResult{}, fmt.Errorf("calendar %s: %w", name, err)
	}

	parsed, err := ParseEntries(body)
	if err != nil {
		return WriteResult{}, fmt.Errorf("calendar %s: %w: %v", name, ErrVerify, err)
	}
	if len(parsed) != len(entries) {
		return WriteResult{}, fmt.Errorf("calendar %s: %w: wrote %d events, parsed %d", name, ErrVerify, len(entries), len(parsed))
	}

	path := filepath.Join(w.dir, name+FileExt)
	if err := config.WriteFileAtomic(path, body, 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("calendar %s: write: %w", name, err)
	}

	appLog.Info("calendar written", "file", path, "entries", len(entries), "size", humanize.Bytes(uint64(len(body))))
	return WriteResult{Path: path, Entries: len(entries), Bytes: len(body)}, nil
}

// Render serializes entries into an iCalendar document.
func (w *Writer) Render(displayName string, entries []model.CalendarEntry) ([]byte, error) {
	cal := ical.NewCalendarFor(w.productID)
	cal.SetMethod(ical.MethodPublish)
	if displayName != "" {
		cal.SetXWRCalName(displayName)
	}

	stamp := now().UTC()
	for i, e := range entries {
		ev, err := buildEvent(e, stamp)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Title, err)
		}
		cal.AddVEvent(ev)
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf, ical.WithNewLineWindows); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func buildEvent(e model.CalendarEntry, stamp time.Time) (*ical.VEvent, error) {
	start, err := formatDateTime(e.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := formatDateTime(e.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if e.UID == "" {
		return nil, fmt.Errorf("%w: empty UID", ErrInvalidEntry)
	}

	ev := ical.NewEvent(e.UID)
	ev.SetDtStampTime(stamp)
	ev.SetSummary(e.Title)
	ev.SetProperty(ical.ComponentPropertyDtStart, start)
	ev.SetProperty(ical.ComponentPropertyDtEnd, end)
	ev.SetTimeTransparency(ical.TransparencyTransparent)

	busy := e.BusyStatus
	if busy == "" {
		busy = model.BusyFree
	}
	ev.SetProperty(propBusyStatus, busy)

	for _, c := range e.Categories {
		ev.AddCategory(c)
	}
	if e.URL != "" {
		ev.SetURL(e.URL)
	}
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.HTMLContent != "" {
		ev.SetProperty(propAltDesc, e.HTMLContent, ical.WithFmtType("text/html"))
	}
	return ev, nil
}

// formatDateTime renders UTC values with a trailing Z and local values as
// floating date-times.
func formatDateTime(dt model.DateTime) (string, error) {
	if dt.Month < 1 || dt.Month > 12 || dt.Day < 1 || dt.Hour < 0 || dt.Hour > 23 ||
		dt.Minute < 0 || dt.Minute > 59 || dt.Year < 1 || dt.Year > 9999 {
		return "", fmt.Errorf("%w: %s", ErrInvalidEntry, dt)
	}
	t := time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, 0, 0, time.UTC)
	if t.Day() != dt.Day {
		return "", fmt.Errorf("%w: %s", ErrInvalidEntry, dt)
	}

	switch dt.Zone {
	case model.ZoneUTC:
		return t.Format(utcLayout), nil
	case model.ZoneLocal:
		return t.Format(floatingLayout), nil
	}
	return "", fmt.Errorf("%w: unknown zone %q", ErrInvalidEntry, dt.Zone)
}
