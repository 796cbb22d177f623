// Package format turns feed events into calendar entries.
//
// Content is chosen by a single dispatch over the event's extension variant
// (spotlight, raid battles, community day). Events without a rich variant
// fall back to category rules: raid days and wild areas show the event
// artwork, raid hours show it only when it is not the generic placeholder.
//
// Raid battle events that start on a Saturday, end on a Sunday and last more
// than three weeks are published as one entry per weekend.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventcal/internal/model"
)

const (
	categoryRaidDay  = "raid-day"
	categoryRaidHour = "raid-hour"
	categoryWildArea = "wild-area"
)

// uidNamespace scopes entry UIDs so they stay stable between runs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://leekduck.com/events/"))

// Options configures a Formatter.
type Options struct {
	// RaidHourPlaceholder is the generic raid hour image.
	RaidHourPlaceholder string
	// SourceLabel is the link text of the HTML back-link.
	SourceLabel string
	// Location interprets wall-clock times for the weekend rule. nil means time.Local.
	Location *time.Location
}

// Formatter converts source events into calendar entries.
type Formatter struct {
	placeholder string
	label       string
	loc         *time.Location
}

func New(opts Options) *Formatter {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Formatter{
		placeholder: opts.RaidHourPlaceholder,
		label:       opts.SourceLabel,
		loc:         opts.Location,
	}
}

// Format converts one event into one or more calendar entries. It fails only
// when the event's timestamps cannot be decomposed.
func (f *Formatter) Format(ev model.SourceEvent) ([]model.CalendarEntry, error) {
	start, err := ParseTimestamp(ev.Start)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", ev.EventID, err)
	}
	end, err := ParseTimestamp(ev.End)
	if err != nil {
		return nil, fmt.Errorf("event %s end: %w", ev.EventID, err)
	}

	content := f.content(ev)
	if content.HTMLContent != "" {
		content.HTMLContent = strings.ReplaceAll(content.HTMLContent, "\n", "") + backLink(ev.Link, f.label)
	}

	entry := model.CalendarEntry{
		Title:       ev.Name,
		Start:       start,
		End:         end,
		BusyStatus:  model.BusyFree,
		Categories:  []string{ev.EventType},
		URL:         ev.Link,
		Description: content.Description,
		HTMLContent: content.HTMLContent,
	}

	entries := []model.CalendarEntry{entry}
	if _, ok := ev.Extra.(model.RaidBattles); ok && isWeekendSeries(instant(start, f.loc), instant(end, f.loc)) {
		entries = splitWeekends(entry)
	}

	for i := range entries {
		entries[i].UID = entryUID(ev.EventID, i)
	}
	return entries, nil
}

// content selects the rich content for ev.
func (f *Formatter) content(ev model.SourceEvent) Content {
	switch x := ev.Extra.(type) {
	case model.Spotlight:
		return formatSpotlight(x)
	case model.RaidBattles:
		return formatRaidBattles(x)
	case model.CommunityDay:
		return formatCommunityDay(x)
	}

	switch ev.EventType {
	case categoryRaidDay, categoryWildArea:
		if ev.Image != "" {
			return Content{HTMLContent: imageTag(ev.Image, ev.Name)}
		}
	case categoryRaidHour:
		if ev.Image != "" && ev.Image != f.placeholder {
			return Content{HTMLContent: imageTag(ev.Image, ev.Name)}
		}
	}
	return Content{}
}

func entryUID(eventID string, index int) string {
	name := eventID
	if index > 0 {
		name += "#" + strconv.Itoa(index)
	}
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}
