// Package categorize groups events into the calendars they are published in.
package categorize

import (
	"eventcal/internal/config"
	"eventcal/internal/model"
)

// Group is the ordered set of events destined for one calendar file.
type Group struct {
	Calendar config.CalendarConfig
	Events   []model.SourceEvent
}

// Partition assigns every event to the calendar whose category list contains
// its tag. Groups follow the order of calendars, events keep feed order, and
// events with an unmapped tag are dropped. A calendar with no matching events
// still yields a group so that its file is rewritten empty.
func Partition(events []model.SourceEvent, calendars []config.CalendarConfig) []Group {
	groups := make([]Group, len(calendars))
	byTag := make(map[string]int)
	for i, cal := range calendars {
		groups[i] = Group{Calendar: cal, Events: []model.SourceEvent{}}
		for _, tag := range cal.Categories {
			if _, dup := byTag[tag]; !dup {
				byTag[tag] = i
			}
		}
	}

	for _, ev := range events {
		i, ok := byTag[ev.EventType]
		if !ok {
			continue
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

// Unmapped returns the distinct tags in events that no calendar publishes,
// in first-seen order.
func Unmapped(events []model.SourceEvent, calendars []config.CalendarConfig) []string {
	known := make(map[string]struct{})
	for _, cal := range calendars {
		for _, tag := range cal.Categories {
			known[tag] = struct{}{}
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, ev := range events {
		if _, ok := known[ev.EventType]; ok {
			continue
		}
		if _, ok := seen[ev.EventType]; ok {
			continue
		}
		seen[ev.EventType] = struct{}{}
		out = append(out, ev.EventType)
	}
	return out
}
