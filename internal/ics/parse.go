package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/model"
)

// ParseEntries reads a calendar document back into entries. It is used to
// verify rendered output before it replaces a file.
func ParseEntries(body []byte) ([]model.CalendarEntry, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := cal.Events()
	out := make([]model.CalendarEntry, 0, len(events))
	for i, ve := range events {
		e, err := parseVEvent(ve)
		if err != nil {
			return nil, fmt.Errorf("vevent %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (model.CalendarEntry, error) {
	var out model.CalendarEntry

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	start := ve.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return out, errors.New("missing DTSTART")
	}
	var err error
	if out.Start, err = parseDateTime(start.Value); err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}

	end := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if end == nil {
		return out, errors.New("missing DTEND")
	}
	if out.End, err = parseDateTime(end.Value); err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}

	out.Title = value(ve, ical.ComponentPropertySummary)
	out.URL = value(ve, ical.ComponentPropertyUrl)
	out.Description = value(ve, ical.ComponentPropertyDescription)
	out.HTMLContent = value(ve, propAltDesc)
	out.BusyStatus = value(ve, propBusyStatus)

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		out.Categories = append(out.Categories, p.Value)
	}
	return out, nil
}

func value(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// parseDateTime decomposes 20240106T100000Z (UTC) or 20240106T100000 (floating).
func parseDateTime(v string) (model.DateTime, error) {
	v = strings.TrimSpace(v)

	zone := model.ZoneLocal
	layout := floatingLayout
	if strings.HasSuffix(v, "Z") {
		zone = model.ZoneUTC
		layout = utcLayout
	}

	t, err := time.Parse(layout, v)
	if err != nil {
		return model.DateTime{}, err
	}
	return model.DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Zone:   zone,
	}, nil
}
