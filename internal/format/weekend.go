package format

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// minWeekendSeries is the duration above which a Saturday→Sunday raid event
// is treated as a series of weekends rather than one continuous event.
const minWeekendSeries = 21 * 24 * time.Hour

// isWeekendSeries reports whether a raid event starting at start and ending
// at end should be split into weekend entries.
func isWeekendSeries(start, end time.Time) bool {
	return start.Weekday() == time.Saturday &&
		end.Weekday() == time.Sunday &&
		end.Sub(start) > minWeekendSeries
}

// weekendCount applies the day-of-month rule: the first weekend ends on
// start.Day+1 and each following one 7 days later, as long as that day does
// not pass end.Day.
func weekendCount(start, end model.DateTime) int {
	n := 0
	for weekendEnd := start.Day + 1; weekendEnd <= end.Day; weekendEnd += 7 {
		n++
	}
	return n
}

// splitWeekends expands base into one entry per weekend. Saturdays are
// enumerated with a weekly rule anchored on the start date; each entry keeps
// the start time of day on Saturday and the end time of day on Sunday.
func splitWeekends(base model.CalendarEntry) []model.CalendarEntry {
	count := weekendCount(base.Start, base.End)
	if count == 0 {
		appLog.Warn("raid weekend series has no weekend in range; keeping single entry",
			"title", base.Title, "start", base.Start.String(), "end", base.End.String())
		return []model.CalendarEntry{base}
	}

	anchor := time.Date(base.Start.Year, time.Month(base.Start.Month), base.Start.Day, 0, 0, 0, 0, time.UTC)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: anchor,
		Count:   count,
	})
	if err != nil {
		appLog.Error("raid weekend rule failed; keeping single entry", err, "title", base.Title)
		return []model.CalendarEntry{base}
	}

	saturdays := r.All()
	out := make([]model.CalendarEntry, 0, len(saturdays))
	for _, sat := range saturdays {
		sun := sat.AddDate(0, 0, 1)

		e := base
		e.Categories = append([]string(nil), base.Categories...)
		e.Start = withDate(base.Start, sat)
		e.End = withDate(base.End, sun)
		out = append(out, e)
	}
	return out
}

func withDate(dt model.DateTime, day time.Time) model.DateTime {
	dt.Year = day.Year()
	dt.Month = int(day.Month())
	dt.Day = day.Day()
	return dt
}
