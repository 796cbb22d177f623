package format

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"eventcal/internal/model"
)

// ErrMalformedTimestamp is returned when a start/end value cannot be
// decomposed into year, month, day, hour and minute.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// timestampRe accepts "2024-01-06T10:00", optionally followed by seconds,
// a fraction and a trailing Z marking UTC.
var timestampRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})(?::\d{2}(?:\.\d+)?)?(Z)?$`)

// ParseTimestamp splits a feed timestamp into its date/time components and
// records whether it carries the UTC marker.
func ParseTimestamp(s string) (model.DateTime, error) {
	m := timestampRe.FindStringSubmatch(s)
	if m == nil {
		return model.DateTime{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}

	var parts [5]int
	for i := range parts {
		// The regexp guarantees digits.
		parts[i], _ = strconv.Atoi(m[i+1])
	}

	dt := model.DateTime{
		Year:   parts[0],
		Month:  parts[1],
		Day:    parts[2],
		Hour:   parts[3],
		Minute: parts[4],
		Zone:   model.ZoneLocal,
	}
	if m[6] == "Z" {
		dt.Zone = model.ZoneUTC
	}

	if dt.Month < 1 || dt.Month > 12 || dt.Day < 1 || dt.Day > daysIn(dt.Year, dt.Month) ||
		dt.Hour > 23 || dt.Minute > 59 {
		return model.DateTime{}, fmt.Errorf("%w: %q out of range", ErrMalformedTimestamp, s)
	}
	return dt, nil
}

// instant resolves dt to an absolute time. Local values are read as wall
// clock in loc; UTC values are converted into loc so weekday checks use the
// same zone for both kinds.
func instant(dt model.DateTime, loc *time.Location) time.Time {
	if dt.Zone == model.ZoneUTC {
		return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, 0, 0, time.UTC).In(loc)
	}
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, 0, 0, loc)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
