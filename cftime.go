/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package gwfdata

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// timeUnits holds a parsed CF time units string such as
// "hours since 1900-01-01 00:00:00.0".
type timeUnits struct {
	raw  string
	step time.Duration
	ref  time.Time
}

var timeSteps = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second, "s": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour, "h": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
}

func parseTimeUnits(units string) (timeUnits, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return timeUnits{}, fmt.Errorf("invalid time units %q", units)
	}
	step, ok := timeSteps[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return timeUnits{}, fmt.Errorf("unsupported time step %q in units %q", parts[0], units)
	}
	ref, err := parseReferenceTime(parts[1])
	if err != nil {
		return timeUnits{}, fmt.Errorf("invalid reference time in units %q: %v", units, err)
	}
	return timeUnits{raw: strings.TrimSpace(units), step: step, ref: ref}, nil
}

// parseReferenceTime parses the loosely formatted reference times allowed
// in CF units, such as "1900-1-1 0:0:0", "1970-01-01T00:00:00Z", or
// "2000-01-01 00:00:00.0 UTC".
func parseReferenceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "UTC")
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	s = strings.Replace(s, "T", " ", 1)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty reference time")
	}
	var y, mo, d int
	if _, err := fmt.Sscanf(fields[0], "%d-%d-%d", &y, &mo, &d); err != nil {
		return time.Time{}, fmt.Errorf("date %q: %v", fields[0], err)
	}
	var h, mi int
	var sec float64
	if len(fields) > 1 {
		clock := strings.Split(fields[1], ":")
		vals := []interface{}{&h, &mi, &sec}
		formats := []string{"%d", "%d", "%g"}
		for i, c := range clock {
			if i >= len(vals) {
				return time.Time{}, fmt.Errorf("clock %q", fields[1])
			}
			if _, err := fmt.Sscanf(c, formats[i], vals[i]); err != nil {
				return time.Time{}, fmt.Errorf("clock %q: %v", fields[1], err)
			}
		}
	}
	if len(fields) > 2 && fields[2] != "+00:00" && fields[2] != "0:00" && fields[2] != "+0:00" {
		return time.Time{}, fmt.Errorf("unsupported time zone %q", fields[2])
	}
	whole := math.Floor(sec)
	return time.Date(y, time.Month(mo), d, h, mi, int(whole), int(math.Round((sec-whole)*1e9)), time.UTC), nil
}

// decode converts an offset from the reference time into a time.
func (u timeUnits) decode(v float64) time.Time {
	secs := v * u.step.Seconds()
	whole := math.Floor(secs)
	ns := int64(math.Round((secs - whole) * 1e9))
	return time.Unix(u.ref.Unix()+int64(whole), int64(u.ref.Nanosecond())+ns).UTC()
}

// encode converts a time into an offset from the reference time.
func (u timeUnits) encode(t time.Time) float64 {
	secs := float64(t.Unix()-u.ref.Unix()) + float64(t.Nanosecond()-u.ref.Nanosecond())/1e9
	return secs / u.step.Seconds()
}

// checkCalendar returns an error for calendars whose dates cannot be
// represented with time.Time.
func checkCalendar(calendar string) error {
	switch strings.ToLower(strings.TrimSpace(calendar)) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return nil
	}
	return fmt.Errorf("unsupported calendar %q", calendar)
}
