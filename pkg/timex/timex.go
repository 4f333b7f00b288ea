// Package timex holds the time conventions shared by the whole service:
// the fixed UTC+3 offset used for calendar-day math, day/week windows,
// and the HH:MM:SS duration format users type and see.
package timex

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location is the fixed offset every persisted timestamp is interpreted in.
// Stored values carry no zone marker, so reads and writes must agree on this.
var Location = time.FixedZone("UTC+3", 3*60*60)

// ErrBadDuration is returned for malformed HH:MM:SS input.
var ErrBadDuration = errors.New("malformed duration, expected HH:MM:SS")

// Now returns the current time in Location.
func Now() time.Time {
	return time.Now().In(Location)
}

// DayWindow returns the half-open window [00:00, next day 00:00) that
// contains t, computed in Location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.In(Location)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns the half-open 7-day window ending with the calendar
// day that contains t: [dayStart-6d, dayStart+24h).
func WeekWindow(t time.Time) (time.Time, time.Time) {
	dayStart, dayEnd := DayWindow(t)
	return dayStart.AddDate(0, 0, -6), dayEnd
}

// Overlap returns the positive intersection of [aStart, aEnd) and
// [bStart, bEnd), or zero when the intervals do not overlap.
func Overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.After(start) {
		return end.Sub(start)
	}
	return 0
}

// FormatDuration renders d as HH:MM:SS. Negative durations are rendered
// with a leading minus.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, total/3600, (total%3600)/60, total%60)
}

// FormatSeconds renders an accumulated seconds counter as HH:MM:SS.
func FormatSeconds(sec int64) string {
	return FormatDuration(time.Duration(sec) * time.Second)
}

// ParseSignedHHMMSS parses the user-facing HH:MM:SS format. A minus sign
// on any segment makes the whole amount negative, so "00:-01:00" is minus
// one minute. Hours are unbounded, minutes and seconds must stay below 60.
func ParseSignedHHMMSS(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, ErrBadDuration
	}
	vals := make([]int64, 3)
	negative := false
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, ErrBadDuration
		}
		if v < 0 {
			negative = true
			v = -v
		}
		if i > 0 && v > 59 {
			return 0, ErrBadDuration
		}
		vals[i] = v
	}
	total := vals[0]*3600 + vals[1]*60 + vals[2]
	if negative {
		total = -total
	}
	return time.Duration(total) * time.Second, nil
}
