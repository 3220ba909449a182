// Package format renders container record values for display.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// NA is shown for values that are absent or cannot be rendered.
const NA = "N/A"

const (
	clockLayout         = "3:04 PM"
	fullDateLayout      = "January 2, 2006"
	dateTimeLocalLayout = "2006-01-02T15:04"
)

// Formatter renders instants in the viewer's time zone.
type Formatter struct {
	Location *time.Location
}

// New returns a Formatter for loc, falling back to the process local zone.
func New(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{Location: loc}
}

func (f Formatter) loc() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// Time renders t as "h:mm AM/PM", or NA for the zero time.
func (f Formatter) Time(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.In(f.loc()).Format(clockLayout)
}

// FullDate renders t as "January 2, 2006", or NA for the zero time.
func (f Formatter) FullDate(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.In(f.loc()).Format(fullDateLayout)
}

// TimeRange renders "<start> - <end>", or NA unless both instants are set.
func (f Formatter) TimeRange(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return NA
	}
	return f.Time(start) + " - " + f.Time(end)
}

// Duration reports whole elapsed minutes as "<H> hr <M> min". End before
// start yields "0 hr 0 min".
func Duration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return NA
	}
	minutes := int64(end.Sub(start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d hr %d min", minutes/60, minutes%60)
}

// Count renders n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// CountString renders raw input. Digit-only strings get thousands separators,
// empty input is NA, anything else is returned as given.
func CountString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NA
	}
	if !isDigits(s) {
		return s
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return humanize.Comma(n)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// DateTimeLocal renders t for a datetime-local input, or "" for the zero
// time.
func (f Formatter) DateTimeLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc()).Format(dateTimeLocalLayout)
}

// ParseDateTimeLocal parses a datetime-local input value in the viewer's
// zone. Empty input yields the zero time.
func (f Formatter) ParseDateTimeLocal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateTimeLocalLayout, s, f.loc())
	if err != nil {
		// Some browsers submit seconds.
		t, err = time.ParseInLocation(dateTimeLocalLayout+":05", s, f.loc())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date and time %q", s)
		}
	}
	return t, nil
}
