package config

import (
	"fmt"
	"time"
)

// Clock is a time of day without a date.
type Clock struct {
	Hour, Minute, Second int
}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("%w: malformed time of day %q (want HH:MM)", ErrInvalid, s)
}

// On places the clock on the calendar day of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, loc)
}

// Next returns the first occurrence of the clock at or after now: today if
// it has not passed yet, tomorrow otherwise.
func (c Clock) Next(now time.Time, loc *time.Location) time.Time {
	t := c.On(now, loc)
	if now.After(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}
