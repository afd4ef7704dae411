// Package calendar buckets instants into business days of the service time zone.
package calendar

import (
	"fmt"
	"strconv"
	"time"
)

// Clock is the source of "now" for everything that buckets or schedules by time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Used by tests and replays.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Day is a calendar date encoded as YYYYMMDD.
type Day int

// DayOf returns the bucket of t as seen in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return dateToDay(y, m, d)
}

func dateToDay(y int, m time.Month, d int) Day {
	return Day(y*10000 + int(m)*100 + d)
}

// Date splits the bucket back into its parts.
func (d Day) Date() (year int, month time.Month, day int) {
	v := int(d)
	return v / 10000, time.Month(v / 100 % 100), v % 100
}

// Prev returns the previous calendar day.
func (d Day) Prev() Day {
	y, m, dd := d.Date()
	p := time.Date(y, m, dd-1, 12, 0, 0, 0, time.UTC)
	return dateToDay(p.Date())
}

// Window returns d followed by the n days before it, newest first.
func (d Day) Window(n int) []Day {
	days := make([]Day, 0, n+1)
	cur := d
	for i := 0; i <= n; i++ {
		days = append(days, cur)
		cur = cur.Prev()
	}
	return days
}

func (d Day) String() string {
	return strconv.Itoa(int(d))
}

// ParseDay accepts the YYYYMMDD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return dateToDay(t.Date()), nil
}

// EndOfDay is the last second of t's business day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}
