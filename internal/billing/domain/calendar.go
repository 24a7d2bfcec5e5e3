package domain

import "time"

type monthDay struct {
	month time.Month
	day   int
}

// Fixed yearly public holidays. Easter is approximated as April 1: the
// source calendar used that fixed date, and the intended holiday list is
// ambiguous, so the approximation is kept rather than silently corrected.
var holidays = []monthDay{
	{time.January, 1},
	{time.April, 1},
	{time.May, 1},
	{time.May, 8},
	{time.July, 14},
	{time.August, 15},
	{time.November, 1},
	{time.November, 11},
	{time.December, 25},
}

func IsHoliday(t time.Time) bool {
	t = t.UTC()
	for _, h := range holidays {
		if t.Month() == h.month && t.Day() == h.day {
			return true
		}
	}
	return false
}

func IsWeekend(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
