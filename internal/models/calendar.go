package models

import (
	"fmt"
	"time"
)

// DateLayout is the canonical day format used in tables and queries.
const DateLayout = "2006-01-02"

// WorkWeek identifies which calendar convention defines the school week.
type WorkWeek string

const (
	WorkWeekMonFri   WorkWeek = "mon-fri"
	WorkWeekSunThurs WorkWeek = "sun-thurs"
)

// ParseWorkWeek converts a configuration value into a WorkWeek.
func ParseWorkWeek(raw string) (WorkWeek, error) {
	ww := WorkWeek(raw)
	if !ww.Valid() {
		return "", fmt.Errorf("unknown work week %q", raw)
	}
	return ww, nil
}

// Valid returns true when the convention is supported.
func (w WorkWeek) Valid() bool {
	switch w {
	case WorkWeekMonFri, WorkWeekSunThurs:
		return true
	default:
		return false
	}
}

// WeekendDays returns the zero-based (Monday=0) weekday indices that are not school days.
func (w WorkWeek) WeekendDays() []int {
	switch w {
	case WorkWeekMonFri:
		return []int{5, 6}
	case WorkWeekSunThurs:
		return []int{4, 5}
	default:
		return nil
	}
}

// IsSchoolDay reports whether the date falls outside the weekend set.
func (w WorkWeek) IsSchoolDay(day time.Time) bool {
	idx := MondayIndex(day)
	for _, weekend := range w.WeekendDays() {
		if weekend == idx {
			return false
		}
	}
	return true
}

// FirstDayOfWeek returns the first day of the week containing day.
func (w WorkWeek) FirstDayOfWeek(day time.Time) time.Time {
	offset := MondayIndex(day)
	if w == WorkWeekSunThurs {
		offset = (offset + 1) % 7
	}
	return day.AddDate(0, 0, -offset)
}

// MondayIndex maps time.Weekday (Sunday=0) onto a Monday=0 index.
func MondayIndex(day time.Time) int {
	return (int(day.Weekday()) + 6) % 7
}

// CalendarDay is one date of the reporting window.
type CalendarDay struct {
	Date      time.Time
	Day       string
	SchoolDay bool
}

// Key returns the date formatted with DateLayout.
func (d CalendarDay) Key() string {
	return d.Date.Format(DateLayout)
}

// TruncateDay drops the clock part of t, keeping its location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
