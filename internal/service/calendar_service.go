package service

import (
	"time"

	"github.com/noah-isme/sma-attendance-report/internal/models"
)

// BuildCalendar returns every date in [start, end] tagged with its weekday name and whether
// it is a school day for ww. A start after end yields an empty calendar.
func BuildCalendar(start, end time.Time, ww models.WorkWeek) []models.CalendarDay {
	start = models.TruncateDay(start)
	end = models.TruncateDay(end)
	if start.After(end) {
		return []models.CalendarDay{}
	}

	days := make([]models.CalendarDay, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, models.CalendarDay{
			Date:      d,
			Day:       d.Weekday().String(),
			SchoolDay: ww.IsSchoolDay(d),
		})
	}
	return days
}

// SchoolDays filters the calendar down to school days.
func SchoolDays(calendar []models.CalendarDay) []models.CalendarDay {
	out := make([]models.CalendarDay, 0, len(calendar))
	for _, d := range calendar {
		if d.SchoolDay {
			out = append(out, d)
		}
	}
	return out
}
