package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-report/internal/models"
)

func date(raw string) time.Time {
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuildCalendarLengthAndFlags(t *testing.T) {
	start := date("2024-01-01")
	for _, ww := range []models.WorkWeek{models.WorkWeekMonFri, models.WorkWeekSunThurs} {
		for span := 0; span < 20; span++ {
			end := start.AddDate(0, 0, span)
			days := BuildCalendar(start, end, ww)
			require.Len(t, days, span+1)
			for i, d := range days {
				assert.Equal(t, start.AddDate(0, 0, i), d.Date)
				weekend := false
				for _, w := range ww.WeekendDays() {
					if models.MondayIndex(d.Date) == w {
						weekend = true
					}
				}
				assert.Equal(t, !weekend, d.SchoolDay, "%s %s", ww, d.Key())
			}
		}
	}
}

func TestBuildCalendarSingleDay(t *testing.T) {
	days := BuildCalendar(date("2024-01-06"), date("2024-01-06"), models.WorkWeekMonFri)
	require.Len(t, days, 1)
	assert.Equal(t, "Saturday", days[0].Day)
	assert.False(t, days[0].SchoolDay)
}

func TestBuildCalendarReversedRangeIsEmpty(t *testing.T) {
	days := BuildCalendar(date("2024-01-05"), date("2024-01-01"), models.WorkWeekMonFri)
	assert.NotNil(t, days)
	assert.Empty(t, days)
}

func TestSchoolDaysSunThurs(t *testing.T) {
	days := SchoolDays(BuildCalendar(date("2024-01-07"), date("2024-01-13"), models.WorkWeekSunThurs))
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.Day
	}
	assert.Equal(t, []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"}, names)
}
