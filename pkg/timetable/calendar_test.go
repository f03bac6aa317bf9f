package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func weekdayCalendar() *Calendar {
	return &Calendar{
		Monday:    true,
		Tuesday:   true,
		Wednesday: true,
		Thursday:  true,
		Friday:    true,
		StartDate: date(2024, 1, 1),
		EndDate:   date(2024, 12, 31),
	}
}

func TestCalendarAllowsWeekdayPattern(t *testing.T) {
	calendar := weekdayCalendar()

	assert.True(t, calendar.Allows(date(2024, 6, 3), nil), "Monday")
	assert.True(t, calendar.Allows(date(2024, 6, 7), nil), "Friday")
	assert.False(t, calendar.Allows(date(2024, 6, 8), nil), "Saturday")
	assert.False(t, calendar.Allows(date(2024, 6, 9), nil), "Sunday")
}

func TestCalendarAllowsValidityWindow(t *testing.T) {
	calendar := weekdayCalendar()

	assert.False(t, calendar.Allows(date(2023, 12, 29), nil), "before start")
	assert.False(t, calendar.Allows(date(2025, 1, 6), nil), "after end")

	openEnded := weekdayCalendar()
	openEnded.EndDate = time.Time{}
	assert.True(t, openEnded.Allows(date(2030, 6, 3), nil), "open ended end date")
}

func TestCalendarExclusionBeatsEverything(t *testing.T) {
	calendar := weekdayCalendar()
	calendar.Dates = []CalendarDate{
		// a Monday removed
		{StartDate: date(2024, 6, 3), EndDate: date(2024, 6, 3), Operation: false},
		// the same Monday also nominally added back
		{StartDate: date(2024, 6, 3), EndDate: date(2024, 6, 3), Operation: true, Special: true},
	}

	assert.False(t, calendar.Allows(date(2024, 6, 3), nil))
	assert.True(t, calendar.Allows(date(2024, 6, 10), nil), "other Mondays unaffected")
}

func TestCalendarSpecialInclusionAddsDay(t *testing.T) {
	calendar := weekdayCalendar()
	calendar.Dates = []CalendarDate{
		// one Saturday added
		{StartDate: date(2024, 6, 8), EndDate: date(2024, 6, 8), Operation: true, Special: true},
		// a term-time range, not special, covering a Sunday
		{StartDate: date(2024, 6, 1), EndDate: date(2024, 6, 30), Operation: true, Special: false},
	}

	assert.True(t, calendar.Allows(date(2024, 6, 8), nil), "special inclusion")
	assert.False(t, calendar.Allows(date(2024, 6, 9), nil), "non special inclusion never adds a day")
}

func TestCalendarBankHolidays(t *testing.T) {
	holidays := BankHolidaySet{}
	holidays.Add("ChristmasDay", date(2024, 12, 25))
	holidays.Add("EasterMonday", date(2024, 4, 1))

	nonOperating := weekdayCalendar()
	nonOperating.BankHolidays = []CalendarBankHoliday{
		{Name: "ChristmasDay", Operation: false},
		{Name: "EasterMonday", Operation: false},
	}

	assert.False(t, nonOperating.Allows(date(2024, 12, 25), holidays), "Wednesday removed by holiday")
	assert.False(t, nonOperating.Allows(date(2024, 4, 1), holidays), "Easter Monday removed")
	assert.True(t, nonOperating.Allows(date(2024, 12, 24), holidays))

	sundayOnly := &Calendar{
		Sunday:    true,
		StartDate: date(2024, 1, 1),
		BankHolidays: []CalendarBankHoliday{
			{Name: "EasterMonday", Operation: true},
		},
	}
	assert.True(t, sundayOnly.Allows(date(2024, 4, 1), holidays), "holiday operation adds a Monday")
	assert.False(t, sundayOnly.Allows(date(2024, 4, 8), holidays), "plain Mondays stay off")
}

func TestCalendarDateContains(t *testing.T) {
	openEnded := CalendarDate{StartDate: date(2024, 6, 1)}
	assert.True(t, openEnded.Contains(date(2030, 1, 1)))
	assert.False(t, openEnded.Contains(date(2024, 5, 31)))

	bounded := CalendarDate{StartDate: date(2024, 6, 1), EndDate: date(2024, 6, 7)}
	assert.True(t, bounded.Contains(date(2024, 6, 7)))
	assert.False(t, bounded.Contains(date(2024, 6, 8)))
}

func TestCalendarNormaliseDropsMalformedDates(t *testing.T) {
	calendar := weekdayCalendar()
	calendar.Dates = []CalendarDate{
		{StartDate: date(2024, 6, 10), EndDate: date(2024, 6, 3), Operation: false},
		{StartDate: date(2024, 6, 3), EndDate: date(2024, 6, 3), Operation: false},
	}

	calendar.Normalise()

	require.Len(t, calendar.Dates, 1)
	assert.Equal(t, date(2024, 6, 3), calendar.Dates[0].StartDate)

	// the inverted exclusion must not have removed the rest of the week
	assert.True(t, calendar.Allows(date(2024, 6, 4), nil))
	assert.False(t, calendar.Allows(date(2024, 6, 3), nil))
}

func TestFilterCalendarsMatchesAllows(t *testing.T) {
	holidays := BankHolidaySet{}
	holidays.Add("ChristmasDay", date(2024, 12, 25))

	calendars := []*Calendar{
		weekdayCalendar(),
		{Saturday: true, Sunday: true, StartDate: date(2024, 1, 1)},
		{
			Monday:    true,
			StartDate: date(2024, 1, 1),
			Dates: []CalendarDate{
				{StartDate: date(2024, 6, 3), EndDate: date(2024, 6, 3), Operation: false},
			},
		},
	}
	for i, calendar := range calendars {
		calendar.Hash = calendar.GenerateContentHash()
		require.NotEmpty(t, calendar.Hash, i)
	}

	days := []time.Time{
		date(2024, 6, 3),
		date(2024, 6, 8),
		date(2024, 12, 25),
	}

	for _, day := range days {
		filtered := FilterCalendars(calendars, day, holidays)

		var expected []string
		for _, calendar := range calendars {
			if calendar.Allows(day, holidays) {
				expected = append(expected, calendar.Hash)
			}
		}

		var actual []string
		for _, calendar := range filtered {
			actual = append(actual, calendar.Hash)
		}

		assert.Equal(t, expected, actual, day.Format(YearMonthDayFormat))
	}
}

func TestGenerateContentHashDistinguishesCalendars(t *testing.T) {
	a := weekdayCalendar()
	b := weekdayCalendar()
	assert.Equal(t, a.GenerateContentHash(), b.GenerateContentHash())

	b.Dates = []CalendarDate{{StartDate: date(2024, 6, 3), Operation: false}}
	assert.NotEqual(t, a.GenerateContentHash(), b.GenerateContentHash())

	c := weekdayCalendar()
	c.BankHolidays = []CalendarBankHoliday{{Name: "ChristmasDay", Operation: false}}
	d := weekdayCalendar()
	d.BankHolidays = []CalendarBankHoliday{{Name: "ChristmasDay", Operation: true}}
	assert.NotEqual(t, c.GenerateContentHash(), d.GenerateContentHash())
}
