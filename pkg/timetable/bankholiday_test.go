package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpandBankHoliday(t *testing.T) {
	assert.Equal(t, []string{"ChristmasDay", "BoxingDay"}, ExpandBankHoliday("Christmas"))

	all := ExpandBankHoliday("AllBankHolidays")
	assert.Contains(t, all, "GoodFriday")
	assert.Contains(t, all, "EasterMonday")
	assert.Contains(t, all, "ChristmasDay")
	assert.Contains(t, all, "NewYearsDayHoliday")
	assert.NotContains(t, all, "ChristmasEve", "early run off days are a separate group")

	assert.Equal(t, ExpandBankHoliday("AllBankHolidays"), ExpandBankHoliday("HolidaysOnly"))

	assert.Equal(t, []string{"GoodFriday"}, ExpandBankHoliday("GoodFriday"), "leaf expands to itself")
}

func TestParseBankHolidays(t *testing.T) {
	raw := &bankHolidaySchema{
		EnglandAndWales: bankHolidayCountrySchema{
			Division: "england-and-wales",
			Events: []bankHolidayEventsSchema{
				{Title: "Good Friday", Date: "2024-03-29"},
				{Title: "Easter Monday", Date: "2024-04-01"},
				{Title: "Christmas Day", Date: "2024-12-25"},
			},
		},
		Scotland: bankHolidayCountrySchema{
			Division: "scotland",
			Events: []bankHolidayEventsSchema{
				{Title: "2nd January", Date: "2024-01-02"},
				{Title: "Good Friday", Date: "2024-03-29"},
			},
		},
	}

	set := parseBankHolidays(raw)

	assert.True(t, set.FallsOn("GoodFriday", date(2024, 3, 29)))
	assert.True(t, set.FallsOn("EasterMonday", date(2024, 4, 1)))
	assert.True(t, set.FallsOn("ChristmasDayHoliday", date(2024, 12, 25)), "feed date is the observed day")
	assert.True(t, set.FallsOn("Jan2ndScotlandHoliday", date(2024, 1, 2)))

	// fixed date holidays filled in for every year the feed covered
	assert.True(t, set.FallsOn("ChristmasDay", date(2024, 12, 25)))
	assert.True(t, set.FallsOn("ChristmasEve", date(2024, 12, 24)))
	assert.True(t, set.FallsOn("NewYearsEve", date(2024, 12, 31)))
	assert.True(t, set.FallsOn("StAndrewsDay", date(2024, 11, 30)))

	// first Monday of August 2024 was the 5th
	assert.True(t, set.FallsOn("AugustBankHolidayScotland", date(2024, 8, 5)))
	assert.False(t, set.FallsOn("AugustBankHolidayScotland", date(2024, 8, 26)))
}

func TestBankHolidaySetFallsOn(t *testing.T) {
	set := BankHolidaySet{}
	set.Add("MayDay", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))

	assert.True(t, set.FallsOn("MayDay", date(2024, 5, 6)))
	assert.False(t, set.FallsOn("MayDay", date(2024, 5, 7)))
	assert.False(t, set.FallsOn("SpringBank", date(2024, 5, 6)), "unknown name never matches")
}
