package timetable

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// Bank holiday group elements expand to the concrete holidays below them.
// The tree matches the grouping used by TransXChange operating profiles.
var bankHolidayGroups = map[string][]string{
	"AllBankHolidays":            {"AllHolidaysExceptChristmas", "Christmas", "DisplacementHolidays"},
	"HolidaysOnly":               {"AllBankHolidays"},
	"AllHolidaysExceptChristmas": {"Holidays", "HolidayMondays"},
	"Holidays":                   {"NewYearsDay", "Jan2ndScotland", "GoodFriday", "StAndrewsDay"},
	"HolidayMondays":             {"EasterMonday", "MayDay", "SpringBank", "LateSummerBankHolidayNotScotland", "AugustBankHolidayScotland"},
	"Christmas":                  {"ChristmasDay", "BoxingDay"},
	"DisplacementHolidays":       {"ChristmasDayHoliday", "BoxingDayHoliday", "NewYearsDayHoliday", "Jan2ndScotlandHoliday", "StAndrewsDayHoliday"},
	"EarlyRunOff":                {"ChristmasEve", "NewYearsEve"},
}

// ExpandBankHoliday resolves a holiday element name to the leaf holiday
// names it covers. Leaf names expand to themselves.
func ExpandBankHoliday(name string) []string {
	children, isGroup := bankHolidayGroups[name]
	if !isGroup {
		return []string{name}
	}

	var leaves []string
	for _, child := range children {
		leaves = append(leaves, ExpandBankHoliday(child)...)
	}
	return leaves
}

// BankHolidaySet maps holiday names to the concrete dates they fall on,
// across every year the set was loaded for.
type BankHolidaySet map[string][]time.Time

func (s BankHolidaySet) Add(name string, when time.Time) {
	s[name] = append(s[name], when)
}

func (s BankHolidaySet) FallsOn(name string, when time.Time) bool {
	for _, date := range s[name] {
		if date.Year() == when.Year() && date.Month() == when.Month() && date.Day() == when.Day() {
			return true
		}
	}
	return false
}

// Titles used in the gov.uk feed. The feed lists observed days, so the
// moveable Christmas and New Year entries map onto the displacement names.
var govUKTitleMapping = map[string]string{
	"Christmas Day":          "ChristmasDayHoliday",
	"Boxing Day":             "BoxingDayHoliday",
	"New Year’s Day":         "NewYearsDayHoliday",
	"Good Friday":            "GoodFriday",
	"Easter Monday":          "EasterMonday",
	"Early May bank holiday": "MayDay",
	"Spring bank holiday":    "SpringBank",
	"Summer bank holiday":    "LateSummerBankHolidayNotScotland",
	"St Andrew's Day":        "StAndrewsDayHoliday",
	"St Andrew’s Day":        "StAndrewsDayHoliday",
	"2nd January":            "Jan2ndScotlandHoliday",
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

type bankHolidayEventsSchema struct {
	Title string
	Date  string
}
type bankHolidayCountrySchema struct {
	Division string
	Events   []bankHolidayEventsSchema
}
type bankHolidaySchema struct {
	EnglandAndWales bankHolidayCountrySchema `json:"england-and-wales"`
	Scotland        bankHolidayCountrySchema `json:"scotland"`
	NorthernIreland bankHolidayCountrySchema `json:"northern-ireland"`
}

const govUKBankHolidaysURL = "https://www.gov.uk/bank-holidays.json"

// LoadBankHolidays fetches the gov.uk bank holiday feed and combines it with
// the fixed-date holidays to give the full name to date table.
func LoadBankHolidays() (BankHolidaySet, error) {
	resp, err := http.Get(govUKBankHolidaysURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bank holiday feed returned %s", resp.Status)
	}

	var raw bankHolidaySchema
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	return parseBankHolidays(&raw), nil
}

func parseBankHolidays(raw *bankHolidaySchema) BankHolidaySet {
	set := BankHolidaySet{}
	years := map[int]bool{}

	aggregateEvents := append(raw.NorthernIreland.Events, raw.Scotland.Events...)
	aggregateEvents = append(aggregateEvents, raw.EnglandAndWales.Events...)

	for _, event := range aggregateEvents {
		eventDate, err := time.Parse(YearMonthDayFormat, event.Date)
		if err != nil {
			continue
		}

		name := govUKTitleMapping[event.Title]
		if name == "" {
			name = fmt.Sprintf("Unknown%s", nonAlphanumericRegex.ReplaceAllString(event.Title, ""))
		}

		if !set.FallsOn(name, eventDate) {
			set.Add(name, eventDate)
		}
		years[eventDate.Year()] = true
	}

	for year := range years {
		addFixedBankHolidays(set, year)
	}

	return set
}

// addFixedBankHolidays adds the holidays that always fall on the same
// calendar day, plus the Scottish August bank holiday (first Monday of
// August), none of which the gov.uk feed carries under these names.
func addFixedBankHolidays(set BankHolidaySet, year int) {
	set.Add("ChristmasEve", time.Date(year, 12, 24, 0, 0, 0, 0, time.UTC))
	set.Add("NewYearsEve", time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC))

	set.Add("ChristmasDay", time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC))
	set.Add("BoxingDay", time.Date(year, 12, 26, 0, 0, 0, 0, time.UTC))
	set.Add("NewYearsDay", time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
	set.Add("Jan2ndScotland", time.Date(year, 1, 2, 0, 0, 0, 0, time.UTC))
	set.Add("StAndrewsDay", time.Date(year, 11, 30, 0, 0, 0, 0, time.UTC))

	augustFirst := time.Date(year, 8, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(augustFirst.Weekday()) + 7) % 7
	set.Add("AugustBankHolidayScotland", augustFirst.AddDate(0, 0, offset))
}
