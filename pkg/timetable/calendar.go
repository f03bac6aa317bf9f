package timetable

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const YearMonthDayFormat = "2006-01-02"

// Calendar describes the days on which a trip runs. The weekday flags give
// the base pattern, Dates carry date-range exceptions and BankHolidays carry
// named-holiday exceptions. Calendars are deduplicated by content hash, so
// many trips can share one record.
type Calendar struct {
	Hash string `bson:"_id,omitempty"`

	Monday    bool `bson:"monday"`
	Tuesday   bool `bson:"tuesday"`
	Wednesday bool `bson:"wednesday"`
	Thursday  bool `bson:"thursday"`
	Friday    bool `bson:"friday"`
	Saturday  bool `bson:"saturday"`
	Sunday    bool `bson:"sunday"`

	// StartDate and EndDate bound the days the calendar can apply to.
	// A zero EndDate means the calendar is open ended.
	StartDate time.Time `bson:"startdate"`
	EndDate   time.Time `bson:"enddate,omitempty"`

	Summary string `bson:"summary,omitempty"`

	Dates        []CalendarDate        `bson:"dates,omitempty"`
	BankHolidays []CalendarBankHoliday `bson:"bankholidays,omitempty"`
}

// CalendarDate is a dated exception to a Calendar. Operation false removes
// days, Operation true with Special true adds days outside the weekday
// pattern. Operation true with Special false only annotates days the weekday
// pattern already covers (school term ranges and the like).
type CalendarDate struct {
	StartDate time.Time `bson:"startdate"`
	EndDate   time.Time `bson:"enddate,omitempty"`
	Operation bool      `bson:"operation"`
	Special   bool      `bson:"special,omitempty"`
	Summary   string    `bson:"summary,omitempty"`
}

// CalendarBankHoliday applies or removes a named bank holiday. The name is
// resolved against the known holiday dates at query time.
type CalendarBankHoliday struct {
	Name      string `bson:"name"`
	Operation bool   `bson:"operation"`
}

func (d *CalendarDate) Contains(when time.Time) bool {
	if when.Before(d.StartDate) {
		return false
	}
	return d.EndDate.IsZero() || !when.After(d.EndDate)
}

func (d *CalendarDate) IsValid() bool {
	return d.EndDate.IsZero() || !d.EndDate.Before(d.StartDate)
}

func (c *Calendar) RunsOn(day time.Weekday) bool {
	switch day {
	case time.Monday:
		return c.Monday
	case time.Tuesday:
		return c.Tuesday
	case time.Wednesday:
		return c.Wednesday
	case time.Thursday:
		return c.Thursday
	case time.Friday:
		return c.Friday
	case time.Saturday:
		return c.Saturday
	case time.Sunday:
		return c.Sunday
	}
	return false
}

// Allows reports whether the calendar operates on the given day.
//
// Resolution order, strongest first:
//  1. outside the validity window never operates
//  2. any exclusion covering the day wins over everything else
//  3. the weekday pattern
//  4. special inclusion dates and bank holiday operation days
//
// A non-special inclusion never turns a non-operating weekday on.
func (c *Calendar) Allows(when time.Time, holidays BankHolidaySet) bool {
	if when.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && when.After(c.EndDate) {
		return false
	}

	for _, date := range c.Dates {
		if !date.Operation && date.Contains(when) {
			return false
		}
	}
	for _, bankHoliday := range c.BankHolidays {
		if !bankHoliday.Operation && holidays.FallsOn(bankHoliday.Name, when) {
			return false
		}
	}

	if c.RunsOn(when.Weekday()) {
		return true
	}

	for _, date := range c.Dates {
		if date.Operation && date.Special && date.Contains(when) {
			return true
		}
	}
	for _, bankHoliday := range c.BankHolidays {
		if bankHoliday.Operation && holidays.FallsOn(bankHoliday.Name, when) {
			return true
		}
	}

	return false
}

// FilterCalendars returns the subset of calendars operating on the given
// day. Pure function over an already loaded set, so callers can fetch
// candidates with one query and resolve the rest in memory.
func FilterCalendars(calendars []*Calendar, when time.Time, holidays BankHolidaySet) []*Calendar {
	var active []*Calendar

	for _, calendar := range calendars {
		if calendar.Allows(when, holidays) {
			active = append(active, calendar)
		}
	}

	return active
}

// Normalise drops malformed exception records (an end date earlier than the
// start date) so they can never poison day resolution.
func (c *Calendar) Normalise() {
	valid := c.Dates[:0]
	for _, date := range c.Dates {
		if date.IsValid() {
			valid = append(valid, date)
			continue
		}

		log.Warn().
			Str("start", date.StartDate.Format(YearMonthDayFormat)).
			Str("end", date.EndDate.Format(YearMonthDayFormat)).
			Msg("Dropping calendar date with end before start")
	}
	c.Dates = valid
}

func formatHashDate(when time.Time) string {
	if when.IsZero() {
		return "-"
	}
	return when.Format("20060102")
}

// GenerateContentHash produces a deterministic identifier for the calendar's
// full content, used to share identical calendars between trips.
func (c *Calendar) GenerateContentHash() string {
	hash := sha256.New()

	fmt.Fprintf(hash, "%t%t%t%t%t%t%t",
		c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday)
	fmt.Fprintf(hash, "%s%s", formatHashDate(c.StartDate), formatHashDate(c.EndDate))

	for _, date := range c.Dates {
		fmt.Fprintf(hash, "|d%s%s%t%t%s",
			formatHashDate(date.StartDate), formatHashDate(date.EndDate), date.Operation, date.Special, date.Summary)
	}
	for _, bankHoliday := range c.BankHolidays {
		fmt.Fprintf(hash, "|b%s%t", bankHoliday.Name, bankHoliday.Operation)
	}

	return fmt.Sprintf("%x", hash.Sum(nil))
}
