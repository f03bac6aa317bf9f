package transxchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/busatlas/busatlas/pkg/transxchange"
	"github.com/rs/zerolog/log"
)

const DateFormat = "2006-01-02"

// Operation date ranges longer than this are treated as term-date style
// annotations rather than genuinely added days.
const maxSpecialRangeDays = 5

func parseDocumentDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(DateFormat, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// buildCalendar flattens an operating profile into a calendar bounded by
// the service's operating period.
func buildCalendar(profile *transxchange.ParsedOperatingProfile, startDate time.Time, endDate time.Time, doc *transxchange.TransXChange) *timetable.Calendar {
	calendar := &timetable.Calendar{
		Monday:    profile.RunsOnWeekday("Monday"),
		Tuesday:   profile.RunsOnWeekday("Tuesday"),
		Wednesday: profile.RunsOnWeekday("Wednesday"),
		Thursday:  profile.RunsOnWeekday("Thursday"),
		Friday:    profile.RunsOnWeekday("Friday"),
		Saturday:  profile.RunsOnWeekday("Saturday"),
		Sunday:    profile.RunsOnWeekday("Sunday"),
		StartDate: startDate,
		EndDate:   endDate,
	}

	addBankHolidays(calendar, profile)
	addSpecialDays(calendar, profile)
	addOtherPublicHolidays(calendar, profile)

	var summaryParts []string
	addServicedOrganisations(calendar, profile, doc, &summaryParts)

	calendar.Summary = cleanSummary(strings.Join(summaryParts, ", "))

	// a one day operating period reads better spelt out
	if !startDate.IsZero() && startDate.Equal(endDate) {
		only := startDate.Format("Monday 2 January 2006")
		if calendar.Summary != "" {
			calendar.Summary = fmt.Sprintf("%s, %s only", calendar.Summary, only)
		} else {
			calendar.Summary = fmt.Sprintf("%s only", only)
		}
	}

	calendar.Normalise()
	calendar.Hash = calendar.GenerateContentHash()

	return calendar
}

// addBankHolidays expands holiday groups to leaf names and deduplicates,
// with non-operation winning whenever a holiday appears on both sides.
func addBankHolidays(calendar *timetable.Calendar, profile *transxchange.ParsedOperatingProfile) {
	operations := map[string]bool{}

	operationNames := profile.BankHolidayOperation
	if profile.HolidaysOnly {
		operationNames = append(operationNames, "AllBankHolidays")
	}

	var order []string
	for _, element := range operationNames {
		for _, name := range timetable.ExpandBankHoliday(element) {
			if _, seen := operations[name]; !seen {
				order = append(order, name)
			}
			operations[name] = true
		}
	}
	for _, element := range profile.BankHolidayNonOperation {
		for _, name := range timetable.ExpandBankHoliday(element) {
			if _, seen := operations[name]; !seen {
				order = append(order, name)
			}
			operations[name] = false
		}
	}

	for _, name := range order {
		calendar.BankHolidays = append(calendar.BankHolidays, timetable.CalendarBankHoliday{
			Name:      name,
			Operation: operations[name],
		})
	}
}

func addSpecialDays(calendar *timetable.Calendar, profile *transxchange.ParsedOperatingProfile) {
	for _, dateRange := range profile.SpecialDaysNonOperation {
		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: parseDocumentDate(dateRange.StartDate),
			EndDate:   parseDocumentDate(dateRange.EndDate),
			Operation: false,
			Summary:   dateRange.Note,
		})
	}

	for _, dateRange := range profile.SpecialDaysOperation {
		start := parseDocumentDate(dateRange.StartDate)
		end := parseDocumentDate(dateRange.EndDate)

		special := true
		if !start.IsZero() && !end.IsZero() {
			days := int(end.Sub(start).Hours()/24) + 1
			if days > maxSpecialRangeDays {
				// long ranges are almost always term dates mislabelled as
				// days of operation, not genuinely added days
				log.Warn().
					Str("start", dateRange.StartDate).
					Str("end", dateRange.EndDate).
					Msg("Demoting long special days of operation range")
				special = false
			}
		}

		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: start,
			EndDate:   end,
			Operation: true,
			Special:   special,
			Summary:   dateRange.Note,
		})
	}
}

func addOtherPublicHolidays(calendar *timetable.Calendar, profile *transxchange.ParsedOperatingProfile) {
	for _, holiday := range profile.OtherPublicHolidaysOperation {
		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: parseDocumentDate(holiday.StartDate),
			EndDate:   parseDocumentDate(holiday.EndDate),
			Operation: true,
			Special:   true,
			Summary:   holiday.Description,
		})
	}
	for _, holiday := range profile.OtherPublicHolidaysNonOperation {
		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: parseDocumentDate(holiday.StartDate),
			EndDate:   parseDocumentDate(holiday.EndDate),
			Operation: false,
			Summary:   holiday.Description,
		})
	}
}

func addServicedOrganisations(calendar *timetable.Calendar, profile *transxchange.ParsedOperatingProfile, doc *transxchange.TransXChange, summaryParts *[]string) {
	for _, dayType := range profile.ServicedOrganisationDayTypes {
		org := doc.FindServicedOrganisation(dayType.OrganisationRef)
		if org == nil {
			log.Warn().Str("ref", dayType.OrganisationRef).Msg("Unknown serviced organisation")
			continue
		}

		pattern := org.Holidays
		kind := "holidays"
		if dayType.WorkingDays {
			pattern = org.WorkingDays
			kind = "days"
		}

		name := org.Name
		if name == "" {
			name = org.OrganisationCode
		}

		fragment := fmt.Sprintf("%s %s", name, kind)
		if !dayType.Operation {
			fragment = "not " + fragment
		}
		*summaryParts = append(*summaryParts, fragment)

		for _, dateRange := range pattern.DateRange {
			calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
				StartDate: parseDocumentDate(dateRange.StartDate),
				EndDate:   parseDocumentDate(dateRange.EndDate),
				Operation: dayType.Operation,
				Summary:   fragment,
			})
		}
	}
}

// cleanSummary tidies the doubled up wording that organisation names like
// "Anytown School Days" otherwise produce.
func cleanSummary(summary string) string {
	summary = strings.ReplaceAll(summary, " days days", " days")
	summary = strings.ReplaceAll(summary, "olidays holidays", "olidays")
	summary = strings.ReplaceAll(summary, "AnySchool", "school")
	return summary
}
