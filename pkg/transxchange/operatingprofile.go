package transxchange

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// OperatingProfile captures the day pattern of a service, journey pattern
// or vehicle journey. The inner XML is kept raw and walked on demand, since
// the element names themselves carry the day and holiday information.
type OperatingProfile struct {
	XMLValue string `xml:",innerxml" json:"-" bson:"-"`
}

func (op *OperatingProfile) IsEmpty() bool {
	return strings.TrimSpace(op.XMLValue) == ""
}

// ParsedOperatingProfile is the flattened form of an operating profile.
type ParsedOperatingProfile struct {
	DaysOfWeek   []string
	HolidaysOnly bool

	BankHolidayOperation    []string
	BankHolidayNonOperation []string

	OtherPublicHolidaysOperation    []DateRange
	OtherPublicHolidaysNonOperation []DateRange

	SpecialDaysOperation    []DateRange
	SpecialDaysNonOperation []DateRange

	ServicedOrganisationDayTypes []ServicedOrganisationDayType
}

// ServicedOrganisationDayType ties the profile to an organisation's working
// days or holidays, either operating on them or not.
type ServicedOrganisationDayType struct {
	OrganisationRef string
	WorkingDays     bool
	Operation       bool
}

var dayShorthands = map[string][]string{
	"MondayToFriday":   {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
	"MondayToSaturday": {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	"MondayToSunday":   {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	"Weekend":          {"Saturday", "Sunday"},
}

func expandDayElement(name string) []string {
	if days, isShorthand := dayShorthands[name]; isShorthand {
		return days
	}
	return []string{name}
}

// Parse walks the profile's inner XML. Unknown elements are logged and
// skipped so a single odd profile cannot abort a document.
func (op *OperatingProfile) Parse() (*ParsedOperatingProfile, error) {
	parsed := &ParsedOperatingProfile{}

	elementChain := []string{}

	d := xml.NewDecoder(strings.NewReader(op.XMLValue))
	for {
		tok, err := d.Token()
		if tok == nil || err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch ty := tok.(type) {
		case xml.StartElement:
			elementChain = append(elementChain, ty.Name.Local)

			switch elementChain[0] {
			case "RegularDayType":
				if len(elementChain) == 2 && elementChain[1] == "HolidaysOnly" {
					parsed.HolidaysOnly = true
				}
				if len(elementChain) == 3 && elementChain[1] == "DaysOfWeek" {
					parsed.DaysOfWeek = append(parsed.DaysOfWeek, expandDayElement(elementChain[2])...)
				}
			case "BankHolidayOperation", "BankHolidaysOperation":
				if len(elementChain) != 3 {
					break
				}
				operation := elementChain[1] == "DaysOfOperation"

				if elementChain[2] == "OtherPublicHoliday" {
					var otherPublicHoliday struct {
						Description string
						Date        string
					}
					if err := d.DecodeElement(&otherPublicHoliday, &ty); err != nil {
						return nil, err
					}
					elementChain = elementChain[:len(elementChain)-1]

					dateRange := DateRange{
						StartDate:   otherPublicHoliday.Date,
						EndDate:     otherPublicHoliday.Date,
						Description: otherPublicHoliday.Description,
					}
					if operation {
						parsed.OtherPublicHolidaysOperation = append(parsed.OtherPublicHolidaysOperation, dateRange)
					} else {
						parsed.OtherPublicHolidaysNonOperation = append(parsed.OtherPublicHolidaysNonOperation, dateRange)
					}
					break
				}

				if operation {
					parsed.BankHolidayOperation = append(parsed.BankHolidayOperation, elementChain[2])
				} else if elementChain[1] == "DaysOfNonOperation" {
					parsed.BankHolidayNonOperation = append(parsed.BankHolidayNonOperation, elementChain[2])
				}
			case "SpecialDaysOperation":
				if len(elementChain) != 3 || elementChain[2] != "DateRange" {
					break
				}

				var dateRange DateRange
				if err := d.DecodeElement(&dateRange, &ty); err != nil {
					return nil, err
				}
				elementChain = elementChain[:len(elementChain)-1]

				if elementChain[1] == "DaysOfOperation" {
					parsed.SpecialDaysOperation = append(parsed.SpecialDaysOperation, dateRange)
				} else if elementChain[1] == "DaysOfNonOperation" {
					parsed.SpecialDaysNonOperation = append(parsed.SpecialDaysNonOperation, dateRange)
				}
			case "ServicedOrganisationDayType":
				if len(elementChain) != 4 || elementChain[3] != "ServicedOrganisationRef" {
					break
				}

				var organisationRef string
				if err := d.DecodeElement(&organisationRef, &ty); err != nil {
					return nil, err
				}
				elementChain = elementChain[:len(elementChain)-1]

				parsed.ServicedOrganisationDayTypes = append(parsed.ServicedOrganisationDayTypes, ServicedOrganisationDayType{
					OrganisationRef: strings.TrimSpace(organisationRef),
					WorkingDays:     elementChain[2] == "WorkingDays",
					Operation:       elementChain[1] == "DaysOfOperation",
				})
			case "PeriodicDayType":
				if len(elementChain) == 1 {
					log.Debug().Msg("Ignoring PeriodicDayType in operating profile")
				}
			}
		case xml.EndElement:
			elementChain = elementChain[:len(elementChain)-1]
		}
	}

	return parsed, nil
}

// RunsOnWeekday reports whether the flattened profile includes the day name.
func (p *ParsedOperatingProfile) RunsOnWeekday(name string) bool {
	for _, day := range p.DaysOfWeek {
		if day == name {
			return true
		}
	}
	return false
}
