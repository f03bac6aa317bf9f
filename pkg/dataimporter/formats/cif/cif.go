package cif

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const openEndedDate = "99999999"

const recordDateFormat = "20060102"

// AtcoCif parses ATCO-CIF exchange files into service candidates. Services
// are keyed on line name and operator, so the same service accumulates
// journeys across every file in an archive.
type AtcoCif struct {
	candidates map[string]*timetable.ServiceCandidate
	order      []string

	calendars map[string]*timetable.Calendar

	// per file state
	route      *timetable.RouteCandidate
	trip       *timetable.TripCandidate
	tripHeader string
	exceptions []string
	sequence   int
	notes      []timetable.Note
}

func (a *AtcoCif) Candidates() []*timetable.ServiceCandidate {
	var candidates []*timetable.ServiceCandidate
	for _, key := range a.order {
		candidates = append(candidates, a.candidates[key])
	}
	return candidates
}

func (a *AtcoCif) ParseFile(reader io.Reader, filename string) error {
	if a.candidates == nil {
		a.candidates = map[string]*timetable.ServiceCandidate{}
		a.calendars = map[string]*timetable.Calendar{}
	}

	a.route = nil
	a.trip = nil
	a.exceptions = nil
	a.notes = nil

	// the exports still use the Windows-1252 code page
	scanner := bufio.NewScanner(transform.NewReader(reader, charmap.Windows1252.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	previousIdentity := ""
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if len(line) < 2 {
			continue
		}

		a.handleLine(line, previousIdentity)
		previousIdentity = line[:2]
	}

	return scanner.Err()
}

func (a *AtcoCif) handleLine(line string, previousIdentity string) {
	switch line[:2] {
	case "QD":
		a.handleRoute(line)
	case "QS":
		a.sequence = 0
		a.tripHeader = line
		a.exceptions = nil
	case "QE":
		a.exceptions = append(a.exceptions, line)
	case "QO":
		a.handleOrigin(line)
	case "QI":
		a.handleIntermediate(line)
	case "QT":
		a.handleDestination(line)
	case "QN":
		a.handleNote(line, previousIdentity)
	}
}

// handleRoute starts (or resumes) the service for a QD record. Outbound and
// inbound records for the same service carry separate descriptions.
func (a *AtcoCif) handleRoute(line string) {
	operator := field(line, 3, 7)
	lineName := field(line, 7, 11)
	if lineName == "" {
		return
	}
	key := strings.ToUpper(lineName + "_" + operator)
	outbound := field(line, 11, 12) != "I"
	description := field(line, 12, len(line))

	candidate := a.candidates[key]
	if candidate == nil {
		candidate = &timetable.ServiceCandidate{
			LineName:    lineName,
			ServiceCode: key,
			Mode:        "bus",
			PublicUse:   true,
		}
		if operator != "" {
			candidate.Operators = []timetable.OperatorCandidate{{NOC: operator}}
		}
		candidate.Routes = []*timetable.RouteCandidate{{
			Code:        key,
			LineName:    lineName,
			ServiceCode: key,
		}}

		a.candidates[key] = candidate
		a.order = append(a.order, key)
	}

	if outbound {
		candidate.Description = description
		candidate.OutboundDescription = description
		candidate.Routes[0].Description = description
	} else {
		candidate.InboundDescription = description
		if candidate.Description == "" {
			candidate.Description = description
		}
	}

	a.route = candidate.Routes[0]
}

func (a *AtcoCif) handleOrigin(line string) {
	if a.route == nil {
		return
	}

	a.trip = &timetable.TripCandidate{
		Inbound:  field(a.tripHeader, 64, 65) == "I",
		Calendar: a.getCalendar(),
	}

	departure := parseClock(field(line, 14, 18))
	a.trip.Start = departure
	a.trip.StopTimes = []timetable.StopTime{{
		StopRef:   field(line, 2, 14),
		Arrival:   departure,
		Departure: departure,
		Sequence:  0,
		PickUp:    true,
		SetDown:   true,
	}}
}

func (a *AtcoCif) handleIntermediate(line string) {
	if a.trip == nil {
		return
	}

	var timingStatus string
	switch field(line, 26, 28) {
	case "T1":
		timingStatus = timetable.TimingStatusPrincipal
	case "T0":
		timingStatus = timetable.TimingStatusOther
	default:
		log.Debug().Str("line", line).Msg("Unrecognised timing status")
		return
	}

	a.sequence++
	a.trip.StopTimes = append(a.trip.StopTimes, timetable.StopTime{
		StopRef:      field(line, 2, 14),
		Arrival:      parseClock(field(line, 14, 18)),
		Departure:    parseClock(field(line, 18, 22)),
		Sequence:     a.sequence,
		TimingStatus: timingStatus,
		PickUp:       true,
		SetDown:      true,
	})
}

func (a *AtcoCif) handleDestination(line string) {
	if a.trip == nil {
		return
	}

	arrival := parseClock(field(line, 14, 18))
	stopRef := field(line, 2, 14)

	a.sequence++
	a.trip.StopTimes = append(a.trip.StopTimes, timetable.StopTime{
		StopRef:   stopRef,
		Arrival:   arrival,
		Departure: arrival,
		Sequence:  a.sequence,
		PickUp:    true,
		SetDown:   true,
	})

	a.trip.End = arrival
	a.trip.DestinationRef = stopRef
	a.trip.Notes = a.notes

	a.route.Trips = append(a.route.Trips, a.trip)

	a.trip = nil
	a.notes = nil
}

// handleNote interprets a QN record by what it follows. After a stop record
// it qualifies that stop's boarding rules; after the journey header it is a
// journey level note.
func (a *AtcoCif) handleNote(line string, previousIdentity string) {
	text := field(line, 7, len(line))

	switch previousIdentity {
	case "QO", "QI", "QT":
		if a.trip == nil || len(a.trip.StopTimes) == 0 {
			return
		}
		lastStop := &a.trip.StopTimes[len(a.trip.StopTimes)-1]

		switch strings.ToLower(text) {
		case "pick up only", "pick up  only":
			if previousIdentity != "QT" {
				lastStop.SetDown = false
			}
		case "set down only", ".set down only", "drop off only":
			if previousIdentity != "QT" {
				lastStop.PickUp = false
			}
		default:
			log.Debug().Str("note", text).Msg("Unrecognised stop note")
		}
	case "QS", "QE", "QN":
		if text != "" {
			a.notes = append(a.notes, timetable.Note{
				Code: field(line, 2, 7),
				Text: text,
			})
		}
	}
}

// getCalendar builds the calendar for the current journey header, interned
// on the header's date fields plus any exception records.
func (a *AtcoCif) getCalendar() *timetable.Calendar {
	key := field(a.tripHeader, 13, 38) + strings.Join(a.exceptions, "|")
	if calendar, cached := a.calendars[key]; cached {
		return calendar
	}

	calendar := &timetable.Calendar{
		Monday:    field(a.tripHeader, 29, 30) == "1",
		Tuesday:   field(a.tripHeader, 30, 31) == "1",
		Wednesday: field(a.tripHeader, 31, 32) == "1",
		Thursday:  field(a.tripHeader, 32, 33) == "1",
		Friday:    field(a.tripHeader, 33, 34) == "1",
		Saturday:  field(a.tripHeader, 34, 35) == "1",
		Sunday:    field(a.tripHeader, 35, 36) == "1",
		StartDate: parseRecordDate(field(a.tripHeader, 13, 21)),
		EndDate:   parseRecordDate(field(a.tripHeader, 21, 29)),
	}

	for _, exception := range a.exceptions {
		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: parseRecordDate(field(exception, 2, 10)),
			EndDate:   parseRecordDate(field(exception, 10, 18)),
			Operation: field(exception, 18, 19) == "1",
			Special:   field(exception, 18, 19) == "1",
		})
	}

	calendar.Normalise()
	calendar.Hash = calendar.GenerateContentHash()

	a.calendars[key] = calendar
	return calendar
}

// field slices a fixed width record without panicking on short lines.
func field(line string, from int, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return strings.TrimSpace(line[from:to])
}

func parseRecordDate(value string) time.Time {
	if value == "" || value == openEndedDate {
		return time.Time{}
	}

	parsed, err := time.Parse(recordDateFormat, value)
	if err != nil {
		log.Debug().Str("date", value).Msg("Unparseable record date")
		return time.Time{}
	}
	return parsed
}

func parseClock(value string) time.Duration {
	if len(value) != 4 {
		return 0
	}

	hours, hoursErr := strconv.Atoi(value[:2])
	minutes, minutesErr := strconv.Atoi(value[2:])
	if hoursErr != nil || minutesErr != nil {
		return 0
	}

	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}
