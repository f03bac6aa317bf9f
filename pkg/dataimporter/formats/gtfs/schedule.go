package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

const gtfsDateFormat = "20060102"

// modes maps the extended route_type values the UK feeds actually use.
var modes = map[int]string{
	0:   "tram",
	1:   "metro",
	2:   "rail",
	3:   "bus",
	4:   "ferry",
	200: "coach",
}

// Schedule parses a GTFS schedule zip into service candidates, one
// candidate per route.
type Schedule struct {
	Agencies      []Agency
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
	Frequencies   []Frequency
	Shapes        []Shape
}

func (s *Schedule) ParseFile(reader io.Reader, filename string) error {
	// Some feeds have records with missing trailing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})

	fileMap := map[string]interface{}{
		"agency.txt":         &s.Agencies,
		"routes.txt":         &s.Routes,
		"trips.txt":          &s.Trips,
		"stop_times.txt":     &s.StopTimes,
		"calendar.txt":       &s.Calendars,
		"calendar_dates.txt": &s.CalendarDates,
		"frequencies.txt":    &s.Frequencies,
		"shapes.txt":         &s.Shapes,
	}

	// TODO this uses a load of ram :(
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	for _, zipFile := range archive.File {
		destination, exists := fileMap[zipFile.Name]
		if !exists {
			log.Debug().Str("file", zipFile.Name).Msg("Skipping unknown gtfs file")
			continue
		}

		file, err := zipFile.Open()
		if err != nil {
			return err
		}

		log.Info().Str("file", zipFile.Name).Msg("Loading file")
		err = gocsv.Unmarshal(file, destination)
		file.Close()
		if err != nil {
			log.Error().Str("file", zipFile.Name).Err(err).Msg("Failed to parse csv file")
			return err
		}
	}

	return nil
}

func (s *Schedule) Candidates() []*timetable.ServiceCandidate {
	calendars := s.buildCalendars()
	shapes := s.buildShapes()

	agenciesByID := map[string]*Agency{}
	for index, agency := range s.Agencies {
		agenciesByID[agency.ID] = &s.Agencies[index]
	}

	stopTimesByTrip := map[string]map[int]*StopTime{}
	for index, stopTime := range s.StopTimes {
		if stopTimesByTrip[stopTime.TripID] == nil {
			stopTimesByTrip[stopTime.TripID] = map[int]*StopTime{}
		}
		stopTimesByTrip[stopTime.TripID][stopTime.StopSequence] = &s.StopTimes[index]
	}

	frequenciesByTrip := map[string][]*Frequency{}
	for index, frequency := range s.Frequencies {
		frequenciesByTrip[frequency.TripID] = append(frequenciesByTrip[frequency.TripID], &s.Frequencies[index])
	}

	tripsByRoute := map[string][]*Trip{}
	for index, trip := range s.Trips {
		tripsByRoute[trip.RouteID] = append(tripsByRoute[trip.RouteID], &s.Trips[index])
	}

	var candidates []*timetable.ServiceCandidate

	for _, route := range s.Routes {
		lineName := route.ShortName
		if lineName == "" {
			lineName = route.LongName
		}

		candidate := &timetable.ServiceCandidate{
			LineName:    lineName,
			Description: route.LongName,
			ServiceCode: route.ID,
			Mode:        modes[route.Type],
			PublicUse:   true,
		}

		agency := agenciesByID[route.AgencyID]
		if agency != nil {
			noc := agency.NOC
			if noc == "" {
				noc = agency.ID
			}
			candidate.Operators = []timetable.OperatorCandidate{{
				NOC:  noc,
				Name: agency.Name,
			}}
		}

		routeCandidate := &timetable.RouteCandidate{
			Code:        route.ID,
			LineName:    lineName,
			Description: route.LongName,
			ServiceCode: route.ID,
		}
		candidate.Routes = []*timetable.RouteCandidate{routeCandidate}

		shapesSeen := map[string]bool{}

		for _, trip := range tripsByRoute[route.ID] {
			converted := s.convertTrip(trip, agency, stopTimesByTrip[trip.ID], calendars)
			if converted == nil {
				continue
			}

			routeCandidate.Trips = append(routeCandidate.Trips, converted)
			routeCandidate.Trips = append(routeCandidate.Trips, expandFrequencies(converted, frequenciesByTrip[trip.ID])...)

			if trip.ShapeID != "" && !shapesSeen[trip.ShapeID] {
				shapesSeen[trip.ShapeID] = true
				if lineString := shapes[trip.ShapeID]; len(lineString) > 1 {
					routeCandidate.Shapes = append(routeCandidate.Shapes, lineString)
				}
			}

			if converted.Inbound {
				if candidate.InboundDescription == "" {
					candidate.InboundDescription = trip.Headsign
				}
			} else if candidate.OutboundDescription == "" {
				candidate.OutboundDescription = trip.Headsign
			}
		}

		candidates = append(candidates, candidate)
	}

	return candidates
}

func (s *Schedule) convertTrip(trip *Trip, agency *Agency, sequenceMap map[int]*StopTime, calendars map[string]*timetable.Calendar) *timetable.TripCandidate {
	calendar := calendars[trip.ServiceID]
	if calendar == nil {
		log.Debug().Str("trip", trip.ID).Str("service", trip.ServiceID).Msg("Trip has no calendar")
		return nil
	}
	if len(sequenceMap) == 0 {
		return nil
	}

	converted := &timetable.TripCandidate{
		Inbound:  trip.DirectionID,
		Headsign: trip.Headsign,
		// the feed trip id is what realtime feeds reference
		TicketMachineCode: trip.ID,
		BlockCode:         trip.BlockID,
		Calendar:          calendar,
	}
	if agency != nil {
		converted.OperatorNOC = agency.NOC
	}

	sequenceIDs := maps.Keys(sequenceMap)
	sort.Ints(sequenceIDs)

	for index, sequenceID := range sequenceIDs {
		stopTime := sequenceMap[sequenceID]

		arrival, arrivalErr := parseTimestamp(stopTime.ArrivalTime)
		departure, departureErr := parseTimestamp(stopTime.DepartureTime)
		if arrivalErr != nil || departureErr != nil {
			log.Error().Str("trip", trip.ID).Int("sequence", sequenceID).Msg("Failed to parse stop time")
			return nil
		}

		converted.StopTimes = append(converted.StopTimes, timetable.StopTime{
			StopRef:      stopTime.StopID,
			Arrival:      arrival,
			Departure:    departure,
			Sequence:     index,
			TimingStatus: timingStatus(stopTime.Timepoint),
			PickUp:       stopTime.PickupType == 0,
			SetDown:      stopTime.DropOffType == 0,
		})
	}

	converted.Start = converted.StopTimes[0].Departure
	converted.End = converted.StopTimes[len(converted.StopTimes)-1].Arrival
	converted.DestinationRef = converted.StopTimes[len(converted.StopTimes)-1].StopRef

	return converted
}

func (s *Schedule) buildCalendars() map[string]*timetable.Calendar {
	calendars := map[string]*timetable.Calendar{}

	for _, calendar := range s.Calendars {
		converted := &timetable.Calendar{
			Monday:    calendar.Monday == 1,
			Tuesday:   calendar.Tuesday == 1,
			Wednesday: calendar.Wednesday == 1,
			Thursday:  calendar.Thursday == 1,
			Friday:    calendar.Friday == 1,
			Saturday:  calendar.Saturday == 1,
			Sunday:    calendar.Sunday == 1,
			StartDate: parseGTFSDate(calendar.Start),
			EndDate:   parseGTFSDate(calendar.End),
		}
		calendars[calendar.ServiceID] = converted
	}

	for _, calendarDate := range s.CalendarDates {
		calendar := calendars[calendarDate.ServiceID]
		if calendar == nil {
			calendar = &timetable.Calendar{}
			calendars[calendarDate.ServiceID] = calendar
		}

		date := parseGTFSDate(calendarDate.Date)
		calendar.Dates = append(calendar.Dates, timetable.CalendarDate{
			StartDate: date,
			EndDate:   date,
			Operation: calendarDate.ExceptionType == 1,
			Special:   calendarDate.ExceptionType == 1,
		})
	}

	for _, calendar := range calendars {
		calendar.Normalise()
		calendar.Hash = calendar.GenerateContentHash()
	}

	return calendars
}

func (s *Schedule) buildShapes() map[string][][2]float64 {
	pointsByShape := map[string][]*Shape{}
	for index, point := range s.Shapes {
		pointsByShape[point.ID] = append(pointsByShape[point.ID], &s.Shapes[index])
	}

	shapes := map[string][][2]float64{}
	for id, points := range pointsByShape {
		sort.Slice(points, func(a, b int) bool {
			return points[a].PointSequence < points[b].PointSequence
		})

		var lineString [][2]float64
		for _, point := range points {
			lineString = append(lineString, [2]float64{point.PointLongitude, point.PointLatitude})
		}
		shapes[id] = lineString
	}

	return shapes
}

// expandFrequencies clones a frequency based trip for every departure in
// its headway windows, offsetting each stop time from the base departure.
func expandFrequencies(base *timetable.TripCandidate, frequencies []*Frequency) []*timetable.TripCandidate {
	var expanded []*timetable.TripCandidate

	for _, frequency := range frequencies {
		start, startErr := parseTimestamp(frequency.StartTime)
		end, endErr := parseTimestamp(frequency.EndTime)
		if startErr != nil || endErr != nil || frequency.HeadwaySeconds <= 0 {
			log.Error().Str("trip", frequency.TripID).Msg("Failed to parse frequency")
			continue
		}

		headway := time.Duration(frequency.HeadwaySeconds) * time.Second

		for departure := start; departure <= end; departure += headway {
			offset := departure - base.Start
			if offset == 0 {
				continue
			}

			clone := *base
			clone.Start = base.Start + offset
			clone.End = base.End + offset
			clone.StopTimes = make([]timetable.StopTime, len(base.StopTimes))
			for index, stopTime := range base.StopTimes {
				stopTime.Arrival += offset
				stopTime.Departure += offset
				clone.StopTimes[index] = stopTime
			}

			expanded = append(expanded, &clone)
		}
	}

	return expanded
}

func timingStatus(timepoint string) string {
	switch timepoint {
	case "1":
		return timetable.TimingStatusPrincipal
	case "0":
		return timetable.TimingStatusOther
	}
	return ""
}

func parseGTFSDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(gtfsDateFormat, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// parseTimestamp handles the over 24 hour clock times feeds use for trips
// running past midnight.
func parseTimestamp(timestamp string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(timestamp), ":")
	if len(parts) != 3 && len(parts) != 2 {
		return 0, &time.ParseError{Layout: "HH:MM:SS", Value: timestamp}
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}

	var seconds int
	if len(parts) == 3 {
		seconds, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, err
		}
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}
