package transxchange

import (
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/busatlas/busatlas/pkg/transxchange"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
)

const DepartureTimeFormat = "15:04:05"

// BODSServiceCodeRegex matches service codes issued under the national
// registration scheme, which are unique across every source.
var BODSServiceCodeRegex = regexp.MustCompile(`^P[BCDFGHKM]\d+:\d+.*$`)

var timingStatusMapping = map[string]string{
	"principalTimingPoint": timetable.TimingStatusPrincipal,
	"PTP":                  timetable.TimingStatusPrincipal,
	"otherPoint":           timetable.TimingStatusOther,
	"OTH":                  timetable.TimingStatusOther,
	"timeInfoPoint":        timetable.TimingStatusTimeInfo,
	"TIP":                  timetable.TimingStatusTimeInfo,
}

// TransXChange converts TransXChange documents into service candidates.
type TransXChange struct {
	// IncludedServiceDescriptions overrides descriptions by service code,
	// from a bundled manifest like the national coach dataset's
	// IncludedServices.csv.
	IncludedServiceDescriptions map[string]string

	candidates []*timetable.ServiceCandidate
}

func (t *TransXChange) Candidates() []*timetable.ServiceCandidate {
	return t.candidates
}

func (t *TransXChange) ParseFile(reader io.Reader, filename string) error {
	doc, err := transxchange.ParseXMLFile(reader)
	if err != nil {
		return err
	}

	t.convertDocument(doc, filename)
	return nil
}

func (t *TransXChange) convertDocument(doc *transxchange.TransXChange, filename string) {
	filename = strings.TrimSuffix(path.Base(filename), ".xml")
	today := time.Now().UTC().Truncate(24 * time.Hour)

	expandFrequentJourneys(doc)

	journeysByCode := map[string]*transxchange.VehicleJourney{}
	for _, journey := range doc.VehicleJourneys {
		if journey.VehicleJourneyCode != "" {
			journeysByCode[journey.VehicleJourneyCode] = journey
		}
	}

	for _, service := range doc.Services {
		startDate := parseDocumentDate(service.StartDate)
		endDate := parseDocumentDate(service.EndDate)

		if !endDate.IsZero() && endDate.Before(today) {
			log.Debug().
				Str("servicecode", service.ServiceCode).
				Str("end", service.EndDate).
				Msg("Skipping expired service")
			continue
		}

		serviceCode := strings.TrimSpace(service.ServiceCode)
		if serviceCode == "" || !BODSServiceCodeRegex.MatchString(serviceCode) {
			if filenameCode := ServiceCodeFromFilename(filename); filenameCode != "" {
				serviceCode = filenameCode
			}
		}

		operators := operatorCandidates(doc, service)

		for _, line := range service.Lines {
			candidate := t.convertServiceLine(doc, service, &line, journeysByCode, filename, serviceCode, startDate, endDate)
			candidate.Operators = operators
			t.candidates = append(t.candidates, candidate)
		}
	}
}

func operatorCandidates(doc *transxchange.TransXChange, service *transxchange.Service) []timetable.OperatorCandidate {
	operators := doc.Operators
	if registered := doc.FindOperator(service.RegisteredOperatorRef); registered != nil {
		operators = []*transxchange.Operator{registered}
	}

	var candidates []timetable.OperatorCandidate
	for _, operator := range operators {
		candidates = append(candidates, timetable.OperatorCandidate{
			NOC:           operator.NationalOperatorCode,
			LicenceNumber: operator.LicenceNumber,
			Name:          operator.Name(),
			Code:          operator.OperatorCode,
		})
	}
	return candidates
}

func (t *TransXChange) convertServiceLine(
	doc *transxchange.TransXChange,
	service *transxchange.Service,
	line *transxchange.Line,
	journeysByCode map[string]*transxchange.VehicleJourney,
	filename string,
	serviceCode string,
	startDate time.Time,
	endDate time.Time,
) *timetable.ServiceCandidate {
	outboundDescription := NormaliseDescription(line.OutboundDescription)
	if outboundDescription == "" {
		outboundDescription = NormaliseDescription(
			JoinDescription(line.OutboundOrigin, line.OutboundVias, line.OutboundDestination))
	}
	inboundDescription := NormaliseDescription(line.InboundDescription)
	if inboundDescription == "" {
		inboundDescription = NormaliseDescription(
			JoinDescription(line.InboundOrigin, line.InboundVias, line.InboundDestination))
	}

	description := NormaliseDescription(service.Description)
	if description == "" {
		description = outboundDescription
	}
	if description == "" {
		description = NormaliseDescription(
			JoinDescription(service.Origin, service.Vias, service.Destination))
	}
	if override := t.IncludedServiceDescriptions[service.ServiceCode]; override != "" {
		description = override
	}

	candidate := &timetable.ServiceCandidate{
		LineName:            line.LineName,
		LineBrand:           line.MarketingName,
		Description:         description,
		OutboundDescription: outboundDescription,
		InboundDescription:  inboundDescription,
		ServiceCode:         serviceCode,
		Mode:                service.Mode,
		PublicUse:           service.PublicUse != "false" && service.PublicUse != "0",
	}
	if BODSServiceCodeRegex.MatchString(serviceCode) {
		candidate.UniqueCode = serviceCode
	}

	routeCode := filename
	if len(doc.Services) > 1 {
		routeCode = routeCode + "#" + service.ServiceCode
	}
	if len(service.Lines) > 1 {
		routeCode = routeCode + "#" + line.ID
	}

	route := &timetable.RouteCandidate{
		Code:        routeCode,
		LineName:    line.LineName,
		Description: description,
		Origin:      service.Origin,
		Destination: service.Destination,
		Via:         strings.Join(service.Vias, ", "),
		ServiceCode: serviceCode,
		StartDate:   startDate,
		EndDate:     endDate,
		Shapes:      serviceShapes(doc, service),
	}
	candidate.Routes = []*timetable.RouteCandidate{route}

	for _, journey := range doc.VehicleJourneys {
		if journey.ServiceRef != service.ServiceCode {
			continue
		}
		if journey.LineRef != "" && journey.LineRef != line.ID {
			continue
		}

		trip := convertJourney(doc, service, journey, journeysByCode, startDate, endDate)
		if trip != nil {
			route.Trips = append(route.Trips, trip)
		}
	}

	return candidate
}

// serviceShapes collects the route link tracks referenced by the service's
// journey patterns, one line string per route section.
func serviceShapes(doc *transxchange.TransXChange, service *transxchange.Service) [][][2]float64 {
	routesByID := map[string]*transxchange.Route{}
	for _, route := range doc.Routes {
		routesByID[route.ID] = route
	}
	routeSectionsByID := map[string]*transxchange.RouteSection{}
	for _, routeSection := range doc.RouteSections {
		routeSectionsByID[routeSection.ID] = routeSection
	}

	var shapes [][][2]float64
	sectionsSeen := map[string]bool{}

	for _, journeyPattern := range service.JourneyPatterns {
		route := routesByID[journeyPattern.RouteRef]
		if route == nil {
			continue
		}

		for _, sectionRef := range route.RouteSectionRefs {
			if sectionsSeen[sectionRef] {
				continue
			}
			sectionsSeen[sectionRef] = true

			routeSection := routeSectionsByID[sectionRef]
			if routeSection == nil {
				continue
			}

			var lineString [][2]float64
			for _, routeLink := range routeSection.RouteLinks {
				for _, location := range routeLink.Track {
					if lon, lat, ok := location.LonLat(); ok {
						lineString = append(lineString, [2]float64{lon, lat})
					}
				}
			}
			if len(lineString) > 1 {
				shapes = append(shapes, lineString)
			}
		}
	}

	return shapes
}

// expandFrequentJourneys duplicates each frequency based journey for every
// departure up to its end time.
func expandFrequentJourneys(doc *transxchange.TransXChange) {
	var expanded []*transxchange.VehicleJourney

	for _, journey := range doc.VehicleJourneys {
		if journey.Frequency == nil || journey.Frequency.Interval.ScheduledFrequency == "" {
			continue
		}

		departureTime, departureErr := time.Parse(DepartureTimeFormat, journey.DepartureTime)
		endTime, endErr := time.Parse(DepartureTimeFormat, journey.Frequency.EndTime)
		interval, intervalErr := iso8601.ParseISO8601(journey.Frequency.Interval.ScheduledFrequency)
		if departureErr != nil || endErr != nil || intervalErr != nil {
			log.Error().
				Str("journey", journey.VehicleJourneyCode).
				Msg("Failed to parse journey frequency")
			continue
		}

		for newDepartureTime := interval.Shift(departureTime); newDepartureTime.Sub(endTime) <= 0; newDepartureTime = interval.Shift(newDepartureTime) {
			var copiedJourney transxchange.VehicleJourney
			err := copier.CopyWithOption(&copiedJourney, *journey, copier.Option{IgnoreEmpty: true, DeepCopy: true})
			if err != nil {
				log.Error().Err(err).Str("journey", journey.VehicleJourneyCode).Msg("Failed to copy frequent journey")
				continue
			}

			copiedJourney.DepartureTime = newDepartureTime.Format(DepartureTimeFormat)
			copiedJourney.Frequency = nil

			expanded = append(expanded, &copiedJourney)
		}
	}

	doc.VehicleJourneys = append(doc.VehicleJourneys, expanded...)
}

func convertJourney(
	doc *transxchange.TransXChange,
	service *transxchange.Service,
	journey *transxchange.VehicleJourney,
	journeysByCode map[string]*transxchange.VehicleJourney,
	serviceStart time.Time,
	serviceEnd time.Time,
) *timetable.TripCandidate {
	patternRef := journey.JourneyPatternRef
	direction := journey.Direction
	if patternRef == "" && journey.VehicleJourneyRef != "" {
		if referenced := journeysByCode[journey.VehicleJourneyRef]; referenced != nil {
			patternRef = referenced.JourneyPatternRef
			if direction == "" {
				direction = referenced.Direction
			}
		}
	}

	journeyPattern := service.FindJourneyPattern(patternRef)
	if journeyPattern == nil {
		log.Error().
			Str("journey", journey.VehicleJourneyCode).
			Str("journeypattern", patternRef).
			Msg("Unknown journey pattern")
		return nil
	}
	if direction == "" {
		direction = journeyPattern.Direction
	}

	profile := journey.OperatingProfile
	if profile.IsEmpty() {
		profile = journeyPattern.OperatingProfile
	}
	if profile.IsEmpty() {
		profile = service.OperatingProfile
	}

	parsedProfile, err := profile.Parse()
	if err != nil {
		log.Error().Err(err).Str("journey", journey.VehicleJourneyCode).Msg("Failed to parse operating profile")
		return nil
	}

	departureTime, err := time.Parse(DepartureTimeFormat, journey.DepartureTime)
	if err != nil {
		log.Error().Err(err).Str("journey", journey.VehicleJourneyCode).Msg("Failed to parse departure time")
		return nil
	}

	trip := &timetable.TripCandidate{
		Inbound:           strings.EqualFold(direction, "inbound"),
		JourneyPattern:    journeyPattern.ID,
		TicketMachineCode: journey.Operational.TicketMachine.JourneyCode,
		BlockCode:         journey.Operational.Block.BlockNumber,
		VehicleTypeCode:   journey.Operational.VehicleType.VehicleTypeCode,
		GarageCode:        journey.GarageRef,
		OperatorNOC:       operatorNOCForJourney(doc, service, journey, journeyPattern),
		Calendar:          buildCalendar(parsedProfile, serviceStart, serviceEnd, doc),
	}

	if sequence, err := strconv.Atoi(journey.SequenceNumber); err == nil {
		trip.Sequence = sequence
	}

	headsign := journeyPattern.DestinationDisplay
	if journey.DestinationDisplay != "" {
		headsign = journey.DestinationDisplay
	}
	trip.Headsign = headsign

	for _, note := range journey.Notes {
		if strings.TrimSpace(note.NoteText) != "" {
			trip.Notes = append(trip.Notes, timetable.Note{
				Code: note.NoteCode,
				Text: strings.TrimSpace(note.NoteText),
			})
		}
	}

	trip.StopTimes = buildStopTimes(doc, journeyPattern, journey, departureTime)
	if len(trip.StopTimes) == 0 {
		log.Error().Str("journey", journey.VehicleJourneyCode).Msg("Journey has no stop times")
		return nil
	}
	backfillTimingStatus(trip.StopTimes)

	trip.Start = trip.StopTimes[0].Departure
	trip.End = trip.StopTimes[len(trip.StopTimes)-1].Arrival

	if trip.DestinationRef == "" {
		trip.DestinationRef = trip.StopTimes[len(trip.StopTimes)-1].StopRef
	}

	return trip
}

func operatorNOCForJourney(doc *transxchange.TransXChange, service *transxchange.Service, journey *transxchange.VehicleJourney, journeyPattern *transxchange.JourneyPattern) string {
	ref := journey.OperatorRef
	if ref == "" {
		ref = journeyPattern.OperatorRef
	}
	if ref == "" {
		ref = service.RegisteredOperatorRef
	}

	if operator := doc.FindOperator(ref); operator != nil {
		return operator.NationalOperatorCode
	}
	return ""
}

func buildStopTimes(doc *transxchange.TransXChange, journeyPattern *transxchange.JourneyPattern, journey *transxchange.VehicleJourney, departureTime time.Time) []timetable.StopTime {
	sectionsByID := map[string]*transxchange.JourneyPatternSection{}
	for _, section := range doc.JourneyPatternSections {
		sectionsByID[section.ID] = section
	}

	referenceMidnight := time.Date(
		departureTime.Year(), departureTime.Month(), departureTime.Day(), 0, 0, 0, 0, departureTime.Location())
	timeCursor := departureTime

	var stopTimes []timetable.StopTime
	sequence := 0

	appendStop := func(stopRef string, arrival time.Time, departure time.Time, timingStatus string, activity string) {
		stopTime := timetable.StopTime{
			StopRef:      stopRef,
			Arrival:      arrival.Sub(referenceMidnight),
			Departure:    departure.Sub(referenceMidnight),
			Sequence:     sequence,
			TimingStatus: normaliseTimingStatus(timingStatus),
			PickUp:       true,
			SetDown:      true,
		}

		switch activity {
		case "pickUp":
			stopTime.SetDown = false
		case "setDown":
			stopTime.PickUp = false
		case "pass":
			stopTime.PickUp = false
			stopTime.SetDown = false
		}

		stopTimes = append(stopTimes, stopTime)
		sequence++
	}

	for _, sectionRef := range journeyPattern.JourneyPatternSectionRefs {
		section := sectionsByID[sectionRef]
		if section == nil {
			log.Error().
				Str("journey", journey.VehicleJourneyCode).
				Str("section", sectionRef).
				Msg("Unknown journey pattern section")
			return nil
		}

		for _, timingLink := range section.JourneyPatternTimingLinks {
			vehicleTimingLink := journey.GetVehicleJourneyTimingLinkByJourneyPatternTimingLinkRef(timingLink.ID)

			// wait at the origin of the link
			waitTime := timingLink.From.WaitTime
			if vehicleTimingLink != nil && vehicleTimingLink.From.WaitTime != "" {
				waitTime = vehicleTimingLink.From.WaitTime
			}
			originArrival := timeCursor
			if waitTime != "" {
				if wait, err := iso8601.ParseISO8601(waitTime); err == nil {
					timeCursor = wait.Shift(timeCursor)
				}
			}
			originDeparture := timeCursor

			if len(stopTimes) == 0 {
				activity := timingLink.From.Activity
				if vehicleTimingLink != nil && vehicleTimingLink.From.Activity != "" {
					activity = vehicleTimingLink.From.Activity
				}
				appendStop(timingLink.From.StopPointRef, originArrival, originDeparture, timingLink.From.TimingStatus, activity)
			} else {
				// the link origin is the previous link's destination; fold
				// any wait time into its departure
				stopTimes[len(stopTimes)-1].Departure = originDeparture.Sub(referenceMidnight)
			}

			runTime := timingLink.RunTime
			if vehicleTimingLink != nil && vehicleTimingLink.RunTime != "" {
				runTime = vehicleTimingLink.RunTime
			}
			if runTime != "" {
				if travelTime, err := iso8601.ParseISO8601(runTime); err == nil {
					timeCursor = travelTime.Shift(timeCursor)
				}
			}

			activity := timingLink.To.Activity
			if vehicleTimingLink != nil && vehicleTimingLink.To.Activity != "" {
				activity = vehicleTimingLink.To.Activity
			}
			appendStop(timingLink.To.StopPointRef, timeCursor, timeCursor, timingLink.To.TimingStatus, activity)
		}
	}

	return stopTimes
}

// normaliseTimingStatus maps the long and short forms onto the short codes.
// Blank stays blank so mixed journeys can be backfilled afterwards.
func normaliseTimingStatus(timingStatus string) string {
	if timingStatus == "" {
		return ""
	}
	if mapped, known := timingStatusMapping[timingStatus]; known {
		return mapped
	}
	return timetable.TimingStatusOther
}

// backfillTimingStatus marks blank timing statuses as OTH when the journey
// also has populated ones. A journey that is blank throughout stays blank.
func backfillTimingStatus(stopTimes []timetable.StopTime) {
	blank := false
	populated := false
	for _, stopTime := range stopTimes {
		if stopTime.TimingStatus == "" {
			blank = true
		} else {
			populated = true
		}
	}
	if !blank || !populated {
		return
	}

	for index := range stopTimes {
		if stopTimes[index].TimingStatus == "" {
			stopTimes[index].TimingStatus = timetable.TimingStatusOther
		}
	}
}
