package timetable

import "time"

// ServiceCandidate is a service as described by one source document,
// before it has been matched against the existing records. Candidates
// carry no persistence identity.
type ServiceCandidate struct {
	LineName  string
	LineBrand string

	Description         string
	InboundDescription  string
	OutboundDescription string

	// ServiceCode is the source scheme's own code for the service.
	// UniqueCode is set when the code is from a national registration
	// scheme and can be trusted for exact matching.
	ServiceCode string
	UniqueCode  string

	Mode      string
	PublicUse bool

	Operators []OperatorCandidate

	Routes []*RouteCandidate
}

// OperatorCandidate carries every identifier a source gave for an operator.
// Resolution tries them strongest first.
type OperatorCandidate struct {
	NOC           string
	LicenceNumber string
	Name          string

	// Code is a regional scheme identifier, resolved through the static
	// alias tables for the source.
	Code string
}

// RouteCandidate is one timetable version of a candidate service.
type RouteCandidate struct {
	Code string

	LineName    string
	Description string

	Origin      string
	Destination string
	Via         string

	ServiceCode string

	StartDate time.Time
	EndDate   time.Time

	// Shapes are line strings making up the route geometry, as
	// longitude latitude pairs.
	Shapes [][][2]float64

	Trips []*TripCandidate
}

// TripCandidate is one scheduled journey of a route candidate.
type TripCandidate struct {
	Inbound bool

	JourneyPattern    string
	TicketMachineCode string
	BlockCode         string
	VehicleTypeCode   string
	GarageCode        string
	OperatorNOC       string

	Headsign       string
	DestinationRef string

	Calendar *Calendar

	Start time.Duration
	End   time.Duration

	Sequence int

	Notes []Note

	StopTimes []StopTime
}

// Stops returns the distinct stop refs called at, in calling order.
func (t *TripCandidate) Stops() []string {
	var stops []string
	seen := map[string]bool{}

	for _, stopTime := range t.StopTimes {
		if !seen[stopTime.StopRef] {
			stops = append(stops, stopTime.StopRef)
			seen[stopTime.StopRef] = true
		}
	}

	return stops
}
