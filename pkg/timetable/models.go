package timetable

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DataSource is one registered feed of timetable data. The identifier is the
// dataset identifier from the registry.
type DataSource struct {
	Identifier string `bson:"_id"`

	URL      string    `bson:"url,omitempty"`
	Datetime time.Time `bson:"datetime,omitempty"`

	// SHA1 of the last archive imported, used to skip unchanged downloads.
	SHA1 string `bson:"sha1,omitempty"`
}

// Operator is a transport operator, keyed by its National Operator Code.
type Operator struct {
	NOC string `bson:"_id"`

	Name          string `bson:"name"`
	LicenceNumber string `bson:"licencenumber,omitempty"`

	// Parent groups operators belonging to the same commercial family.
	Parent string `bson:"parent,omitempty"`
}

// Service is the stable, user-facing line identity that survives
// reimports. Routes from successive archives attach to it.
type Service struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	Slug        string `bson:"slug"`
	ServiceCode string `bson:"servicecode,omitempty"`

	LineName  string `bson:"linename"`
	LineBrand string `bson:"linebrand,omitempty"`

	Description         string `bson:"description,omitempty"`
	InboundDescription  string `bson:"inbounddescription,omitempty"`
	OutboundDescription string `bson:"outbounddescription,omitempty"`

	Mode      string `bson:"mode,omitempty"`
	Current   bool   `bson:"current"`
	PublicUse bool   `bson:"publicuse"`

	Source       string    `bson:"source"`
	OperatorRefs []string  `bson:"operatorrefs,omitempty"`
	Date         time.Time `bson:"date,omitempty"`

	SearchVector string      `bson:"searchvector,omitempty"`
	Geometry     *Geometry   `bson:"geometry,omitempty"`
	StopUsages   []StopUsage `bson:"stopusages,omitempty"`
}

// StopUsage is one stop in a service's representative stop list for a
// direction, ordered for display.
type StopUsage struct {
	StopRef      string `bson:"stopref"`
	Direction    string `bson:"direction"`
	Order        int    `bson:"order"`
	TimingStatus string `bson:"timingstatus,omitempty"`
}

// Geometry is a GeoJSON MultiLineString of the service's route shapes.
type Geometry struct {
	Type        string         `bson:"type"`
	Coordinates [][][2]float64 `bson:"coordinates"`
}

// Route is one version of a service's timetable from one source archive.
// Code is unique within a source and carries the archive filename, so a
// reimport of the same file replaces the same route.
type Route struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	Source string `bson:"source"`
	Code   string `bson:"code"`

	ServiceRef primitive.ObjectID `bson:"serviceref"`

	LineName    string `bson:"linename"`
	LineBrand   string `bson:"linebrand,omitempty"`
	Description string `bson:"description,omitempty"`

	Origin      string `bson:"origin,omitempty"`
	Destination string `bson:"destination,omitempty"`
	Via         string `bson:"via,omitempty"`

	ServiceCode string `bson:"servicecode,omitempty"`

	StartDate time.Time `bson:"startdate,omitempty"`
	EndDate   time.Time `bson:"enddate,omitempty"`
}

// Trip is a single scheduled journey. Stop times are embedded and are
// rebuilt wholesale whenever the trip changes.
type Trip struct {
	ID primitive.ObjectID `bson:"_id,omitempty"`

	RouteRef    primitive.ObjectID `bson:"routeref"`
	CalendarRef string             `bson:"calendarref,omitempty"`

	Inbound bool `bson:"inbound"`

	JourneyPattern    string `bson:"journeypattern,omitempty"`
	TicketMachineCode string `bson:"ticketmachinecode,omitempty"`
	BlockRef          string `bson:"blockref,omitempty"`
	VehicleTypeRef    string `bson:"vehicletyperef,omitempty"`
	GarageRef         string `bson:"garageref,omitempty"`
	OperatorRef       string `bson:"operatorref,omitempty"`

	Headsign       string `bson:"headsign,omitempty"`
	DestinationRef string `bson:"destinationref,omitempty"`

	// Start and End are the first departure and last arrival as durations
	// since midnight. Values past 24h are journeys running over midnight.
	Start time.Duration `bson:"start"`
	End   time.Duration `bson:"end"`

	// Sequence orders trips within a route when the source provides an
	// explicit order. Zero means unset and ordering falls back to times.
	Sequence int `bson:"sequence,omitempty"`

	NoteRefs []string `bson:"noterefs,omitempty"`

	StopTimes []StopTime `bson:"stoptimes,omitempty"`
}

// StopTime is one stop call within a trip.
type StopTime struct {
	StopRef string `bson:"stopref"`

	Arrival   time.Duration `bson:"arrival"`
	Departure time.Duration `bson:"departure"`

	Sequence int `bson:"sequence"`

	// TimingStatus is PTP for principal timing points, TIP for time info
	// points, OTH otherwise.
	TimingStatus string `bson:"timingstatus,omitempty"`

	PickUp  bool `bson:"pickup"`
	SetDown bool `bson:"setdown"`
}

const (
	TimingStatusPrincipal = "PTP"
	TimingStatusTimeInfo  = "TIP"
	TimingStatusOther     = "OTH"
)

// Note is a free-text annotation attached to trips, shared by content.
type Note struct {
	ID   string `bson:"_id"`
	Code string `bson:"code,omitempty"`
	Text string `bson:"text"`
}

// Garage is a depot a trip works from.
type Garage struct {
	Code string `bson:"_id"`
	Name string `bson:"name,omitempty"`
}

// Block is a vehicle working that links consecutive trips.
type Block struct {
	Code        string `bson:"_id"`
	Description string `bson:"description,omitempty"`
}

// VehicleType describes the kind of vehicle a trip is scheduled for.
type VehicleType struct {
	Code        string `bson:"_id"`
	Description string `bson:"description,omitempty"`
}
