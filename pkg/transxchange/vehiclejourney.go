package transxchange

type VehicleJourney struct {
	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`
	SequenceNumber       string `xml:",attr"`

	PrivateCode        string
	OperatorRef        string
	Direction          string
	GarageRef          string
	VehicleJourneyCode string
	ServiceRef         string
	LineRef            string
	JourneyPatternRef  string
	VehicleJourneyRef  string
	DepartureTime      string

	DestinationDisplay string

	Frequency *Frequency

	Operational VehicleJourneyOperational

	Notes []VehicleJourneyNote `xml:"Note"`

	VehicleJourneyTimingLinks []VehicleJourneyTimingLink `xml:"VehicleJourneyTimingLink"`

	OperatingProfile OperatingProfile
}

func (v *VehicleJourney) GetVehicleJourneyTimingLinkByJourneyPatternTimingLinkRef(ref string) *VehicleJourneyTimingLink {
	for index, vehicleJourneyTimingLink := range v.VehicleJourneyTimingLinks {
		if vehicleJourneyTimingLink.JourneyPatternTimingLinkRef == ref {
			return &v.VehicleJourneyTimingLinks[index]
		}
	}

	return nil
}

type VehicleJourneyTimingLink struct {
	ID string `xml:"id,attr"`

	JourneyPatternTimingLinkRef string
	RunTime                     string

	From VehicleJourneyTimingLinkPoint
	To   VehicleJourneyTimingLinkPoint
}

type VehicleJourneyTimingLinkPoint struct {
	WaitTime                  string
	Activity                  string
	DynamicDestinationDisplay string
}

type VehicleJourneyOperational struct {
	TicketMachine struct {
		JourneyCode        string
		TicketMachineServiceCode string
	}
	Block struct {
		BlockNumber string
		Description string
	}
	VehicleType struct {
		VehicleTypeCode string
		Description     string
	}
}

type VehicleJourneyNote struct {
	NoteCode string
	NoteText string
}

// Frequency marks a frequency based journey. Concrete departures are
// expanded from the first departure up to EndTime at the given interval.
type Frequency struct {
	EndTime  string
	Interval struct {
		ScheduledFrequency string
	}
}
