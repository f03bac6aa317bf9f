package transxchange

type Service struct {
	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`

	ServiceCode              string
	TicketMachineServiceCode string
	RegisteredOperatorRef    string
	PublicUse                string
	Mode                     string

	StartDate string `xml:"OperatingPeriod>StartDate"`
	EndDate   string `xml:"OperatingPeriod>EndDate"`

	OperatingProfile OperatingProfile

	Lines []Line `xml:"Lines>Line"`

	Description string

	Origin      string `xml:"StandardService>Origin"`
	Destination string `xml:"StandardService>Destination"`
	Vias        []string `xml:"StandardService>Vias>Via"`

	JourneyPatterns []*JourneyPattern `xml:"StandardService>JourneyPattern"`
}

func (s *Service) FindJourneyPattern(ref string) *JourneyPattern {
	for _, journeyPattern := range s.JourneyPatterns {
		if journeyPattern.ID == ref {
			return journeyPattern
		}
	}
	return nil
}

func (s *Service) FindLine(ref string) *Line {
	for _, line := range s.Lines {
		if line.ID == ref {
			return &line
		}
	}
	return nil
}

type Line struct {
	ID       string `xml:"id,attr"`
	LineName string

	MarketingName string

	OutboundOrigin      string `xml:"OutboundDescription>Origin"`
	OutboundDestination string `xml:"OutboundDescription>Destination"`
	OutboundDescription string `xml:"OutboundDescription>Description"`
	OutboundVias        []string `xml:"OutboundDescription>Vias>Via"`

	InboundOrigin      string `xml:"InboundDescription>Origin"`
	InboundDestination string `xml:"InboundDescription>Destination"`
	InboundDescription string `xml:"InboundDescription>Description"`
	InboundVias        []string `xml:"InboundDescription>Vias>Via"`
}

type JourneyPattern struct {
	ID                   string `xml:"id,attr"`
	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`

	DestinationDisplay        string
	OperatorRef               string
	Direction                 string
	RouteRef                  string
	JourneyPatternSectionRefs []string

	OperatingProfile OperatingProfile
}
