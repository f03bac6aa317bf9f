package transxchange

import (
	"encoding/xml"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// ParseXMLFile streams a TransXChange document, decoding each top level
// section as it is encountered. The charset reader copes with the
// non UTF-8 encodings some publishers still emit.
func ParseXMLFile(reader io.Reader) (*TransXChange, error) {
	transXChange := TransXChange{}

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := d.Token()
		if tok == nil || err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		switch ty := tok.(type) {
		case xml.StartElement:
			switch ty.Name.Local {
			case "TransXChange":
				for _, attr := range ty.Attr {
					switch attr.Name.Local {
					case "CreationDateTime":
						transXChange.CreationDateTime = attr.Value
					case "ModificationDateTime":
						transXChange.ModificationDateTime = attr.Value
					case "SchemaVersion":
						transXChange.SchemaVersion = attr.Value
					}
				}

				if err := transXChange.Validate(); err != nil {
					return nil, err
				}
			case "AnnotatedStopPointRef":
				var stopPoint AnnotatedStopPointRef
				if err := d.DecodeElement(&stopPoint, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode AnnotatedStopPointRef")
				} else {
					transXChange.StopPoints = append(transXChange.StopPoints, &stopPoint)
				}
			case "Operator", "LicensedOperator":
				var operator Operator
				if err := d.DecodeElement(&operator, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode Operator")
				} else {
					transXChange.Operators = append(transXChange.Operators, &operator)
				}
			case "Route":
				var route Route
				if err := d.DecodeElement(&route, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode Route")
				} else {
					transXChange.Routes = append(transXChange.Routes, &route)
				}
			case "RouteSection":
				var routeSection RouteSection
				if err := d.DecodeElement(&routeSection, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode RouteSection")
				} else {
					transXChange.RouteSections = append(transXChange.RouteSections, &routeSection)
				}
			case "Service":
				var service Service
				if err := d.DecodeElement(&service, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode Service")
				} else {
					transXChange.Services = append(transXChange.Services, &service)
				}
			case "JourneyPatternSection":
				var jps JourneyPatternSection
				if err := d.DecodeElement(&jps, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode JourneyPatternSection")
				} else {
					transXChange.JourneyPatternSections = append(transXChange.JourneyPatternSections, &jps)
				}
			case "VehicleJourney":
				var vehicleJourney VehicleJourney
				if err := d.DecodeElement(&vehicleJourney, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode VehicleJourney")
				} else {
					transXChange.VehicleJourneys = append(transXChange.VehicleJourneys, &vehicleJourney)
				}
			case "ServicedOrganisation":
				var org ServicedOrganisation
				if err := d.DecodeElement(&org, &ty); err != nil {
					log.Error().Err(err).Msg("Failed to decode ServicedOrganisation")
				} else {
					transXChange.ServicedOrganisations = append(transXChange.ServicedOrganisations, &org)
				}
			}
		default:
		}
	}

	log.Debug().
		Int("operators", len(transXChange.Operators)).
		Int("services", len(transXChange.Services)).
		Int("vehiclejourneys", len(transXChange.VehicleJourneys)).
		Msg("Parsed document")

	return &transXChange, nil
}
