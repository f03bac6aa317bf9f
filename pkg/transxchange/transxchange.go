package transxchange

import (
	"errors"

	"github.com/busatlas/busatlas/pkg/util"
)

// TransXChange is one parsed TransXChange document. Reference maps between
// the sections are built by callers as needed.
type TransXChange struct {
	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`

	Operators              []*Operator
	Routes                 []*Route
	RouteSections          []*RouteSection
	Services               []*Service
	JourneyPatternSections []*JourneyPatternSection
	VehicleJourneys        []*VehicleJourney
	ServicedOrganisations  []*ServicedOrganisation
	StopPoints             []*AnnotatedStopPointRef

	SchemaVersion string `xml:",attr"`
}

var supportedSchemaVersions = []string{"2.1", "2.4"}

func (doc *TransXChange) Validate() error {
	if doc.CreationDateTime == "" {
		return errors.New("CreationDateTime must be set")
	}
	if doc.ModificationDateTime == "" {
		return errors.New("ModificationDateTime must be set")
	}
	if !util.ContainsString(supportedSchemaVersions, doc.SchemaVersion) {
		return errors.New("SchemaVersion must be 2.1 or 2.4")
	}

	return nil
}

func (doc *TransXChange) FindOperator(ref string) *Operator {
	for _, operator := range doc.Operators {
		if operator.ID == ref {
			return operator
		}
	}
	return nil
}

func (doc *TransXChange) FindServicedOrganisation(code string) *ServicedOrganisation {
	for _, org := range doc.ServicedOrganisations {
		if org.OrganisationCode == code {
			return org
		}
	}
	return nil
}

// AnnotatedStopPointRef is a stop referenced by the document, with the
// display name the operator supplied.
type AnnotatedStopPointRef struct {
	StopPointRef string
	CommonName   string
}
