package transxchange

type Operator struct {
	ID string `xml:"id,attr"`

	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`

	NationalOperatorCode  string
	OperatorCode          string
	OperatorShortName     string
	OperatorNameOnLicence string
	TradingName           string
	LicenceNumber         string

	Garages []Garage `xml:"Garages>Garage"`
}

// Name returns the best display name the document gives for the operator.
func (o *Operator) Name() string {
	if o.TradingName != "" {
		return o.TradingName
	}
	if o.OperatorShortName != "" {
		return o.OperatorShortName
	}
	return o.OperatorNameOnLicence
}

type Garage struct {
	GarageCode string
	GarageName string
	Location   Location
}
