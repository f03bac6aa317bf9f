package transxchange

import "errors"

type RouteSection struct {
	ID string `xml:"id,attr"`

	RouteLinks []RouteLink `xml:"RouteLink"`
}

func (r *RouteSection) GetRouteLink(ref string) (*RouteLink, error) {
	for index, routeLink := range r.RouteLinks {
		if routeLink.ID == ref {
			return &r.RouteLinks[index], nil
		}
	}

	return nil, errors.New("could not find route link")
}

type RouteLink struct {
	ID                   string `xml:"id,attr"`
	CreationDateTime     string `xml:",attr"`
	ModificationDateTime string `xml:",attr"`

	FromStop string `xml:"From>StopPointRef"`
	ToStop   string `xml:"To>StopPointRef"`
	Distance int

	Track []Location `xml:"Track>Mapping>Location"`
}
