package transxchange

import (
	"fmt"

	"github.com/paulcager/osgridref"
)

type Location struct {
	LocationInner

	Translation LocationInner
}

type LocationInner struct {
	Longitude float64
	Latitude  float64

	GridType string
	Easting  string
	Northing string
}

// LonLat returns the location as longitude and latitude, converting from
// OS grid eastings and northings when that is all the document carries.
func (l *Location) LonLat() (float64, float64, bool) {
	inner := l.LocationInner
	if inner.Longitude == 0 && inner.Latitude == 0 && l.Translation.Longitude != 0 {
		inner = l.Translation
	}

	if inner.Longitude != 0 || inner.Latitude != 0 {
		return inner.Longitude, inner.Latitude, true
	}

	if inner.Easting == "" || inner.Northing == "" {
		inner = l.Translation
	}
	if inner.Easting == "" || inner.Northing == "" {
		return 0, 0, false
	}

	gridRef, err := osgridref.ParseOsGridRef(fmt.Sprintf("%s,%s", inner.Easting, inner.Northing))
	if err != nil {
		return 0, 0, false
	}

	lat, lon := gridRef.ToLatLon()
	return lon, lat, true
}
