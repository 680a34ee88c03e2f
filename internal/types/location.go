// README: Location value type embedded by tracking info and route computations.
package types

import (
	"errors"
	"strconv"
)

var ErrInvalidCoordinates = errors.New("lat must be within [-90,90] and lng within [-180,180]")

type Location struct {
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
	Address string  `json:"address,omitempty" bson:"address,omitempty"`
}

func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// LatLngString renders "lat,lng" the way mapping providers expect it.
func (l Location) LatLngString() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}
