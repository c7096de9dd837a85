package zones

import "math"

const earthRadiusMeters = 6_371_000

// DefaultRadiusMeters is the geofence radius used for the predefined stops.
const DefaultRadiusMeters = 75.0

// Coord is a WGS84 position in decimal degrees.
type Coord struct {
	Lat float64
	Lon float64
}

// Zone is a circular geofence.
type Zone struct {
	Name         string
	Center       Coord
	RadiusMeters float64
}

var (
	Zoo      = Zone{Name: "zoo", Center: Coord{Lat: 59.42643, Lon: 24.65805}, RadiusMeters: DefaultRadiusMeters}
	Toompark = Zone{Name: "toompark", Center: Coord{Lat: 59.43682, Lon: 24.73333}, RadiusMeters: DefaultRadiusMeters}
)

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Distance returns the distance in meters from the zone center to p.
func (z Zone) Distance(p Coord) float64 {
	return Haversine(p.Lat, p.Lon, z.Center.Lat, z.Center.Lon)
}

// Contains reports whether p lies within the zone. The boundary is inclusive.
func (z Zone) Contains(p Coord) bool {
	return z.Distance(p) <= z.RadiusMeters
}

// WithRadius returns a copy of z with a different radius.
func (z Zone) WithRadius(meters float64) Zone {
	z.RadiusMeters = meters
	return z
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
