package places

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b using the
// haversine formula.
func DistanceKm(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	latDiff := (b.Lat - a.Lat) * math.Pi / 180
	lonDiff := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(latDiff/2)*math.Sin(latDiff/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(lonDiff/2)*math.Sin(lonDiff/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}
