package geo

import "math"

const (
	earthRadiusMeters = 6378137

	// Geocoding distances are computed in meters and shown in miles.
	metersToMiles = 0.000621371
)

// DistanceMiles returns the great-circle distance between two coordinate
// pairs, in miles.
func DistanceMiles(a, b Coordinates) float64 {
	return metersToMiles * haversine(a, b)
}

// haversine returns the great-circle distance between two points in meters.
func haversine(a, b Coordinates) float64 {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
