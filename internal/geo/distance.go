package geo

import "math"

const (
	// ArrivalRadiusKm is how close a unit must be to count as arrived.
	ArrivalRadiusKm = 0.1
	// EarthRadiusKm is Earth's mean radius for the Haversine calculation.
	EarthRadiusKm = 6371.0088
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineKm calculates the great-circle distance between two points in kilometres.
func HaversineKm(a, b Point) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// IsWithinRadius reports whether a and b are at most radiusKm apart.
func IsWithinRadius(a, b Point, radiusKm float64) bool {
	return HaversineKm(a, b) <= radiusKm
}

// Interpolate returns the point a fraction t of the way from a to b on a straight line.
// t is clamped to [0, 1].
func Interpolate(a, b Point, t float64) Point {
	t = math.Max(0, math.Min(1, t))
	return Point{Lat: a.Lat + t*(b.Lat-a.Lat), Lon: a.Lon + t*(b.Lon-a.Lon)}
}

// MoveToward advances from toward to by at most stepKm and reports whether to was reached.
// A unit within ArrivalRadiusKm of to snaps onto it.
func MoveToward(from, to Point, stepKm float64) (Point, bool) {
	d := HaversineKm(from, to)
	if d <= stepKm || IsWithinRadius(from, to, ArrivalRadiusKm) {
		return to, true
	}
	return Interpolate(from, to, stepKm/d), false
}
