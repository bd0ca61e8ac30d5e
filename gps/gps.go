// Package gps estimates steps from location fixes when no accelerometer
// window is available for a span.
package gps

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0087714150598

// DefaultMaxWalkingKmh is the speed above which a segment is treated as
// cycling or driving and produces no steps.
const DefaultMaxWalkingKmh = 20.0

// stepLengthRatio converts body height to an average step length.
const stepLengthRatio = 0.41

// Point is one location fix. Alt is meters above the WGS84 ellipsoid and
// may be nil when the device does not report it.
type Point struct {
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Alt  *float64  `json:"alt,omitempty"`
}

// Movement is the straight segment between two consecutive fixes.
type Movement struct {
	From       Point
	To         Point
	DistanceKm float64
	Duration   time.Duration
}

// SpeedKmh returns the average segment speed. A non-positive duration
// yields +Inf so the segment is never counted as walking.
func (m Movement) SpeedKmh() float64 {
	hours := m.Duration.Hours()
	if hours <= 0 {
		return math.Inf(1)
	}
	return m.DistanceKm / hours
}

// DistanceMeters returns the segment length in meters.
func (m Movement) DistanceMeters() float64 {
	return m.DistanceKm * 1000
}

// Haversine returns the great-circle distance in kilometers between two
// coordinates given in degrees.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	const rad = math.Pi / 180
	dLat := rad * (lat2 - lat1)
	dLon := rad * (lon2 - lon1)
	phi1 := rad * lat1
	phi2 := rad * lat2

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + sinLon*sinLon*math.Cos(phi1)*math.Cos(phi2)
	return EarthRadiusKm * (2 * math.Asin(math.Sqrt(h)))
}

// Movements pairs consecutive points. Points must be sorted by time.
// When both ends have an altitude the climb is folded into the distance.
func Movements(points []Point) []Movement {
	if len(points) < 2 {
		return nil
	}
	out := make([]Movement, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		dist := Haversine(from.Lon, from.Lat, to.Lon, to.Lat)
		if from.Alt != nil && to.Alt != nil {
			climbKm := (*to.Alt - *from.Alt) / 1000
			dist = math.Sqrt(dist*dist + climbKm*climbKm)
		}
		out = append(out, Movement{
			From:       from,
			To:         to,
			DistanceKm: dist,
			Duration:   to.Time.Sub(from.Time),
		})
	}
	return out
}

// StepsFromGPS estimates steps walked along points for a person of the
// given height in meters. Segments faster than maxKmh are skipped; a
// non-positive maxKmh selects DefaultMaxWalkingKmh. Each segment
// contributes floor(distance / step length).
func StepsFromGPS(points []Point, heightM, maxKmh float64) int {
	if heightM <= 0 {
		return 0
	}
	if maxKmh <= 0 {
		maxKmh = DefaultMaxWalkingKmh
	}
	stepLength := heightM * stepLengthRatio

	steps := 0
	for _, m := range Movements(points) {
		if m.SpeedKmh() > maxKmh {
			continue
		}
		steps += int(math.Floor(m.DistanceMeters() / stepLength))
	}
	return steps
}
