// Package exertion holds heart-rate and metabolic reference formulas used
// to credit steps when the wearer is working hard but barely moving.
package exertion

import (
	"fmt"
	"math"
)

// Zone is a training intensity band.
type Zone int

const (
	ZoneVO2 Zone = iota
	ZoneAnaerobic
	ZoneAerobic
	ZoneFatBurn
	ZoneWarmUp
)

// Coefficient returns the share of heart-rate reserve the zone targets.
func (z Zone) Coefficient() float64 {
	switch z {
	case ZoneVO2:
		return 0.9
	case ZoneAnaerobic:
		return 0.8
	case ZoneAerobic:
		return 0.7
	case ZoneFatBurn:
		return 0.6
	case ZoneWarmUp:
		return 0.5
	default:
		return math.NaN()
	}
}

func (z Zone) String() string {
	switch z {
	case ZoneVO2:
		return "vo2"
	case ZoneAnaerobic:
		return "anaerobic"
	case ZoneAerobic:
		return "aerobic"
	case ZoneFatBurn:
		return "fat_burn"
	case ZoneWarmUp:
		return "warm_up"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// ParseZone accepts the names returned by Zone.String.
func ParseZone(s string) (Zone, error) {
	for z := ZoneVO2; z <= ZoneWarmUp; z++ {
		if z.String() == s {
			return z, nil
		}
	}
	return 0, fmt.Errorf("unknown intensity zone %q", s)
}

// VirtualSteps converts a metabolic equivalent of task sustained by a
// person of weightKg into a step credit.
func VirtualSteps(met, weightKg float64) int {
	if met <= 0 || weightKg <= 0 {
		return 0
	}
	return int(math.Floor(met * weightKg * 3.5 / 3))
}

// MaxHeartRate estimates maximum heart rate in bpm for age in years.
func MaxHeartRate(age float64) float64 {
	return 207 - 0.7*age
}

// TargetHeartRate is the Karvonen target for the zone given age and
// resting heart rate.
func TargetHeartRate(age, restingBPM float64, z Zone) float64 {
	return (MaxHeartRate(age)-restingBPM)*z.Coefficient() + restingBPM
}
