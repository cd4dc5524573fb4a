// Package carbon estimates the emissions a user avoided by sharing rides.
package carbon

import (
	"math"
	"time"
)

// GramsPerKm is the CO2 emitted by an average passenger car.
const GramsPerKm = 120.0

const (
	Week  = 7 * 24 * time.Hour
	Month = 30 * 24 * time.Hour
)

// Savings holds avoided emissions in grams.
type Savings struct {
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}

// Trip is one ride the user took part in, as driver or passenger.
type Trip struct {
	DepartureAt time.Time
	DistanceKm  float64
	Occupants   int
}

// TripSavings is the share of a car trip each occupant avoided: with n
// people in one car, n-1 cars stayed off the road, spread over n people.
func TripSavings(t Trip) float64 {
	if t.Occupants < 2 || t.DistanceKm <= 0 {
		return 0
	}
	n := float64(t.Occupants)
	return t.DistanceKm * GramsPerKm * (n - 1) / n
}

// Compute sums savings over trips that departed in the last week and month
// relative to now. Future departures are ignored.
func Compute(now time.Time, trips []Trip) Savings {
	var s Savings
	for _, t := range trips {
		if t.DepartureAt.After(now) {
			continue
		}
		age := now.Sub(t.DepartureAt)
		g := TripSavings(t)
		if age < Month {
			s.Monthly += g
		}
		if age < Week {
			s.Weekly += g
		}
	}
	s.Weekly = math.Round(s.Weekly)
	s.Monthly = math.Round(s.Monthly)
	return s
}
