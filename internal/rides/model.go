package rides

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("ride not found")
	ErrForbidden     = errors.New("only the ride creator can do this")
	ErrRideFull      = errors.New("ride is full")
	ErrAlreadyJoined = errors.New("already joined this ride")
	ErrOwnRide       = errors.New("cannot join your own ride")
	ErrInvalid       = errors.New("invalid ride")
)

// Ride is a shared trip published by a driver and joined by passengers.
type Ride struct {
	ID          string    `json:"id"`
	DriverID    string    `json:"driverId"`
	DriverName  string    `json:"driverName"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartureAt time.Time `json:"departureAt"`
	Seats       int       `json:"seats"`
	Price       float64   `json:"price"`
	DistanceKm  float64   `json:"distanceKm"`
	Passengers  []string  `json:"passengers"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SeatsLeft is the number of seats not yet taken.
func (r Ride) SeatsLeft() int {
	if left := r.Seats - len(r.Passengers); left > 0 {
		return left
	}
	return 0
}

// CreateRequest is the body for POST /api/rides.
type CreateRequest struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartureAt time.Time `json:"departureAt"`
	Seats       int       `json:"seats"`
	Price       float64   `json:"price"`
	DistanceKm  float64   `json:"distanceKm"`
}

// Validate checks the request, wrapping ErrInvalid with the first problem found.
func (r CreateRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Origin) == "":
		return invalid("origin is required")
	case strings.TrimSpace(r.Destination) == "":
		return invalid("destination is required")
	case r.DepartureAt.IsZero():
		return invalid("departureAt is required")
	case r.Seats < 1 || r.Seats > 8:
		return invalid("seats must be between 1 and 8")
	case r.Price < 0:
		return invalid("price cannot be negative")
	case r.DistanceKm < 0:
		return invalid("distanceKm cannot be negative")
	}
	return nil
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrInvalid }

func invalid(msg string) error { return &validationError{msg: msg} }
