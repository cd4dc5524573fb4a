package profilepage

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"carpool-service/internal/rides"
)

// ErrDeleteModeOff is returned when a delete is attempted outside delete mode.
var ErrDeleteModeOff = errors.New("delete mode is off")

// DeleteMode reports whether created rides offer a delete action.
func (p *Page) DeleteMode() bool { return p.deleteMode }

// ToggleDeleteMode flips delete mode.
func (p *Page) ToggleDeleteMode() { p.deleteMode = !p.deleteMode }

// RidesCreated returns the rides published by the user.
func (p *Page) RidesCreated() []rides.Ride {
	if p.data == nil {
		return nil
	}
	return p.data.RidesCreated
}

// RidesJoined returns the rides the user joined.
func (p *Page) RidesJoined() []rides.Ride {
	if p.data == nil {
		return nil
	}
	return p.data.RidesJoined
}

// DeleteRide deletes one of the user's rides and refetches the profile. On
// failure the list shown stays as it was.
func (p *Page) DeleteRide(ctx context.Context, rideID string) error {
	if !p.deleteMode {
		return ErrDeleteModeOff
	}

	if err := p.api.DeleteRide(ctx, rideID); err != nil {
		logrus.WithError(err).WithField("ride_id", rideID).Warn("ride delete failed")
		p.toast.Error(messageOr(err, "Failed to delete ride"))
		return err
	}

	_ = p.Refetch(ctx)
	p.toast.Success("The ride has been deleted")
	return nil
}
