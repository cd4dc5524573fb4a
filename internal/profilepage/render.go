package profilepage

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"carpool-service/internal/carbon"
	"carpool-service/internal/rides"
	"carpool-service/internal/users"
)

// RideCard draws one ride.
type RideCard interface {
	RenderRide(w io.Writer, r rides.Ride) error
}

// DefaultCard prints route, departure, seats and price on two lines.
type DefaultCard struct{}

func (DefaultCard) RenderRide(w io.Writer, r rides.Ride) error {
	_, err := fmt.Fprintf(w, "  %s → %s  %s\n    %d seat(s) left · %s · %s km\n",
		r.Origin, r.Destination, r.DepartureAt.Format("Mon 02 Jan 15:04"),
		r.SeatsLeft(),
		decimal.NewFromFloat(r.Price).StringFixed(2),
		decimal.NewFromFloat(r.DistanceKm).StringFixed(1),
	)
	return err
}

// SetRideCard replaces the card used for both ride lists.
func (p *Page) SetRideCard(c RideCard) { p.card = c }

// KgCO2 formats grams as kilograms with two decimals.
func KgCO2(grams float64) string {
	return decimal.NewFromFloat(grams).Div(decimal.NewFromInt(1000)).StringFixed(2)
}

// Render writes the page as text for the current state.
func (p *Page) Render(w io.Writer) error {
	rw := &renderWriter{w: w}
	switch p.State() {
	case StateLoading:
		rw.line("Loading...")
	case StateError:
		rw.line("Error")
		rw.line("%s", p.fetchErr)
	case StateSignedOut:
		rw.line("Please log in to view your profile")
	default:
		p.renderProfile(rw)
	}
	return rw.err
}

func (p *Page) renderProfile(rw *renderWriter) {
	u := p.data
	if u == nil {
		rw.line("Loading...")
		return
	}

	rw.line("[%s] %s", avatar(u), u.Name)
	rw.line("★ %s - %d ratings", decimal.NewFromFloat(u.Stars).String(), len(u.Ratings))
	if u.TrustScore != nil {
		rw.line("Trust Score: %s", decimal.NewFromFloat(*u.TrustScore).StringFixed(0))
	}
	if p.uploading {
		rw.line("Uploading...")
	}
	rw.line("")

	if p.editMode {
		rw.line("Name: %s", p.form.Name)
		rw.line("Bio: %s", p.form.Bio)
		if p.submitting {
			rw.line("Saving...")
		}
	} else {
		renderAbout(rw, u)
	}

	rw.line("")
	rw.line("Carbon Footprint Savings")
	renderSavings(rw, p.savings, p.carbonLoading)

	rw.line("")
	if p.deleteMode {
		rw.line("Published Rides (delete mode)")
	} else {
		rw.line("Published Rides")
	}
	card := p.rideCard()
	for _, r := range u.RidesCreated {
		rw.card(card, r)
		if p.deleteMode {
			rw.line("    [delete %s]", r.ID)
		}
	}

	rw.line("")
	rw.line("Recently joined rides")
	if len(u.RidesJoined) == 0 {
		rw.line("No rides")
	}
	for _, r := range u.RidesJoined {
		rw.card(card, r)
	}
}

func renderAbout(rw *renderWriter, u *users.User) {
	rw.line("About")
	rw.line("Bio: %s", u.Profile.Bio)
	if u.Age != nil && *u.Age > 0 {
		rw.line("%d y/o", *u.Age)
	}
	rw.line("%d Rides published", len(u.RidesCreated))
	if !u.CreatedAt.IsZero() {
		rw.line("Member since %d", u.CreatedAt.Year())
	}

	rw.line("")
	rw.line("Preferences")
	for _, v := range []string{u.Profile.Preferences.Music, u.Profile.Preferences.Smoking, u.Profile.Preferences.PetFriendly} {
		if v != "" {
			rw.line("%s", v)
		}
	}
}

func renderSavings(rw *renderWriter, s *carbon.Savings, loading bool) {
	switch {
	case loading:
		rw.line("...")
	case s != nil:
		rw.line("Weekly: %s kg CO₂", KgCO2(s.Weekly))
		rw.line("Monthly: %s kg CO₂", KgCO2(s.Monthly))
	default:
		rw.line("Savings data not available.")
	}
}

func (p *Page) rideCard() RideCard {
	if p.card == nil {
		return DefaultCard{}
	}
	return p.card
}

// avatar is the picture URL, or the first letter of the name.
func avatar(u *users.User) string {
	if u.ProfilePicture != "" {
		return u.ProfilePicture
	}
	r, _ := utf8.DecodeRuneInString(u.Name)
	if r == utf8.RuneError {
		return "?"
	}
	return strings.ToUpper(string(r))
}

// renderWriter keeps the first write error so rendering code stays linear.
type renderWriter struct {
	w   io.Writer
	err error
}

func (rw *renderWriter) line(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format+"\n", args...)
}

func (rw *renderWriter) card(c RideCard, r rides.Ride) {
	if rw.err != nil {
		return
	}
	rw.err = c.RenderRide(rw.w, r)
}
