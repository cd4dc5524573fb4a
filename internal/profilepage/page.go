// Package profilepage drives the profile page of the carpool client: it
// fetches the signed-in user's profile and carbon savings, edits name and
// bio, uploads a profile picture and manages the user's rides. Every
// user-visible outcome is reported through a Toaster.
package profilepage

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/carbon"
	"carpool-service/internal/users"
	"carpool-service/pkg/imagehost"
)

// ErrNotAuthenticated means there is no signed-in user; the page sends the
// user back home.
var ErrNotAuthenticated = errors.New("not authenticated")

// State is what the page currently shows.
type State int

const (
	StateLoading State = iota
	StateError
	StateView
	StateEdit
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateView:
		return "view"
	case StateEdit:
		return "edit"
	case StateSignedOut:
		return "signed-out"
	}
	return "unknown"
}

// API is the backend the page talks to.
type API interface {
	GetUser(ctx context.Context, id string) (*users.User, error)
	GetCarbonSavings(ctx context.Context, id string) (*carbon.Savings, error)
	UpdateProfile(ctx context.Context, id string, req users.UpdateRequest) (*users.User, error)
	DeleteRide(ctx context.Context, id string) error
}

// ImageHost stores uploaded pictures and returns their public URL.
type ImageHost interface {
	Configured() bool
	Upload(ctx context.Context, filename string, r io.Reader) (*imagehost.UploadResult, error)
}

// Page holds the page's local state. It is not safe for concurrent use;
// callers drive it from a single event loop.
type Page struct {
	api    API
	images ImageHost
	auth   AuthStore
	toast  Toaster

	loading  bool
	fetchErr string
	data     *users.User

	savings       *carbon.Savings
	carbonLoading bool

	editMode   bool
	deleteMode bool
	uploading  bool
	submitting bool
	form       Form
	card       RideCard
}

// New creates a page. Nothing is fetched until Load.
func New(api API, images ImageHost, auth AuthStore, toast Toaster) *Page {
	return &Page{api: api, images: images, auth: auth, toast: toast, loading: true, carbonLoading: true}
}

// State reports what the page would render now.
func (p *Page) State() State {
	switch {
	case p.loading:
		return StateLoading
	case p.fetchErr != "":
		return StateError
	case p.auth.Current() == nil:
		return StateSignedOut
	case p.editMode:
		return StateEdit
	}
	return StateView
}

// Data returns the last fetched profile, or nil.
func (p *Page) Data() *users.User { return p.data }

// CarbonSavings returns the last fetched savings, or nil.
func (p *Page) CarbonSavings() *carbon.Savings { return p.savings }

// FetchError returns the message shown in the error state.
func (p *Page) FetchError() string { return p.fetchErr }

// Uploading reports whether a picture upload is in flight.
func (p *Page) Uploading() bool { return p.uploading }

// Submitting reports whether a profile save is in flight.
func (p *Page) Submitting() bool { return p.submitting }

// Load fetches the profile and the carbon savings of the signed-in user.
func (p *Page) Load(ctx context.Context) error {
	sess := p.auth.Current()
	if sess == nil {
		p.loading = false
		return ErrNotAuthenticated
	}

	err := p.Refetch(ctx)
	p.loadCarbon(ctx, sess.UserID)
	return err
}

// Refetch reloads the profile document. A failed reload keeps the data
// already shown; a failed first load puts the page in the error state.
func (p *Page) Refetch(ctx context.Context) error {
	sess := p.auth.Current()
	if sess == nil {
		p.loading = false
		return ErrNotAuthenticated
	}

	first := p.data == nil
	if first {
		p.loading = true
	}
	u, err := p.api.GetUser(ctx, sess.UserID)
	p.loading = false
	if err != nil {
		msg := fetchErrorMessage(err)
		logrus.WithError(err).WithField("user_id", sess.UserID).Warn("profile fetch failed")
		p.toast.Error(msg)
		if first {
			p.fetchErr = msg
		}
		return err
	}

	p.data = u
	p.fetchErr = ""
	if !p.editMode {
		p.form = formFrom(u)
	}
	return nil
}

func (p *Page) loadCarbon(ctx context.Context, userID string) {
	p.carbonLoading = true
	defer func() { p.carbonLoading = false }()

	s, err := p.api.GetCarbonSavings(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("carbon savings fetch failed")
		if apiclient.Status(err) == http.StatusUnauthorized {
			p.toast.Error("Please log in to view carbon savings")
			return
		}
		p.toast.Error(messageOr(err, "Failed to fetch carbon savings"))
		return
	}
	p.savings = s
}

func fetchErrorMessage(err error) string {
	switch {
	case apiclient.Status(err) == http.StatusUnauthorized:
		return "Please log in to view your profile"
	case apiclient.Status(err) == http.StatusNotFound:
		return "Profile not found"
	case apiclient.IsOffline(err):
		return "No internet connection"
	}
	return messageOr(err, "Failed to load profile")
}

// messageOr returns the server-provided message of err, or fallback.
func messageOr(err error, fallback string) string {
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
