package profilepage

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/users"
)

// Form is the editable part of the profile.
type Form struct {
	Name string
	Bio  string
}

func formFrom(u *users.User) Form {
	if u == nil {
		return Form{}
	}
	return Form{Name: u.Name, Bio: u.Profile.Bio}
}

// Form returns the current field values.
func (p *Page) Form() Form { return p.form }

// StartEdit enters edit mode with the fields seeded from the fetched profile.
func (p *Page) StartEdit() {
	if p.data == nil {
		return
	}
	p.form = formFrom(p.data)
	p.editMode = true
}

// EditName sets the name field.
func (p *Page) EditName(v string) { p.form.Name = v }

// EditBio sets the bio field.
func (p *Page) EditBio(v string) { p.form.Bio = v }

// Cancel restores the fetched values and leaves edit mode. It never touches
// the network.
func (p *Page) Cancel() {
	p.form = formFrom(p.data)
	p.editMode = false
}

// updateRequest merges the form into the existing profile so preferences
// survive a bio edit.
func (p *Page) updateRequest() users.UpdateRequest {
	name := p.form.Name
	bio := p.form.Bio
	patch := &users.ProfilePatch{Bio: &bio}
	if p.data != nil {
		prefs := p.data.Profile.Preferences
		patch.Preferences = &users.PreferencesPatch{
			Music:       &prefs.Music,
			Smoking:     &prefs.Smoking,
			PetFriendly: &prefs.PetFriendly,
		}
	}
	return users.UpdateRequest{Name: &name, Profile: patch}
}

// Submit saves name and bio. On success the shared auth context receives the
// updated user, the profile is refetched and edit mode ends.
func (p *Page) Submit(ctx context.Context) error {
	sess := p.auth.Current()
	if sess == nil {
		p.toast.Error("Please log in to update your profile")
		return ErrNotAuthenticated
	}

	p.submitting = true
	defer func() { p.submitting = false }()

	updated, err := p.api.UpdateProfile(ctx, sess.UserID, p.updateRequest())
	if err != nil {
		logrus.WithError(err).WithField("user_id", sess.UserID).Warn("profile update failed")
		if apiclient.Status(err) == http.StatusUnauthorized {
			p.toast.Error("Please log in to update your profile")
			return err
		}
		p.toast.Error(submitErrorMessage(err))
		return err
	}

	p.toast.Success("Profile updated successfully!")
	p.auth.LoginSuccess(updated)
	p.editMode = false
	_ = p.Refetch(ctx)
	return nil
}

// submitErrorMessage shows the server message for client errors and falls
// back to the error text for transport failures and 5xx answers.
func submitErrorMessage(err error) string {
	var se *apiclient.StatusError
	if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
		return messageOr(err, "Failed to update profile")
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Failed to update profile"
}
