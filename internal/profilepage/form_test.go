package profilepage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/users"
)

func strPtr(s string) *string { return &s }

func TestSubmitSendsMergedPatch(t *testing.T) {
	api := new(mockAPI)
	p, rec := loadedPage(t, api)
	auth := p.auth.(*MemoryAuth)

	p.StartEdit()
	assert.Equal(t, StateEdit, p.State())
	p.EditName("Ada Lovelace")
	p.EditBio("Night owl")

	want := users.UpdateRequest{
		Name: strPtr("Ada Lovelace"),
		Profile: &users.ProfilePatch{
			Bio: strPtr("Night owl"),
			Preferences: &users.PreferencesPatch{
				Music:       strPtr("Jazz"),
				Smoking:     strPtr("No smoking"),
				PetFriendly: strPtr("Pets welcome"),
			},
		},
	}
	updated := sampleUser()
	updated.Name = "Ada Lovelace"
	updated.Profile.Bio = "Night owl"
	api.On("UpdateProfile", mock.Anything, "u1", want).Return(updated, nil).Once()
	api.On("GetUser", mock.Anything, "u1").Return(updated, nil).Once()

	require.NoError(t, p.Submit(context.Background()))

	assert.Equal(t, StateView, p.State())
	assert.Equal(t, toast{"success", "Profile updated successfully!"}, rec.toasts[0])
	assert.Equal(t, "Ada Lovelace", auth.Current().User.Name)
	assert.Equal(t, "tok", auth.Current().Token)
	assert.Equal(t, Form{Name: "Ada Lovelace", Bio: "Night owl"}, p.Form())
	api.AssertExpectations(t)
}

func TestSubmitErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"unauthorized":   {&apiclient.StatusError{Status: http.StatusUnauthorized, Message: "unauthorized"}, "Please log in to update your profile"},
		"server message": {&apiclient.StatusError{Status: http.StatusBadRequest, Message: "bio must be 256 characters or fewer"}, "bio must be 256 characters or fewer"},
		"bare status":    {&apiclient.StatusError{Status: http.StatusInternalServerError}, "request failed with status code 500"},
		"bare 4xx":       {&apiclient.StatusError{Status: http.StatusForbidden}, "Failed to update profile"},
		"transport":      {errors.New("dial tcp: connection refused"), "dial tcp: connection refused"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api := new(mockAPI)
			p, rec := loadedPage(t, api)
			p.StartEdit()
			p.EditBio("changed")
			api.On("UpdateProfile", mock.Anything, "u1", mock.Anything).Return(nil, tc.err).Once()

			require.Error(t, p.Submit(context.Background()))

			assert.Equal(t, toast{"error", tc.want}, rec.last())
			assert.Equal(t, StateEdit, p.State())
			assert.Equal(t, "changed", p.Form().Bio)
			assert.Equal(t, "Early commuter", p.Data().Profile.Bio)
		})
	}
}

func TestSubmitForbiddenWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(sampleUser())
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)
	rec := &recorder{}
	p := New(client, nil, signedIn(), rec)
	require.NoError(t, p.Refetch(context.Background()))
	p.StartEdit()

	require.Error(t, p.Submit(context.Background()))

	assert.Equal(t, toast{"error", "Failed to update profile"}, rec.last())
	assert.Equal(t, StateEdit, p.State())
}

func TestSubmitWithoutUserSendsNothing(t *testing.T) {
	api := new(mockAPI)
	rec := &recorder{}
	p := New(api, nil, NewMemoryAuth(nil), rec)

	assert.ErrorIs(t, p.Submit(context.Background()), ErrNotAuthenticated)
	assert.Equal(t, []string{"Please log in to update your profile"}, rec.errors())
	api.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelRestoresOriginalValues(t *testing.T) {
	api := new(mockAPI)
	p, rec := loadedPage(t, api)

	p.StartEdit()
	p.EditName("Someone Else")
	p.EditBio("Different bio")
	p.Cancel()

	assert.Equal(t, StateView, p.State())
	assert.Equal(t, Form{Name: "ada", Bio: "Early commuter"}, p.Form())
	assert.Empty(t, rec.toasts)
	api.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNumberOfCalls(t, "GetUser", 1)
}
