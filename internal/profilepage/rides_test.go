package profilepage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/rides"
)

func TestDeleteRequiresDeleteMode(t *testing.T) {
	api := new(mockAPI)
	p, _ := loadedPage(t, api)

	assert.ErrorIs(t, p.DeleteRide(context.Background(), "ride-1"), ErrDeleteModeOff)
	api.AssertNotCalled(t, "DeleteRide", mock.Anything, mock.Anything)

	p.ToggleDeleteMode()
	assert.True(t, p.DeleteMode())
	p.ToggleDeleteMode()
	assert.False(t, p.DeleteMode())
}

func TestDeleteRemovesRideAfterRefetch(t *testing.T) {
	var mu sync.Mutex
	created := []rides.Ride{
		{ID: "ride-1", Origin: "Pune", Destination: "Mumbai", Seats: 3},
		{ID: "ride-2", Origin: "Pune", Destination: "Nashik", Seats: 2},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/rides/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/rides/")
			kept := created[:0]
			for _, ride := range created {
				if ride.ID != id {
					kept = append(kept, ride)
				}
			}
			created = kept
			w.Write([]byte(`{"message":"ride deleted"}`))
		case r.URL.Path == "/api/users/u1":
			u := sampleUser()
			u.RidesCreated = append([]rides.Ride(nil), created...)
			json.NewEncoder(w).Encode(u)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)
	rec := &recorder{}
	p := New(client, nil, signedIn(), rec)
	require.NoError(t, p.Refetch(context.Background()))
	require.Len(t, p.RidesCreated(), 2)

	p.ToggleDeleteMode()
	require.NoError(t, p.DeleteRide(context.Background(), "ride-1"))

	require.Len(t, p.RidesCreated(), 1)
	assert.Equal(t, "ride-2", p.RidesCreated()[0].ID)
	assert.Equal(t, toast{"success", "The ride has been deleted"}, rec.last())
}

func TestDeleteFailureKeepsRides(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"forbidden": {&apiclient.StatusError{Status: http.StatusForbidden, Message: "only the ride creator can do this"}, "only the ride creator can do this"},
		"bare":      {&apiclient.StatusError{Status: http.StatusInternalServerError}, "Failed to delete ride"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api := new(mockAPI)
			p, rec := loadedPage(t, api)
			api.On("DeleteRide", mock.Anything, "ride-1").Return(tc.err)
			p.ToggleDeleteMode()

			require.Error(t, p.DeleteRide(context.Background(), "ride-1"))

			assert.Len(t, p.RidesCreated(), 1)
			assert.Equal(t, toast{"error", tc.want}, rec.last())
			api.AssertNumberOfCalls(t, "GetUser", 1)
		})
	}
}
