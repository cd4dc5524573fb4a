package profilepage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carpool-service/internal/apiclient"
	"carpool-service/internal/carbon"
	"carpool-service/internal/rides"
	"carpool-service/internal/users"
	"carpool-service/pkg/imagehost"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetUser(ctx context.Context, id string) (*users.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*users.User)
	return u, args.Error(1)
}

func (m *mockAPI) GetCarbonSavings(ctx context.Context, id string) (*carbon.Savings, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*carbon.Savings)
	return s, args.Error(1)
}

func (m *mockAPI) UpdateProfile(ctx context.Context, id string, req users.UpdateRequest) (*users.User, error) {
	args := m.Called(ctx, id, req)
	u, _ := args.Get(0).(*users.User)
	return u, args.Error(1)
}

func (m *mockAPI) DeleteRide(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockImages struct{ mock.Mock }

func (m *mockImages) Configured() bool { return m.Called().Bool(0) }

func (m *mockImages) Upload(ctx context.Context, filename string, r io.Reader) (*imagehost.UploadResult, error) {
	args := m.Called(ctx, filename, r)
	res, _ := args.Get(0).(*imagehost.UploadResult)
	return res, args.Error(1)
}

type toast struct {
	kind string
	msg  string
}

type recorder struct{ toasts []toast }

func (r *recorder) Success(msg string) { r.toasts = append(r.toasts, toast{"success", msg}) }
func (r *recorder) Info(msg string)    { r.toasts = append(r.toasts, toast{"info", msg}) }
func (r *recorder) Error(msg string)   { r.toasts = append(r.toasts, toast{"error", msg}) }

func (r *recorder) errors() []string {
	var out []string
	for _, t := range r.toasts {
		if t.kind == "error" {
			out = append(out, t.msg)
		}
	}
	return out
}

func (r *recorder) last() toast {
	if len(r.toasts) == 0 {
		return toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

func signedIn() *MemoryAuth {
	return NewMemoryAuth(&Session{UserID: "u1", Token: "tok"})
}

func sampleUser() *users.User {
	age := 29
	trust := 72.6
	return &users.User{
		ID:         "u1",
		Name:       "ada",
		Age:        &age,
		Stars:      4.5,
		Ratings:    []users.Rating{{ID: "r1", Score: 5}, {ID: "r2", Score: 4}},
		TrustScore: &trust,
		Profile: users.Profile{
			Bio:         "Early commuter",
			Preferences: users.Preferences{Music: "Jazz", Smoking: "No smoking", PetFriendly: "Pets welcome"},
		},
		RidesCreated: []rides.Ride{{ID: "ride-1", Origin: "Pune", Destination: "Mumbai", Seats: 3, Price: 450}},
		RidesJoined:  []rides.Ride{},
		CreatedAt:    time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC),
	}
}

func loadedPage(t *testing.T, api *mockAPI) (*Page, *recorder) {
	t.Helper()
	api.On("GetUser", mock.Anything, "u1").Return(sampleUser(), nil).Once()
	api.On("GetCarbonSavings", mock.Anything, "u1").Return(&carbon.Savings{Weekly: 1500, Monthly: 6120}, nil).Once()
	rec := &recorder{}
	p := New(api, nil, signedIn(), rec)
	require.NoError(t, p.Load(context.Background()))
	return p, rec
}

func TestLoadWithoutSession(t *testing.T) {
	api := new(mockAPI)
	p := New(api, nil, NewMemoryAuth(nil), &recorder{})

	err := p.Load(context.Background())

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, StateSignedOut, p.State())
	api.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestLoadShowsProfileAndSavings(t *testing.T) {
	api := new(mockAPI)
	p, rec := loadedPage(t, api)

	assert.Equal(t, StateView, p.State())
	assert.Equal(t, "ada", p.Data().Name)
	assert.Equal(t, &carbon.Savings{Weekly: 1500, Monthly: 6120}, p.CarbonSavings())
	assert.Equal(t, Form{Name: "ada", Bio: "Early commuter"}, p.Form())
	assert.Empty(t, rec.toasts)
	api.AssertExpectations(t)
}

func TestLoadUnauthorizedDoesNotCrashRender(t *testing.T) {
	api := new(mockAPI)
	api.On("GetUser", mock.Anything, "u1").Return(nil, &apiclient.StatusError{Status: http.StatusUnauthorized})
	api.On("GetCarbonSavings", mock.Anything, "u1").Return(nil, &apiclient.StatusError{Status: http.StatusUnauthorized})
	rec := &recorder{}
	p := New(api, nil, signedIn(), rec)

	err := p.Load(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateError, p.State())
	assert.Equal(t, []string{"Please log in to view your profile", "Please log in to view carbon savings"}, rec.errors())

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), "Please log in to view your profile")
}

func TestCarbonFailureMessages(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"server message": {&apiclient.StatusError{Status: 500, Message: "carbon service down"}, "carbon service down"},
		"no message":     {&apiclient.StatusError{Status: 500}, "Failed to fetch carbon savings"},
		"transport":      {errors.New("connection reset"), "Failed to fetch carbon savings"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api := new(mockAPI)
			api.On("GetUser", mock.Anything, "u1").Return(sampleUser(), nil)
			api.On("GetCarbonSavings", mock.Anything, "u1").Return(nil, tc.err)
			rec := &recorder{}
			p := New(api, nil, signedIn(), rec)

			require.NoError(t, p.Load(context.Background()))

			assert.Equal(t, StateView, p.State())
			assert.Nil(t, p.CarbonSavings())
			assert.Equal(t, []string{tc.want}, rec.errors())
		})
	}
}

func TestRefetchFailureKeepsData(t *testing.T) {
	api := new(mockAPI)
	p, rec := loadedPage(t, api)
	api.On("GetUser", mock.Anything, "u1").Return(nil, errors.New("boom")).Once()

	require.Error(t, p.Refetch(context.Background()))

	assert.Equal(t, StateView, p.State())
	assert.Equal(t, "ada", p.Data().Name)
	assert.Equal(t, "Failed to load profile", rec.last().msg)
}
