package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"carpool-service/internal/carbon"
	"carpool-service/pkg/jwt"
)

type mockUserService struct{ mock.Mock }

func (m *mockUserService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*AuthResponse)
	return r, args.Error(1)
}

func (m *mockUserService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*AuthResponse)
	return r, args.Error(1)
}

func (m *mockUserService) GetByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockUserService) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	args := m.Called(ctx, id, req)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

type mockSavings struct{ mock.Mock }

func (m *mockSavings) Savings(ctx context.Context, userID string) (*carbon.Savings, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*carbon.Savings)
	return s, args.Error(1)
}

func serve(h *Handler, req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req = req.WithContext(jwt.WithClaims(req.Context(), &jwt.Claims{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func TestUpdateProfileSendsPatch(t *testing.T) {
	svc := new(mockUserService)
	want := UpdateRequest{
		Name:    strPtr("Ada"),
		Profile: &ProfilePatch{Bio: strPtr("Loves road trips")},
	}
	svc.On("Update", mock.Anything, "u1", want).Return(&User{ID: "u1", Name: "Ada"}, nil)

	body := `{"name":"Ada","profile":{"bio":"Loves road trips"}}`
	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodPatch, "/u1", strings.NewReader(body)), "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	var got User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Ada", got.Name)
	svc.AssertExpectations(t)
}

func TestUpdateProfileOtherUserForbidden(t *testing.T) {
	svc := new(mockUserService)

	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodPatch, "/u2", strings.NewReader(`{}`)), "u1")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfileUnauthenticated(t *testing.T) {
	rec := serve(NewHandler(new(mockUserService), nil), httptest.NewRequest(http.MethodPatch, "/u1", strings.NewReader(`{}`)), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileValidationError(t *testing.T) {
	svc := new(mockUserService)
	svc.On("Update", mock.Anything, "u1", mock.Anything).Return(nil, invalid("bio must be 256 characters or fewer"))

	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodPatch, "/u1", strings.NewReader(`{"profile":{"bio":"x"}}`)), "u1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"bio must be 256 characters or fewer"}`, rec.Body.String())
}

func TestGetProfileHidesEmailOfOthers(t *testing.T) {
	svc := new(mockUserService)
	svc.On("GetByID", mock.Anything, "u2").Return(&User{ID: "u2", Email: "b@example.com"}, nil)
	svc.On("GetByID", mock.Anything, "u1").Return(&User{ID: "u1", Email: "a@example.com"}, nil)
	h := NewHandler(svc, nil)

	var other, self User
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/u2", nil), "u1")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&other))
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/u1", nil), "u1")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&self))

	assert.Empty(t, other.Email)
	assert.Equal(t, "a@example.com", self.Email)
}

func TestGetProfileNotFound(t *testing.T) {
	svc := new(mockUserService)
	svc.On("GetByID", mock.Anything, "nope").Return(nil, ErrNotFound)

	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodGet, "/nope", nil), "u1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCarbonSavings(t *testing.T) {
	savings := new(mockSavings)
	id := "7f9c24e5-2b2b-4f3a-9d6b-3c1f3f1a2b4c"
	savings.On("Savings", mock.Anything, id).Return(&carbon.Savings{Weekly: 1500, Monthly: 4200}, nil)

	rec := serve(NewHandler(new(mockUserService), savings), httptest.NewRequest(http.MethodGet, "/"+id+"/carbon-savings", nil), id)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"weekly":1500,"monthly":4200}`, rec.Body.String())
}

func TestCarbonSavingsMalformedID(t *testing.T) {
	savings := new(mockSavings)

	rec := serve(NewHandler(new(mockUserService), savings), httptest.NewRequest(http.MethodGet, "/not-a-uuid/carbon-savings", nil), "u1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	savings.AssertNotCalled(t, "Savings", mock.Anything, mock.Anything)
}

func TestLoginSetsCookie(t *testing.T) {
	svc := new(mockUserService)
	svc.On("Login", mock.Anything, LoginRequest{Email: "a@example.com", Password: "secret"}).
		Return(&AuthResponse{Token: "tok", User: &User{ID: "u1"}}, nil)

	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"a@example.com","password":"secret"}`)), "")

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, jwt.CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
}

func TestLoginBadCredentials(t *testing.T) {
	svc := new(mockUserService)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, ErrInvalidCredentials)

	rec := serve(NewHandler(svc, nil), httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{}`)), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}
