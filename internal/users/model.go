package users

import (
	"errors"
	"time"

	"carpool-service/internal/rides"
	"carpool-service/pkg/validation"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrForbidden          = errors.New("cannot modify another user's profile")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalid            = errors.New("invalid profile update")
)

// Preferences are the ride habits a user advertises.
type Preferences struct {
	Music       string `json:"music"`
	Smoking     string `json:"smoking"`
	PetFriendly string `json:"petFriendly"`
}

// Profile is the free-form part of a user document.
type Profile struct {
	Bio         string      `json:"bio"`
	Preferences Preferences `json:"preferences"`
}

// Rating is one review left by another user.
type Rating struct {
	ID        string    `json:"id"`
	RaterID   string    `json:"raterId"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the profile document served at GET /api/users/{id}.
type User struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email,omitempty"`
	Age            *int         `json:"age,omitempty"`
	ProfilePicture string       `json:"profilePicture"`
	Stars          float64      `json:"stars"`
	Ratings        []Rating     `json:"ratings"`
	TrustScore     *float64     `json:"trustScore,omitempty"`
	Profile        Profile      `json:"profile"`
	RidesCreated   []rides.Ride `json:"ridesCreated"`
	RidesJoined    []rides.Ride `json:"ridesJoined"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// RegisterRequest is the body for POST /api/users/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned on register / login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// UpdateRequest is the body for PATCH /api/users/{id}. Absent fields are left unchanged.
type UpdateRequest struct {
	Name           *string       `json:"name,omitempty"`
	Age            *int          `json:"age,omitempty"`
	ProfilePicture *string       `json:"profilePicture,omitempty"`
	Profile        *ProfilePatch `json:"profile,omitempty"`
}

// ProfilePatch is the nested profile part of UpdateRequest.
type ProfilePatch struct {
	Bio         *string           `json:"bio,omitempty"`
	Preferences *PreferencesPatch `json:"preferences,omitempty"`
}

// PreferencesPatch is the nested preferences part of ProfilePatch.
type PreferencesPatch struct {
	Music       *string `json:"music,omitempty"`
	Smoking     *string `json:"smoking,omitempty"`
	PetFriendly *string `json:"petFriendly,omitempty"`
}

// Validate checks every present field.
func (r UpdateRequest) Validate() error {
	if r.Name != nil && !validation.ValidateName(*r.Name) {
		return invalid("name must be between 2 and 200 characters")
	}
	if r.Age != nil && !validation.ValidateAge(*r.Age) {
		return invalid("age must be between 16 and 120")
	}
	if r.ProfilePicture != nil && !validation.ValidateImageURL(*r.ProfilePicture) {
		return invalid("profilePicture must be an absolute http(s) URL")
	}
	if r.Profile != nil && r.Profile.Bio != nil && !validation.ValidateBio(*r.Profile.Bio) {
		return invalid("bio must be 256 characters or fewer")
	}
	return nil
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrInvalid }

func invalid(msg string) error { return &validationError{msg: msg} }
