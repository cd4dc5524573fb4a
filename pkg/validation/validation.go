package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxBioLength is the longest bio accepted, in characters.
const MaxBioLength = 256

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && emailRegex.MatchString(email) && len(email) <= 200
}

func ValidateName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= 2 && n <= 200
}

func ValidatePassword(password string) bool {
	return len(password) >= 6 && len(password) <= 100
}

func ValidateBio(bio string) bool {
	return utf8.RuneCountInString(bio) <= MaxBioLength
}

func ValidateAge(age int) bool {
	return age >= 16 && age <= 120
}

// ValidateImageURL accepts absolute http(s) URLs with a host. The empty string
// is accepted and clears the picture.
func ValidateImageURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
