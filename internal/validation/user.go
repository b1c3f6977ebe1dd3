package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,30}$`)

var reservedUsernames = map[string]struct{}{
	"admin":   {},
	"api":     {},
	"me":      {},
	"support": {},
	"system":  {},
}

// ValidateUsername checks username format and reserved names.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 1-30 characters of letters, numbers, dots, dashes or underscores")
	}
	if _, exists := reservedUsernames[strings.ToLower(username)]; exists {
		return fmt.Errorf("username is reserved")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address (no display name) of at most 254 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return fmt.Errorf("email is invalid")
	}
	return nil
}

// ValidateWebsite accepts an empty value or an absolute http(s) URL.
func ValidateWebsite(website string) error {
	if website == "" {
		return nil
	}
	u, err := url.Parse(website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("website must be an http or https URL")
	}
	return nil
}

// ValidateProfileText bounds free-text profile fields.
func ValidateProfileText(field, value string, max int) error {
	if len([]rune(value)) > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return nil
}
