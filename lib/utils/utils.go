package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern     = regexp.MustCompile(`^(?i)[a-z0-9._%+\-]+@(?:[a-z0-9\-]+\.)+[a-z]{2,}$`)
	letterPattern    = regexp.MustCompile(`[a-zA-Z]`)
	numberPattern    = regexp.MustCompile(`[0-9]`)
	timeOfDayLayouts = []string{"15:04", "15:04:05"}
)

// ValidateEmail takes an email string as input and returns a boolean indicating whether the input is a valid email address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword takes a password string as input and returns a boolean indicating whether the input is a valid password.
// A valid password has at least 8 characters and contains both letters and numbers.
func ValidatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	return letterPattern.MatchString(password) && numberPattern.MatchString(password)
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeTimeOfDay parses a reminder time given as HH:MM or HH:MM:SS and
// returns it in its canonical HH:MM form.
func NormalizeTimeOfDay(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeOfDayLayouts {
		if t, err := parseClock(layout, value); err == nil {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", value)
}
