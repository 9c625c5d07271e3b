package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Letters, digits and @/./+/-/_ only
	usernameRegex = regexp.MustCompile(`^[\w.@+\-]+$`)

	// Digits with optional leading + and common separators
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-.]{5,20}$`)
)

const (
	MaxUsernameLength = 150
	MaxNameLength     = 150
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var commonPasswords = map[string]bool{
	"password":   true,
	"password1":  true,
	"12345678":   true,
	"123456789":  true,
	"qwertyuiop": true,
	"iloveyou":   true,
	"11111111":   true,
	"abcdefgh":   true,
}

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

func IsValidUsername(username string) bool {
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return false
	}
	return usernameRegex.MatchString(username)
}

func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// IsValidPassword applies the account password rules and returns the first
// violation.
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLength {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLength {
		return false, "Password must be at most 128 characters"
	}
	if commonPasswords[strings.ToLower(password)] {
		return false, "This password is too common"
	}

	numeric := true
	for _, char := range password {
		if !unicode.IsDigit(char) {
			numeric = false
			break
		}
	}
	if numeric {
		return false, "Password cannot be entirely numeric"
	}

	return true, ""
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen runes
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
