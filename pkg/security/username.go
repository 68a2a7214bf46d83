package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxUsernameLength matches the users.username column size.
const MaxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// ValidUsername reports whether name is non-empty, at most
// MaxUsernameLength characters, and made of letters, digits and @.+-_ only.
func ValidUsername(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(name)
}

// NormalizeEmail lower-cases the domain part of an address and trims
// surrounding space. The local part is left untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
