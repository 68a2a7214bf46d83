package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

const (
	// UnusablePasswordPrefix marks a hash that never verifies.
	UnusablePasswordPrefix = "!"

	argon2Algorithm = "argon2"
	argon2Variant   = "argon2id"
	minPasswordLen  = 8
)

var errMalformedHash = errors.New("malformed password hash")

// Argon2Params are the cost parameters used for new hashes.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHasher encodes passwords as
// argon2$argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<hash>.
// Verification reads the parameters from the encoded value, so hashes stay
// valid after the defaults change.
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher creates a hasher using p for new hashes.
func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: p}
}

// Hash encodes password. An empty password yields an unusable hash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return UnusablePassword()
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("%s$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm, argon2Variant, argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	if !IsUsablePassword(encoded) {
		return false
	}

	p, salt, want, err := decodeArgon2(encoded)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != argon2Algorithm || parts[1] != argon2Variant {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedHash
	}

	return p, salt, key, nil
}

// UnusablePassword returns a random marker that no password verifies against.
func UnusablePassword() (string, error) {
	b := make([]byte, 30)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate unusable password: %w", err)
	}
	return UnusablePasswordPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// IsUsablePassword reports whether encoded can ever verify.
func IsUsablePassword(encoded string) bool {
	return encoded != "" && !strings.HasPrefix(encoded, UnusablePasswordPrefix)
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "qwerty123": {}, "qwertyuiop": {},
	"iloveyou": {}, "letmein1": {}, "welcome1": {}, "sunshine": {},
	"football": {}, "baseball": {}, "superman": {}, "trustno1": {},
	"abc12345": {}, "11111111": {}, "00000000": {}, "newspaper": {},
}

// ValidatePassword applies the password rules and returns the failures as
// user-facing messages. attrs are user attributes (username, email) the
// password must not resemble.
func ValidatePassword(password string, attrs ...string) []string {
	var problems []string

	if len([]rune(password)) < minPasswordLen {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLen))
	}

	lower := strings.ToLower(password)
	for _, attr := range attrs {
		attr = strings.ToLower(attr)
		if at := strings.Index(attr, "@"); at > 0 {
			attr = attr[:at]
		}
		if len(attr) >= 3 && (lower == attr || strings.Contains(lower, attr)) {
			problems = append(problems, "The password is too similar to your personal information.")
			break
		}
	}

	if _, ok := commonPasswords[lower]; ok {
		problems = append(problems, "This password is too common.")
	}

	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		problems = append(problems, "This password is entirely numeric.")
	}

	return problems
}
