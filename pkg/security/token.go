package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or no
// longer match the account state.
var ErrInvalidToken = errors.New("invalid or expired token")

// ResetClaims are the claims carried by a password reset token.
type ResetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// ResetTokenGenerator issues single-purpose tokens for password reset links.
// A token is bound to the user id and a fingerprint of the account state
// (password hash and last login), so it stops working once the password is
// changed or the user logs in again.
type ResetTokenGenerator struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// NewResetTokenGenerator creates a generator signing with secret.
func NewResetTokenGenerator(secret string, timeout time.Duration) *ResetTokenGenerator {
	return &ResetTokenGenerator{
		secret:  []byte(secret),
		timeout: timeout,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (g *ResetTokenGenerator) WithClock(now func() time.Time) *ResetTokenGenerator {
	g.now = now
	return g
}

// Make returns a token for userID in the given account state.
func (g *ResetTokenGenerator) Make(userID int64, state string) (string, error) {
	now := g.now()
	claims := ResetClaims{
		Fingerprint: fingerprint(state),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{"password_reset"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.timeout)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return token, nil
}

// Check verifies token for userID in the given account state.
func (g *ResetTokenGenerator) Check(token string, userID int64, state string) error {
	var claims ResetClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience("password_reset"),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject != strconv.FormatInt(userID, 10) {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(claims.Fingerprint), []byte(fingerprint(state))) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func fingerprint(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

// EncodeUID encodes a user id for use in URLs.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, fmt.Errorf("invalid uid: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid uid %q", uid)
	}
	return id, nil
}

// SessionAuthHash derives the value stored in a session from the user's
// password hash. Changing the password changes the hash.
func SessionAuthHash(secret, passwordHash string) string {
	return fingerprint(secret + ":" + passwordHash)
}
