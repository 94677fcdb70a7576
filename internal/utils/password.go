package utils

import (
	"crypto/rand"     // Random bytes for generated passwords
	"encoding/base64" // URL-safe encoding of random passwords
	"errors"          // Sentinel errors

	"golang.org/x/crypto/bcrypt" // Password hashing
)

// MaxPasswordBytes is bcrypt's input limit. Inputs past 72 bytes would be
// silently truncated by the algorithm, so they are rejected here instead.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned for inputs past the bcrypt limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches the stored bcrypt digest.
// bcrypt recomputes the full digest before comparing, so verification time
// does not depend on where the first mismatching byte sits.
func CheckPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// RandomPassword returns a URL-safe random secret for auto-provisioned
// federated users. The value is hashed and discarded, never disclosed.
func RandomPassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
