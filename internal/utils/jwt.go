package utils

import (
	"time" // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// clockSkewLeeway is the explicit tolerance applied at validation so tokens
// are not falsely rejected right at the expiry boundary.
const clockSkewLeeway = 30 * time.Second

// Claims carries the authenticated subject (user email) plus standard claims.
type Claims struct {
	jwt.RegisteredClaims // Standard JWT claims; Subject holds the user email
}

// GenerateJWT creates a signed HS256 token whose subject is the user's email
func GenerateJWT(email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,                              // Subject claim carries the email
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),   // Token expires after the configured lifetime
			IssuedAt:  jwt.NewNumericDate(now),            // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string. Malformed tokens, foreign
// signatures and expired tokens all come back as an error, never a panic.
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), // Reject alg confusion
		jwt.WithLeeway(clockSkewLeeway),                              // Explicit skew tolerance, not the library default
		jwt.WithExpirationRequired(),                                 // A token without exp is malformed here
	)
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
