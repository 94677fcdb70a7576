package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library

	"authpay/internal/config"     // Application configuration
	"authpay/internal/federation" // Identity federation adapter
	"authpay/internal/store"      // Durable stores
	"authpay/internal/utils"      // Utility functions
)

// Request and Response structs
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"` // Email must be a valid address
	Password string `json:"password" binding:"required"`    // Password must be provided
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"` // Email must be provided
	Password string `json:"password" binding:"required"`    // Password must be provided
}

// Request struct for federated login
type GoogleTokenRequest struct {
	Token string `json:"token" binding:"required"` // Google ID token
}

// Response struct for authentication
type TokenResponse struct {
	AccessToken string `json:"access_token"` // Signed bearer token
	TokenType   string `json:"token_type"`   // Always "bearer"
}

// invalidCredentials is the single message for wrong password and unknown
// email alike, so responses cannot be used to enumerate accounts.
const invalidCredentials = "Incorrect email or password"

// isValidPassword checks the password length: at least 8 characters and no
// more than bcrypt's 72-byte input limit (overlong input is rejected, not
// silently truncated).
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= utils.MaxPasswordBytes
}

// RegisterHandler creates a new user from an email and password
func RegisterHandler(users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate password length
		if !isValidPassword(req.Password) {
			// If password is invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		// Hash the password and create the user
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			// If hashing fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		// Attempt to create the user; the unique index serializes races
		user, err := users.Create(c.Request.Context(), strings.TrimSpace(req.Email), hash, false)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// The store rejected the loser of a duplicate race
				c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
				return
			}
			logrus.WithError(err).Error("user creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
		// Return the created identity; the hash never leaves the server
		c.JSON(http.StatusCreated, user)
	}
}

// LoginHandler authenticates a user and returns a bearer token
func LoginHandler(users *store.UserStore, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// The signing secret is required for this flow
		if cfg.JWTSecret == "" {
			logrus.Error("JWT_SECRET is not configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error"})
			return
		}
		user, err := users.FindByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
		if err != nil {
			// Unknown email answers exactly like a wrong password
			c.JSON(http.StatusUnauthorized, gin.H{"error": invalidCredentials})
			return
		}
		// Federated-only identities cannot log in with a password
		if user.PasswordLoginDisabled || !utils.CheckPassword(req.Password, user.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": invalidCredentials})
			return
		}
		// Mint the bearer token
		token, err := utils.GenerateJWT(user.Email, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

// GoogleLoginHandler exchanges a Google ID token for a local bearer token,
// auto-provisioning the identity on first sight.
func GoogleLoginHandler(users *store.UserStore, verifier *federation.Verifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GoogleTokenRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if cfg.JWTSecret == "" {
			logrus.Error("JWT_SECRET is not configured")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error"})
			return
		}
		// Introspect the token with the identity provider
		email, verified, err := verifier.Exchange(c.Request.Context(), req.Token)
		if err != nil {
			respondError(c, err)
			return
		}
		user, err := users.FindByEmail(c.Request.Context(), email)
		if errors.Is(err, store.ErrNotFound) {
			// First federated login: provision the identity with a random,
			// never-disclosed password and password login disabled.
			hash, hashErr := utils.HashPassword(utils.RandomPassword())
			if hashErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
				return
			}
			user, err = users.Create(c.Request.Context(), email, hash, true)
			if errors.Is(err, store.ErrDuplicate) {
				// Lost a provisioning race; the identity now exists
				user, err = users.FindByEmail(c.Request.Context(), email)
			}
		}
		if err != nil {
			logrus.WithError(err).Error("federated login lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
			return
		}
		// Issue a token exactly as password login does
		token, err := utils.GenerateJWT(user.Email, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"email":    user.Email,
			"verified": verified,
		}).Info("Federated login")
		c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

// MeHandler returns the identity behind the presented bearer token
func MeHandler(users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, exists := c.Get("email") // Set by the JWT middleware
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		user, err := users.FindByEmail(c.Request.Context(), email.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
