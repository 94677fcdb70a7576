package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For CSV parsing
	"time"    // For token lifetime

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration. It is built once at startup and
// treated as immutable afterwards; flows that need a key which is absent fail
// with a ConfigurationMissing error instead of reading the environment ad hoc.
type Config struct {
	AppPort     string        // Application port
	DBUser      string        // Database user
	DBPassword  string        // Database password
	DBHost      string        // Database host
	DBPort      string        // Database port
	DBName      string        // Database name
	JWTSecret   string        // JWT signing secret
	TokenTTL    time.Duration // Access token lifetime
	RedisAddr   string        // Redis server address
	RedisPass   string        // Redis password
	RedisDB     int           // Redis database number
	CORSOrigins []string      // Allowed CORS origins

	GoogleTokenInfoURL string // Google tokeninfo endpoint (override for tests)

	MpesaBaseURL        string // Daraja API base URL
	MpesaConsumerKey    string // Daraja consumer key
	MpesaConsumerSecret string // Daraja consumer secret
	MpesaShortcode      string // Business shortcode
	MpesaPasskey        string // STK push passkey
	MpesaCallbackURL    string // Public callback URL registered with each push
	MpesaCallbackSecret string // Shared secret appended to the callback URL

	StripeSecretKey string // Stripe API secret key

	IsProd bool // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:     getEnv("APP_PORT", "8000"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBHost:      getEnv("DB_HOST", "127.0.0.1"),
		DBPort:      getEnv("DB_PORT", "3306"),
		DBName:      os.Getenv("DB_NAME"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    ttlMinutes(os.Getenv("TOKEN_TTL_MINUTES"), 30*time.Minute),
		RedisAddr:   getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:   os.Getenv("REDIS_PASS"),
		RedisDB:     redisDB,
		CORSOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		GoogleTokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),

		MpesaBaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_BUSINESS_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		MpesaCallbackSecret: os.Getenv("MPESA_CALLBACK_SECRET"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		IsProd: os.Getenv("IS_PROD") == "true", // Is production environment
	}
}

// getEnv returns the environment value or a default when unset/blank.
func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ttlMinutes parses a minute count, falling back to def on absent or bad input.
func ttlMinutes(raw string, def time.Duration) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return def
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
