package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"authpay/internal/api"        // Custom package for API handlers
	"authpay/internal/config"     // Custom package for configuration
	"authpay/internal/federation" // Identity federation adapter
	"authpay/internal/middleware" // Custom package for middleware
	"authpay/internal/payment"    // Payment provider gateways
	"authpay/internal/store"      // Durable stores

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Durable stores over the shared gorm handle
	users := store.NewUserStore(db)
	payments := store.NewPaymentStore(db)

	// Provider adapters, configured once and immutable afterwards
	verifier := federation.NewVerifier(cfg.GoogleTokenInfoURL)
	mpesa := payment.NewMpesaGateway(cfg, redisClient)
	stripeGw := payment.NewStripeGateway(cfg.StripeSecretKey)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// CORS for the browser frontend
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	// Auth routes
	r.POST("/register", api.RegisterHandler(users))                          // Registration endpoint
	r.POST("/token", api.LoginHandler(users, cfg))                           // Login endpoint
	r.POST("/google-token", api.GoogleLoginHandler(users, verifier, cfg))    // Federated login endpoint
	r.GET("/me", middleware.JWTAuthMiddleware(cfg.JWTSecret), api.MeHandler(users)) // Current identity (protected)

	// Payment routes
	payGroup := r.Group("/pay")
	payGroup.POST("/mpesa/stkpush", api.StkPushHandler(payments, mpesa, redisClient))                        // Mobile-money initiation
	payGroup.POST("/mpesa/callback", api.MpesaCallbackHandler(payments, redisClient, cfg.MpesaCallbackSecret)) // Provider callback
	payGroup.POST("/stripe/intent", api.StripeIntentHandler(payments, stripeGw))                             // Card intent creation
	payGroup.GET("/:id", api.PaymentStatusHandler(payments, redisClient))                                    // Payment status lookup

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
