package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library

	"authpay/internal/apperr" // Error taxonomy
)

// respondError translates a typed error into its HTTP status and client-safe
// message. Untyped errors are logged and answered with a generic 500 so raw
// provider or store detail never reaches the client.
func respondError(c *gin.Context, err error) {
	if kind, ok := apperr.KindOf(err); ok {
		c.JSON(kind.Status(), gin.H{"error": apperr.Public(err)})
		return
	}
	logrus.WithError(err).Error("unhandled internal error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
