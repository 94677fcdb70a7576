package api

import (
	"context"  // Context for cache operations
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Cache TTLs

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library

	"authpay/internal/domain"  // Importing domain models
	"authpay/internal/payment" // Provider gateways
	"authpay/internal/store"   // Durable stores
	"authpay/internal/utils"   // Cache helpers
)

// paymentStatusTTL bounds how stale a cached status read may be.
const paymentStatusTTL = 30 * time.Second

// MpesaPusher is the push-payment side of the provider gateway.
type MpesaPusher interface {
	STKPush(ctx context.Context, phoneNumber string, amount int64, paymentID uint) (*payment.STKPushResult, error)
}

// IntentCreator is the hosted-intent side of the provider gateway.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*payment.IntentResult, error)
}

// MpesaPaymentRequest initiates a mobile-money push
type MpesaPaymentRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"` // Whole KES
	PhoneNumber string `json:"phone_number" binding:"required"` // Format: 2547XXXXXXXX
}

// StripePaymentRequest initiates a card payment intent
type StripePaymentRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"` // Whole currency units
	Currency string `json:"currency"`                       // Defaults to usd
}

// StkPushHandler creates a PENDING payment record and asks the provider to
// prompt the payer's device. A rejected initiation marks the record FAILED
// before the error goes back to the client.
func StkPushHandler(payments *store.PaymentStore, gateway MpesaPusher, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MpesaPaymentRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Record the attempt before calling out; creation lands in PENDING
		p := &domain.Payment{
			Amount:      req.Amount,
			Currency:    "KES",
			Method:      domain.MethodMobileMoney,
			PhoneNumber: &req.PhoneNumber,
		}
		if err := payments.Create(c.Request.Context(), p); err != nil {
			if errors.Is(err, store.ErrInvalidPayment) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			logrus.WithError(err).Error("payment record creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		// Ask the provider to push the prompt to the payer's device
		ack, err := gateway.STKPush(c.Request.Context(), req.PhoneNumber, req.Amount, p.ID)
		if err != nil {
			// The ledger must say FAILED before the client hears "failed"
			if mErr := payments.MarkFailed(c.Request.Context(), p.ID); mErr != nil {
				logrus.WithError(mErr).WithField("payment_id", p.ID).Error("failed to mark payment failed")
			}
			invalidateStatusCache(c.Request.Context(), rdb, p.ID)
			respondError(c, err)
			return
		}
		// Persist the correlation id so the asynchronous callback can find us
		if err := payments.SetCheckoutRequestID(c.Request.Context(), p.ID, ack.CheckoutRequestID); err != nil {
			logrus.WithError(err).WithField("payment_id", p.ID).Error("failed to persist checkout request id")
		}
		// Log the delivered prompt; the record stays PENDING until the callback
		logrus.WithFields(logrus.Fields{
			"payment_id":          p.ID,
			"checkout_request_id": ack.CheckoutRequestID,
			"amount":              req.Amount,
		}).Info("STK push sent")
		c.JSON(http.StatusOK, gin.H{
			"status":            "success",
			"message":           "STK Push sent",
			"payment_id":        p.ID,
			"provider_response": ack,
		})
	}
}

// mpesaCallbackBody mirrors the Daraja result envelope.
type mpesaCallbackBody struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// receiptNumber digs the MpesaReceiptNumber out of the callback metadata.
func (b *mpesaCallbackBody) receiptNumber() string {
	for _, item := range b.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// MpesaCallbackHandler applies the provider's asynchronous result to the
// ledger. It authenticates the origin with the shared callback secret,
// drops duplicates idempotently, and always acks with 200 so the provider
// never sees an error from us.
func MpesaCallbackHandler(payments *store.PaymentStore, rdb *redis.Client, callbackSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Daraja does not sign callbacks; the secret in the registered URL is
		// the only proof of origin. Unauthenticated payloads are dropped.
		if callbackSecret != "" && c.Query("secret") != callbackSecret {
			logrus.Warn("mpesa callback with bad or missing secret dropped")
			c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
			return
		}
		var body mpesaCallbackBody
		if err := c.ShouldBindJSON(&body); err != nil {
			logrus.WithError(err).Warn("malformed mpesa callback dropped")
			c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
			return
		}
		cb := body.Body.StkCallback
		success := cb.ResultCode == 0
		p, applied, err := payments.ApplyCallback(c.Request.Context(), cb.CheckoutRequestID, success, body.receiptNumber())
		switch {
		case errors.Is(err, store.ErrNotFound):
			logrus.WithField("checkout_request_id", cb.CheckoutRequestID).Warn("mpesa callback for unknown payment dropped")
		case err != nil:
			logrus.WithError(err).WithField("checkout_request_id", cb.CheckoutRequestID).Error("mpesa callback apply failed")
		case !applied:
			// Duplicate delivery: the record already reached a terminal state
			logrus.WithFields(logrus.Fields{
				"payment_id": p.ID,
				"status":     p.Status,
			}).Info("duplicate mpesa callback dropped")
		default:
			logrus.WithFields(logrus.Fields{
				"payment_id":  p.ID,
				"status":      p.Status,
				"result_code": cb.ResultCode,
				"result_desc": cb.ResultDesc,
			}).Info("mpesa callback applied")
			invalidateStatusCache(c.Request.Context(), rdb, p.ID)
		}
		// Always ack; errors must never flow back to the provider
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
	}
}

// StripeIntentHandler creates a PENDING payment record and a provider-side
// intent, persisting the intent id immediately so the later webhook can
// correlate.
func StripeIntentHandler(payments *store.PaymentStore, gateway IntentCreator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StripePaymentRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = "usd"
		}
		p := &domain.Payment{
			Amount:   req.Amount,
			Currency: currency,
			Method:   domain.MethodCard,
		}
		if err := payments.Create(c.Request.Context(), p); err != nil {
			if errors.Is(err, store.ErrInvalidPayment) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			logrus.WithError(err).Error("payment record creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
			return
		}
		intent, err := gateway.CreateIntent(c.Request.Context(), req.Amount, currency)
		if err != nil {
			// The ledger must say FAILED before the client hears "failed"
			if mErr := payments.MarkFailed(c.Request.Context(), p.ID); mErr != nil {
				logrus.WithError(mErr).WithField("payment_id", p.ID).Error("failed to mark payment failed")
			}
			respondError(c, err)
			return
		}
		// Persist the provider transaction id against the local record
		if err := payments.SetTransactionID(c.Request.Context(), p.ID, intent.IntentID); err != nil {
			logrus.WithError(err).WithField("payment_id", p.ID).Error("failed to persist intent id")
		}
		logrus.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"intent_id":  intent.IntentID,
			"amount":     req.Amount,
			"currency":   currency,
		}).Info("Stripe intent created")
		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"client_secret": intent.ClientSecret,
			"payment_id":    p.ID,
		})
	}
}

// PaymentStatusHandler returns the current ledger state for one payment,
// serving brief reads from cache.
func PaymentStatusHandler(payments *store.PaymentStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
			return
		}
		key := statusCacheKey(uint(id))
		// Serve from cache when possible
		if rdb != nil {
			var cached domain.Payment
			if ok, err := utils.GetCache(c.Request.Context(), rdb, key, &cached); err == nil && ok {
				c.JSON(http.StatusOK, cached)
				return
			}
		}
		p, err := payments.FindByID(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
				return
			}
			logrus.WithError(err).Error("payment lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
			return
		}
		// Cache briefly; transitions invalidate this key
		if rdb != nil {
			if err := utils.SetCache(c.Request.Context(), rdb, key, p, paymentStatusTTL); err != nil {
				logrus.WithError(err).Warn("failed to cache payment status")
			}
		}
		c.JSON(http.StatusOK, p)
	}
}

// statusCacheKey builds the redis key for one payment's status.
func statusCacheKey(id uint) string {
	return "payment:" + strconv.Itoa(int(id))
}

// invalidateStatusCache drops the cached status after a transition.
func invalidateStatusCache(ctx context.Context, rdb *redis.Client, id uint) {
	if rdb == nil {
		return
	}
	if err := utils.DeleteCache(ctx, rdb, statusCacheKey(id)); err != nil {
		logrus.WithError(err).WithField("payment_id", id).Warn("failed to invalidate payment cache")
	}
}
