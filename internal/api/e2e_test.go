package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authpay/internal/domain"
	"authpay/internal/payment"
	"authpay/internal/utils"
)

// TestEndToEndFlow walks the whole surface: register, login, token check,
// failed login, mobile-money initiation, and callback reconciliation.
func TestEndToEndFlow(t *testing.T) {
	users, payments := newTestStores(t)
	cfg := testConfig()
	pusher := &fakePusher{ack: &payment.STKPushResult{CheckoutRequestID: "ws_CO_e2e", ResponseCode: "0"}}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", RegisterHandler(users))
	r.POST("/token", LoginHandler(users, cfg))
	r.POST("/pay/mpesa/stkpush", StkPushHandler(payments, pusher, nil))
	r.POST("/pay/mpesa/callback", MpesaCallbackHandler(payments, nil, ""))

	// Register
	w := doJSON(t, r, http.MethodPost, "/register", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Login with the correct password
	w = doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tok TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))

	// The token's subject round-trips
	claims, err := utils.ParseJWT(tok.AccessToken, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)

	// Wrong password: generic 401
	w = doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "a@x.com", "password": "wrongpass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Initiate mobile money: record created PENDING, prompt acknowledged
	w = doJSON(t, r, http.MethodPost, "/pay/mpesa/stkpush", gin.H{"amount": 100, "phone_number": "254700000000"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p, err := payments.FindByID(t.Context(), 1)
	require.NoError(t, err)
	// Ack success means the prompt was delivered, not that money moved
	assert.Equal(t, domain.StatusPending, p.Status)

	// Provider callback with matching reference completes the record
	w = doJSON(t, r, http.MethodPost, "/pay/mpesa/callback", stkCallbackBody("ws_CO_e2e", 0, "QE2E001"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	p, err = payments.FindByID(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
}
