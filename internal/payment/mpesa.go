package payment

import (
	"bytes"           // Request body buffer
	"context"         // Request-scoped cancellation
	"encoding/base64" // Derived password encoding
	"encoding/json"   // Payload encoding
	"fmt"             // String building
	"io"              // Body draining
	"net/http"        // Outbound HTTP
	"net/url"         // Callback URL assembly
	"time"            // Timestamps and timeouts

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library

	"authpay/internal/apperr" // Error taxonomy
	"authpay/internal/config" // Immutable provider configuration
	"authpay/internal/utils"  // Cache helpers
)

const (
	providerTimeout = 10 * time.Second // Bound on every outbound Daraja call

	accessTokenCacheKey = "mpesa:access_token" // Redis key for the cached OAuth token
	accessTokenCacheTTL = 50 * time.Minute     // Daraja tokens live ~1h; refresh early

	oauthPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	// Daraja's timestamp layout: YYYYMMDDHHmmss
	timestampLayout = "20060102150405"

	// stkSuccessCode is the only response code meaning the push prompt was
	// delivered. It does not mean the payment completed; completion arrives
	// later via the callback.
	stkSuccessCode = "0"
)

// MpesaGateway drives the Daraja STK push (push-payment) flow: a
// client-credential access-token fetch followed by the push request itself.
// Configuration is captured immutably at construction.
type MpesaGateway struct {
	client         *http.Client
	rdb            *redis.Client // Optional access-token cache; nil skips caching
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	callbackSecret string
}

// NewMpesaGateway builds the gateway from configuration.
func NewMpesaGateway(cfg *config.Config, rdb *redis.Client) *MpesaGateway {
	return &MpesaGateway{
		client:         &http.Client{Timeout: providerTimeout},
		rdb:            rdb,
		baseURL:        cfg.MpesaBaseURL,
		consumerKey:    cfg.MpesaConsumerKey,
		consumerSecret: cfg.MpesaConsumerSecret,
		shortcode:      cfg.MpesaShortcode,
		passkey:        cfg.MpesaPasskey,
		callbackURL:    cfg.MpesaCallbackURL,
		callbackSecret: cfg.MpesaCallbackSecret,
	}
}

// STKPushResult is the provider acknowledgement for a push request.
type STKPushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// accessToken fetches (or reuses) a Daraja OAuth token via the
// client-credentials grant with HTTP basic auth.
func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	if g.consumerKey == "" || g.consumerSecret == "" {
		return "", apperr.New(apperr.ConfigurationMissing, "mobile money credentials not configured")
	}
	// Reuse the cached token when available
	if g.rdb != nil {
		if token, ok, err := utils.GetCachedString(ctx, g.rdb, accessTokenCacheKey); err == nil && ok {
			return token, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+oauthPath, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		logrus.WithError(err).Error("mpesa access token fetch failed")
		return "", apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("mpesa access token rejected")
		return "", apperr.New(apperr.ProviderInitiationFailed, "payment initiation failed")
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		return "", apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}

	if g.rdb != nil {
		if err := utils.SetCachedString(ctx, g.rdb, accessTokenCacheKey, out.AccessToken, accessTokenCacheTTL); err != nil {
			logrus.WithError(err).Warn("failed to cache mpesa access token")
		}
	}
	return out.AccessToken, nil
}

// stkPushPayload is the Daraja push request body.
type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPush prompts the payer's device to authorize the payment. A nil error
// means the prompt was delivered (ResponseCode 0), not that money moved;
// the terminal status arrives via the provider callback.
func (g *MpesaGateway) STKPush(ctx context.Context, phoneNumber string, amount int64, paymentID uint) (*STKPushResult, error) {
	if g.shortcode == "" || g.passkey == "" || g.callbackURL == "" {
		return nil, apperr.New(apperr.ConfigurationMissing, "mobile money account not configured")
	}
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	// Derived password: base64(shortcode + passkey + timestamp)
	timestamp := time.Now().Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(g.shortcode + g.passkey + timestamp))

	payload := stkPushPayload{
		BusinessShortCode: g.shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            g.shortcode,
		PhoneNumber:       phoneNumber,
		CallBackURL:       g.signedCallbackURL(),
		AccountReference:  fmt.Sprintf("Payment-%d", paymentID),
		TransactionDesc:   "Payment for Service",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		logrus.WithError(err).Error("mpesa stk push request failed")
		return nil, apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	defer resp.Body.Close()

	var result STKPushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.ProviderInitiationFailed, "payment initiation failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || result.ResponseCode != stkSuccessCode {
		// Provider detail stays in the logs, not in the client response
		logrus.WithFields(logrus.Fields{
			"status":        resp.StatusCode,
			"response_code": result.ResponseCode,
			"description":   result.ResponseDescription,
			"payment_id":    paymentID,
		}).Error("mpesa stk push rejected")
		return nil, apperr.New(apperr.ProviderInitiationFailed, "payment initiation failed")
	}
	return &result, nil
}

// signedCallbackURL appends the shared callback secret so the callback handler
// can authenticate the origin; Daraja does not sign its callbacks.
func (g *MpesaGateway) signedCallbackURL() string {
	if g.callbackSecret == "" {
		return g.callbackURL
	}
	sep := "?"
	if u, err := url.Parse(g.callbackURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return g.callbackURL + sep + "secret=" + url.QueryEscape(g.callbackSecret)
}
