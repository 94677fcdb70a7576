package federation

import (
	"context"       // Request-scoped cancellation
	"encoding/json" // Response decoding
	"io"            // Body draining
	"net/http"      // Outbound HTTP
	"net/url"       // Query encoding
	"time"          // Client timeout

	"github.com/sirupsen/logrus" // Logging library

	"authpay/internal/apperr" // Error taxonomy
)

// introspectTimeout bounds the synchronous call to the identity provider so a
// slow provider cannot hold a login request open indefinitely.
const introspectTimeout = 10 * time.Second

// Verifier exchanges a Google ID token for a verified email via the tokeninfo
// introspection endpoint.
type Verifier struct {
	client       *http.Client
	tokenInfoURL string
}

// NewVerifier builds a verifier against the given tokeninfo endpoint.
func NewVerifier(tokenInfoURL string) *Verifier {
	return &Verifier{
		client:       &http.Client{Timeout: introspectTimeout},
		tokenInfoURL: tokenInfoURL,
	}
}

// tokenInfo is the subset of the tokeninfo response this flow reads.
// Google encodes email_verified as the string "true"/"false".
type tokenInfo struct {
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
}

// Exchange introspects the provider token and returns the asserted email.
// A provider that answers with non-2xx or without an email claim is a
// FederationRejected; an unreachable provider is a FederationUnavailable.
func (v *Verifier) Exchange(ctx context.Context, providerToken string) (email string, verified bool, err error) {
	endpoint := v.tokenInfoURL + "?id_token=" + url.QueryEscape(providerToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, apperr.Wrap(apperr.FederationRejected, "invalid federation request", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		// Transport error or timeout: the provider could not be reached,
		// which is distinct from the provider rejecting the token.
		logrus.WithError(err).Warn("identity provider unreachable")
		return "", false, apperr.Wrap(apperr.FederationUnavailable, "identity provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("identity provider rejected token")
		return "", false, apperr.New(apperr.FederationRejected, "invalid identity token")
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", false, apperr.Wrap(apperr.FederationRejected, "malformed identity provider response", err)
	}
	if info.Email == "" {
		return "", false, apperr.New(apperr.FederationRejected, "identity token carries no email")
	}
	return info.Email, info.EmailVerified == "true", nil
}
