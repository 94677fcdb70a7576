package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"authpay/internal/config"
	"authpay/internal/domain"
	"authpay/internal/federation"
	"authpay/internal/middleware"
	"authpay/internal/store"
	"authpay/internal/utils"
)

func newTestStores(t *testing.T) (*store.UserStore, *store.PaymentStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Payment{}))
	return store.NewUserStore(db), store.NewPaymentStore(db)
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", TokenTTL: 30 * time.Minute}
}

func newAuthRouter(t *testing.T, users *store.UserStore, cfg *config.Config, verifier *federation.Verifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", RegisterHandler(users))
	r.POST("/token", LoginHandler(users, cfg))
	if verifier != nil {
		r.POST("/google-token", GoogleLoginHandler(users, verifier, cfg))
	}
	r.GET("/me", middleware.JWTAuthMiddleware(cfg.JWTSecret), MeHandler(users))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginFlow(t *testing.T) {
	users, _ := newTestStores(t)
	cfg := testConfig()
	r := newAuthRouter(t, users, cfg, nil)

	// Register
	w := doJSON(t, r, http.MethodPost, "/register", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")
	// The password hash never appears in a response
	assert.NotContains(t, w.Body.String(), "password")

	// Login with the correct password yields a bearer token
	w = doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)

	// The token validates back to the original subject
	claims, err := utils.ParseJWT(resp.AccessToken, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)

	// The token opens the protected endpoint
	w = doJSON(t, r, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + resp.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users, _ := newTestStores(t)
	r := newAuthRouter(t, users, testConfig(), nil)

	w := doJSON(t, r, http.MethodPost, "/register", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/register", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestRegisterValidation(t *testing.T) {
	users, _ := newTestStores(t)
	r := newAuthRouter(t, users, testConfig(), nil)

	tests := []struct {
		name string
		body gin.H
	}{
		{"bad email shape", gin.H{"email": "not-an-email", "password": "pw123456"}},
		{"missing password", gin.H{"email": "a@x.com"}},
		{"short password", gin.H{"email": "a@x.com", "password": "short"}},
		{"overlong password", gin.H{"email": "a@x.com", "password": string(bytes.Repeat([]byte("a"), 73))}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/register", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	users, _ := newTestStores(t)
	r := newAuthRouter(t, users, testConfig(), nil)

	w := doJSON(t, r, http.MethodPost, "/register", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Wrong password for a known email
	wrongPw := doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "a@x.com", "password": "wrongpass"}, nil)
	// Unknown email entirely
	unknown := doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "ghost@x.com", "password": "pw123456"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	// Both failures answer with the identical body so accounts cannot be enumerated
	assert.Equal(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestLoginWithoutSecretIsConfigurationError(t *testing.T) {
	users, _ := newTestStores(t)
	cfg := &config.Config{TokenTTL: 30 * time.Minute} // No JWT secret configured
	r := newAuthRouter(t, users, cfg, nil)

	w := doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGoogleLoginAutoProvisions(t *testing.T) {
	users, _ := newTestStores(t)
	cfg := testConfig()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"email":"fed@x.com","email_verified":"true"}`))
	}))
	defer ts.Close()

	r := newAuthRouter(t, users, cfg, federation.NewVerifier(ts.URL))

	w := doJSON(t, r, http.MethodPost, "/google-token", gin.H{"token": "google-id-token"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := utils.ParseJWT(resp.AccessToken, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "fed@x.com", claims.Subject)

	// The identity exists locally with password login disabled
	user, err := users.FindByEmail(t.Context(), "fed@x.com")
	require.NoError(t, err)
	assert.True(t, user.PasswordLoginDisabled)

	// No password can ever log this identity in
	login := doJSON(t, r, http.MethodPost, "/token", gin.H{"email": "fed@x.com", "password": "anything8"}, nil)
	assert.Equal(t, http.StatusUnauthorized, login.Code)

	// A second federated login reuses the identity instead of erroring
	w = doJSON(t, r, http.MethodPost, "/google-token", gin.H{"token": "google-id-token"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleLoginRejectedToken(t *testing.T) {
	users, _ := newTestStores(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	r := newAuthRouter(t, users, testConfig(), federation.NewVerifier(ts.URL))

	w := doJSON(t, r, http.MethodPost, "/google-token", gin.H{"token": "bad"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleLoginProviderDown(t *testing.T) {
	users, _ := newTestStores(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	ts.Close()

	r := newAuthRouter(t, users, testConfig(), federation.NewVerifier(ts.URL))

	w := doJSON(t, r, http.MethodPost, "/google-token", gin.H{"token": "tok"}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMeRequiresValidToken(t *testing.T) {
	users, _ := newTestStores(t)
	r := newAuthRouter(t, users, testConfig(), nil)

	w := doJSON(t, r, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
