package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/docingest/internal/models"
)

const secret = "test-secret"

func signed(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func ownerEcho(got *models.Owner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestOptionalJWT(t *testing.T) {
	valid := signed(t, secret, jwt.MapClaims{
		"user_id": "u1",
		"email":   "ada@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signed(t, secret, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	foreign := signed(t, "other", jwt.MapClaims{"user_id": "u1"})
	noUser := signed(t, secret, jwt.MapClaims{"email": "x@y.z"})

	cases := []struct {
		name   string
		header string
		status int
		owner  models.Owner
	}{
		{"anonymous", "", http.StatusNoContent, models.Owner{}},
		{"valid", "Bearer " + valid, http.StatusNoContent, models.Owner{ID: "u1", Email: "ada@example.com"}},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, models.Owner{}},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized, models.Owner{}},
		{"missing user", "Bearer " + noUser, http.StatusUnauthorized, models.Owner{}},
		{"not bearer", "Basic abc", http.StatusUnauthorized, models.Owner{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got models.Owner
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			OptionalJWT(secret)(ownerEcho(&got)).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.owner, got)
		})
	}
}

func TestOptionalJWTWithoutSecretIsAnonymous(t *testing.T) {
	var got models.Owner
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()

	OptionalJWT("")(ownerEcho(&got)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, got.Anonymous())
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(NewIPRateLimiter(rate.Limit(0.001), 2))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
}

func TestMetricsPassesStatusThrough(t *testing.T) {
	h := Metrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
