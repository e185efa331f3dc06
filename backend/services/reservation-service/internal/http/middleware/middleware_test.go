package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID int64, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserIDFromContext(r.Context())
		w.Header().Set("X-User", strconv.FormatInt(id, 10))
		w.Header().Set("X-Role", RoleFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	h := auth.Authenticate(echoIdentity())

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", 7, RoleDriver, time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, 7, RoleDriver, -time.Minute), http.StatusUnauthorized},
		{"no user", "Bearer " + signToken(t, testSecret, 0, RoleDriver, time.Hour), http.StatusUnauthorized},
		{"valid", "bearer " + signToken(t, testSecret, 7, RoleDriver, time.Hour), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reservations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusNoContent && (rec.Header().Get("X-User") != "7" || rec.Header().Get("X-Role") != RoleDriver) {
				t.Fatalf("identity not propagated: %v", rec.Header())
			}
			if tc.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected json error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestRequireOperator(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	h := auth.RequireOperator("k3y")(echoIdentity())

	do := func(setup func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodPatch, "/internal/chargers/c1/status", nil)
		setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(func(r *http.Request) { r.Header.Set(InternalKeyHeader, "k3y") }); code != http.StatusNoContent {
		t.Fatalf("internal key must pass, got %d", code)
	}
	if code := do(func(r *http.Request) { r.Header.Set(InternalKeyHeader, "nope") }); code != http.StatusUnauthorized {
		t.Fatalf("wrong key must be rejected, got %d", code)
	}
	if code := do(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 1, RoleOperator, time.Hour))
	}); code != http.StatusNoContent {
		t.Fatalf("operator must pass, got %d", code)
	}
	if code := do(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 1, RoleAdmin, time.Hour))
	}); code != http.StatusNoContent {
		t.Fatalf("admin must pass, got %d", code)
	}
	if code := do(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 1, RoleDriver, time.Hour))
	}); code != http.StatusForbidden {
		t.Fatalf("driver must be forbidden, got %d", code)
	}
	if code := do(func(*http.Request) {}); code != http.StatusUnauthorized {
		t.Fatalf("anonymous must be rejected, got %d", code)
	}
}

func TestRequireOperatorWithoutConfiguredKey(t *testing.T) {
	h := NewAuthenticator(testSecret).RequireOperator("")(echoIdentity())
	req := httptest.NewRequest(http.MethodPost, "/internal/stations/s1/changed", nil)
	req.Header.Set(InternalKeyHeader, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty configured key must not open the route, got %d", rec.Code)
	}
}

func TestVerifyUser(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	id, err := auth.VerifyUser(signToken(t, testSecret, 99, RoleDriver, time.Hour))
	if err != nil || id != 99 {
		t.Fatalf("expected user 99, got %d %v", id, err)
	}
	if _, err := auth.VerifyUser("x.y.z"); err == nil {
		t.Fatalf("expected error for a malformed token")
	}
}

func TestRecovererAndRequestLogger(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := RequestLogger(zap.NewNop())(Recoverer(zap.NewNop())(panicky))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "internal error") {
		t.Fatalf("expected 500 json error, got %d %s", rec.Code, rec.Body.String())
	}
}
