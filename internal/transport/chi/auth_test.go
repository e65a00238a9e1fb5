package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

// echoRequester writes the authenticated requester as the body.
func echoRequester() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(RequesterFromContext(r.Context())))
	})
}

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func serve(mw func(http.Handler) http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mw(echoRequester()).ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_HeaderIdentity(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", http.NoBody)
	req.Header.Set(UserHeader, "alice")
	rr := serve(mw, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Body.String(); got != "alice" {
		t.Errorf("requester = %q, want alice", got)
	}
}

func TestAuthMiddleware_MissingUser_401(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", http.NoBody)
	rr := serve(mw, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var body envelope
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error == nil || body.Error.Category != "unauthorized" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestAuthMiddleware_APIKeys(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{APIKeys: []string{"key-a", "key-b"}})

	tests := []struct {
		name   string
		auth   string
		user   string
		status int
	}{
		{"valid key", "Bearer key-b", "bob", http.StatusOK},
		{"missing header", "", "bob", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", "bob", http.StatusUnauthorized},
		{"basic scheme", "Basic key-a", "bob", http.StatusUnauthorized},
		{"valid key without user", "Bearer key-a", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", http.NoBody)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.user != "" {
				req.Header.Set(UserHeader, tt.user)
			}
			if rr := serve(mw, req); rr.Code != tt.status {
				t.Errorf("got %d, want %d", rr.Code, tt.status)
			}
		})
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{JWTSecret: testSecret})

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		if rr := serve(mw, req); rr.Code != http.StatusOK {
			t.Errorf("%s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_JWT(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{JWTSecret: testSecret, Issuer: "docrag", Audience: "api"})
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	valid := jwt.RegisteredClaims{
		Subject: "carol", Issuer: "docrag", Audience: jwt.ClaimStrings{"api"}, ExpiresAt: future,
	}

	tests := []struct {
		name   string
		token  string
		status int
		want   string
	}{
		{"valid", signToken(t, jwt.SigningMethodHS256, valid), http.StatusOK, "carol"},
		{"expired", signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "carol", Issuer: "docrag", Audience: jwt.ClaimStrings{"api"}, ExpiresAt: past,
		}), http.StatusUnauthorized, ""},
		{"wrong issuer", signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "carol", Issuer: "other", Audience: jwt.ClaimStrings{"api"}, ExpiresAt: future,
		}), http.StatusUnauthorized, ""},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "carol", Issuer: "docrag", Audience: jwt.ClaimStrings{"web"}, ExpiresAt: future,
		}), http.StatusUnauthorized, ""},
		{"no subject", signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer: "docrag", Audience: jwt.ClaimStrings{"api"}, ExpiresAt: future,
		}), http.StatusUnauthorized, ""},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, valid), http.StatusUnauthorized, ""},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rr := serve(mw, req)
			if rr.Code != tt.status {
				t.Fatalf("got %d, want %d", rr.Code, tt.status)
			}
			if tt.want != "" && rr.Body.String() != tt.want {
				t.Errorf("requester = %q, want %q", rr.Body.String(), tt.want)
			}
		})
	}
}

func TestAuthMiddleware_JWTIgnoresUserHeader(t *testing.T) {
	mw := AuthMiddleware(AuthConfig{JWTSecret: testSecret})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", http.NoBody)
	req.Header.Set(UserHeader, "mallory")
	if rr := serve(mw, req); rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
