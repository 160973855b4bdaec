package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func newService(userID string, now time.Time) *TokenService {
	s := NewTokenService(secret, time.Hour, userID)
	s.now = func() time.Time { return now }
	return s
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newService("owner", now)

	token, exp, err := s.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiry %v", exp)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "owner" || claims.Issuer != issuer {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token, _, err := newService("owner", now).Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name    string
		service *TokenService
		token   string
	}{
		{"expired", newService("owner", now.Add(2*time.Hour)), token},
		{"other owner", newService("someone-else", now), token},
		{"wrong secret", NewTokenService(strings.Repeat("x", 32), time.Hour, "owner"), token},
		{"garbage", newService("owner", now), "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.service.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		header string
		want   string
		err    bool
	}{
		{"bearer header", http.MethodGet, "/api/views", "Bearer abc", "abc", false},
		{"lowercase scheme", http.MethodPost, "/api/transactions", "bearer abc", "abc", false},
		{"basic scheme", http.MethodGet, "/api/views", "Basic abc", "", true},
		{"query on GET", http.MethodGet, "/api/stream?access_token=abc", "", "abc", false},
		{"query on POST", http.MethodPost, "/api/transactions?access_token=abc", "", "", true},
		{"nothing", http.MethodGet, "/api/views", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := FromRequest(req)
			if (err != nil) != tt.err || got != tt.want {
				t.Fatalf("FromRequest = %q, %v", got, err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	s := NewTokenService(secret, time.Hour, "owner")
	token, _, err := s.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	var rejected error
	h := s.Middleware("/api/", func(w http.ResponseWriter, r *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(target, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve("/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("unguarded path got %d", rec.Code)
	}
	if rec := serve("/api/views", "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("valid token got %d", rec.Code)
	}
	rec := serve("/api/views", "")
	if rec.Code != http.StatusUnauthorized || !errors.Is(rejected, ErrMissingToken) {
		t.Fatalf("missing token got %d, %v", rec.Code, rejected)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}
	if rec := serve("/api/views", "Bearer "+token+"x"); rec.Code != http.StatusUnauthorized || !errors.Is(rejected, ErrInvalidToken) {
		t.Fatalf("tampered token got %d, %v", rec.Code, rejected)
	}
}
