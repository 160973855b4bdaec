// Package auth issues and checks the HS256 bearer tokens that guard the
// ledger API. Tokens are bound to the single ledger owner: the subject
// claim must equal the configured user id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "ledger"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// TokenService signs and verifies tokens for one ledger owner.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	userID string
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, userID string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		userID: userID,
		now:    time.Now,
	}
}

// Issue returns a signed token for the owner and its expiry.
func (s *TokenService) Issue() (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   s.userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, expiry, issuer and subject.
func (s *TokenService) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(s.userID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// FromRequest extracts the bearer token. EventSource clients cannot set
// headers, so GET requests may pass it as the access_token query parameter.
func FromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if r.Method == http.MethodGet {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}

// Middleware rejects requests under prefix that carry no valid token.
// Other paths pass through untouched.
func (s *TokenService) Middleware(prefix string, onReject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			token, err := FromRequest(r)
			if err == nil {
				_, err = s.Verify(token)
			}
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ledger"`)
				if onReject != nil {
					onReject(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
