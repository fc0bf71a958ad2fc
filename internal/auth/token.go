package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// MinSecretLen is the shortest HS256 secret accepted.
const MinSecretLen = 32

// CookieName carries the token for browser clients.
const CookieName = "jwt"

var ErrShortSecret = errors.New("auth: jwt secret must be at least 32 bytes")

// Signer issues and verifies session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type SignerOption func(*Signer)

// WithClock overrides the signer's time source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

func NewSigner(secret string, ttl time.Duration, opts ...SignerOption) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		return nil, apperr.Errorf("auth: token ttl must be positive")
	}
	s := &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Sign returns a token for userID and its expiry.
func (s *Signer) Sign(userID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(err, "sign token")
	}
	return tok, exp, nil
}

// Parse verifies tok and returns its claims. Errors wrap the jwt sentinel
// errors (jwt.ErrTokenExpired, jwt.ErrTokenMalformed, ...).
func (s *Signer) Parse(tok string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Cookie returns the session cookie for tok.
func Cookie(tok string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// LogoutCookie replaces the session cookie with a short-lived dummy value.
func LogoutCookie(now time.Time, secure bool) *http.Cookie {
	return Cookie("loggedout", now.Add(10*time.Second), secure)
}
