package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing token")

// AuthManager mints and checks the bearer tokens of the admin override.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *AuthManager) Mint(subject string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   subject,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
