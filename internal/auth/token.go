// Package auth mints and validates the bearer tokens exchanged with the
// persistence collaborator.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims defines the structure of the data stored inside the JWT.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
func GenerateToken(secret []byte, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "tandem",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ServiceTokenSource supplies a bearer token for server-to-server calls,
// minted from the shared secret. The token is cached and re-issued when it
// gets close to expiry, so callers can invoke the source per request.
func ServiceTokenSource(secret []byte, subject string, ttl time.Duration) func() string {
	var (
		mu     sync.Mutex
		token  string
		expiry time.Time
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if token != "" && time.Until(expiry) > ttl/4 {
			return token
		}
		minted, err := GenerateToken(secret, subject, subject, ttl)
		if err != nil {
			return ""
		}
		token = minted
		expiry = time.Now().Add(ttl)
		return token
	}
}

// DecodeClaims extracts the embedded claims without verifying the signature.
// The client side uses it to read its own identity and expiry locally; the
// collaborator already vouched for the token when it issued it.
func DecodeClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
