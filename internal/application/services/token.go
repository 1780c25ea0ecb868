package services

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/ports"
)

// NewTokenCodec returns a JWT codec when secret is set and a plain codec otherwise
func NewTokenCodec(secret, issuer string) ports.TokenCodec {
	if secret == "" {
		return PlainTokenCodec{}
	}
	return NewJWTTokenCodec(secret, issuer)
}

// PlainTokenCodec uses the visitor id itself as the cookie value
type PlainTokenCodec struct{}

func (PlainTokenCodec) Encode(visitorID string) (string, error) {
	if !validVisitorID(visitorID) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidVisitorID, visitorID)
	}
	return visitorID, nil
}

func (PlainTokenCodec) Decode(token string) (string, error) {
	token = strings.TrimSpace(token)
	if !validVisitorID(token) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidVisitorID, token)
	}
	return token, nil
}

// JWTTokenCodec carries visitor ids as HS256-signed tokens
type JWTTokenCodec struct {
	secret []byte
	issuer string
}

// NewJWTTokenCodec creates a JWT codec
func NewJWTTokenCodec(secret, issuer string) *JWTTokenCodec {
	return &JWTTokenCodec{secret: []byte(secret), issuer: issuer}
}

func (c *JWTTokenCodec) Encode(visitorID string) (string, error) {
	if !validVisitorID(visitorID) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidVisitorID, visitorID)
	}

	claims := jwt.RegisteredClaims{
		Subject: visitorID,
		Issuer:  c.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign visitor token: %w", err)
	}
	return signed, nil
}

func (c *JWTTokenCodec) Decode(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrInvalidVisitorID, err)
	}
	if !validVisitorID(claims.Subject) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidVisitorID, claims.Subject)
	}
	return claims.Subject, nil
}

// validVisitorID accepts the characters our allocators produce. Commas and
// newlines would break the flat-file format.
func validVisitorID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
		default:
			return false
		}
	}
	return true
}
