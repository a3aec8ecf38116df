// Package auth issues and checks the bearer tokens players present to the
// HTTP API and the WebSocket endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

var (
	// ErrInvalidToken indicates the token is malformed, expired or signed
	// with another key.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrMissingToken indicates no token was presented.
	ErrMissingToken = errors.New("auth: missing token")
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Identity is the authenticated player behind a token.
type Identity struct {
	Email string
}

// Validator validates tokens.
type Validator interface {
	// Validate returns the identity carried by token, ErrMissingToken for an
	// empty token and ErrInvalidToken for anything it cannot trust.
	Validate(ctx context.Context, token string) (*Identity, error)
}

// JWT signs HS256 tokens carrying the player's email.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a token issuer and validator. A zero ttl uses DefaultTTL.
func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for email.
func (j *JWT) Issue(email string) (string, error) {
	now := j.now()
	claims := jwt.MapClaims{
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(j.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (j *JWT) Validate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrInvalidToken)
	}
	return &Identity{Email: email}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
