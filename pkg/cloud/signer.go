package cloud

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itohio/goxing/pkg/config"
)

// ErrNoSecret is returned by NewSigner when no shared secret is configured.
var ErrNoSecret = errors.New("cloud secret is not configured")

// Signer issues short-lived HS256 bearer tokens identifying this device.
// A nil *Signer issues no tokens.
type Signer struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a signer from the cloud configuration.
func NewSigner(cfg *config.CloudConfig) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{
		secret:  []byte(cfg.Secret),
		subject: cfg.DeviceID,
		ttl:     cfg.TokenTTL,
		now:     time.Now,
	}, nil
}

// Token returns a freshly signed token. A nil signer returns an empty token.
func (s *Signer) Token() (string, error) {
	if s == nil {
		return "", nil
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses a token issued with the same secret and returns its claims.
func (s *Signer) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	if s == nil {
		return nil, ErrNoSecret
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithSubject(s.subject))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// Authorization returns the value for an Authorization header, or an empty
// string when s is nil.
func (s *Signer) Authorization() (string, error) {
	token, err := s.Token()
	if err != nil || token == "" {
		return "", err
	}
	return "Bearer " + token, nil
}
