package web

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	cookieName   = "obras_ws"
	cookieIssuer = "obras"
	cookieTTL    = 30 * 24 * time.Hour
)

var ErrInvalidCookie = errors.New("invalid workspace cookie")

type workspaceClaims struct {
	jwt.RegisteredClaims
}

// CookieSigner issues and verifies the HS256 token naming a workspace.
type CookieSigner struct {
	secret []byte
	now    func() time.Time
}

// NewCookieSigner signs with secret. An empty secret gets a random one, so
// cookies do not survive a restart.
func NewCookieSigner(secret string) (*CookieSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &CookieSigner{secret: key, now: time.Now}, nil
}

func (s *CookieSigner) Sign(workspaceID string) (string, error) {
	now := s.now()
	claims := workspaceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			Subject:   workspaceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cookieTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign workspace cookie: %w", err)
	}
	return token, nil
}

// Parse returns the workspace id of a token produced by Sign.
func (s *CookieSigner) Parse(token string) (string, error) {
	var claims workspaceClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidCookie
	}
	return claims.Subject, nil
}
