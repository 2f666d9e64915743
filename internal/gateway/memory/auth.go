// Package memory is an in-process backend used for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

const minPasswordLength = 6

type account struct {
	uid  string
	hash []byte
}

// Auth is a password identity provider keeping accounts in memory.
type Auth struct {
	mu       sync.RWMutex
	accounts map[string]account // by lower-cased email
	cost     int
}

func NewAuth() *Auth {
	return &Auth{
		accounts: make(map[string]account),
		cost:     bcrypt.DefaultCost,
	}
}

// WithCost lowers the bcrypt cost; tests use bcrypt.MinCost.
func (a *Auth) WithCost(cost int) *Auth {
	a.cost = cost
	return a
}

func (a *Auth) NewSession() gateway.AuthSession {
	return &session{auth: a}
}

func (a *Auth) register(email, password string) (*gateway.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
		return nil, gateway.NewAuthError(gateway.CodeInvalidEmail, err)
	}
	if len(password) < minPasswordLength {
		return nil, gateway.NewAuthError(gateway.CodeWeakPassword, errors.New("password too short"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, gateway.NewAuthError(gateway.CodeUnknown, err)
	}

	key := strings.ToLower(email)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.accounts[key]; exists {
		return nil, gateway.NewAuthError(gateway.CodeEmailInUse, nil)
	}
	acc := account{uid: uuid.NewString(), hash: hash}
	a.accounts[key] = acc
	return &gateway.Identity{UID: acc.uid, Email: email}, nil
}

func (a *Auth) verify(email, password string) (*gateway.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, gateway.NewAuthError(gateway.CodeInvalidEmail, err)
	}

	a.mu.RLock()
	acc, ok := a.accounts[strings.ToLower(email)]
	a.mu.RUnlock()
	if !ok {
		return nil, gateway.NewAuthError(gateway.CodeUserNotFound, nil)
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, gateway.NewAuthError(gateway.CodeWrongPassword, nil)
	}
	return &gateway.Identity{UID: acc.uid, Email: email}, nil
}

type session struct {
	gateway.IdentityState
	auth *Auth
}

func (s *session) SignUp(_ context.Context, email, password string) (*gateway.Identity, error) {
	id, err := s.auth.register(strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	s.Set(id)
	return id, nil
}

func (s *session) SignIn(_ context.Context, email, password string) (*gateway.Identity, error) {
	id, err := s.auth.verify(strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	s.Set(id)
	return id, nil
}

func (s *session) SignOut(context.Context) error {
	s.Set(nil)
	return nil
}

var _ gateway.Auth = (*Auth)(nil)
