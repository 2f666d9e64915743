package gatewaytest

import (
	"context"
	"sync"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// AuthSession is a scripted identity session. Errors set on it are returned
// by the next calls; otherwise sign-in succeeds with UID "uid-" + email.
type AuthSession struct {
	gateway.IdentityState

	mu         sync.Mutex
	SignUpErr  error
	SignInErr  error
	SignOutErr error
	calls      []string
}

func (s *AuthSession) record(op string) {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()
}

func (s *AuthSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *AuthSession) SignUp(_ context.Context, email, _ string) (*gateway.Identity, error) {
	s.record("signup")
	if s.SignUpErr != nil {
		return nil, s.SignUpErr
	}
	id := &gateway.Identity{UID: "uid-" + email, Email: email}
	s.Set(id)
	return id, nil
}

func (s *AuthSession) SignIn(_ context.Context, email, _ string) (*gateway.Identity, error) {
	s.record("signin")
	if s.SignInErr != nil {
		return nil, s.SignInErr
	}
	id := &gateway.Identity{UID: "uid-" + email, Email: email}
	s.Set(id)
	return id, nil
}

func (s *AuthSession) SignOut(context.Context) error {
	s.record("signout")
	if s.SignOutErr != nil {
		return s.SignOutErr
	}
	s.Set(nil)
	return nil
}

var _ gateway.AuthSession = (*AuthSession)(nil)
