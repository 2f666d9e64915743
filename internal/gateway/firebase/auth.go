package firebase

import (
	"context"
	"errors"
	"strings"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
)

// adminClient is the part of *auth.Client the sessions use.
type adminClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// passwordVerifier exchanges an email/password pair for an ID token. The
// Admin SDK cannot do this, so it goes through the Identity Toolkit API.
type passwordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (idToken string, err error)
}

type toolkitVerifier struct {
	svc *identitytoolkit.Service
}

func (v *toolkitVerifier) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	resp, err := v.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.IdToken, nil
}

type Auth struct {
	admin    adminClient
	verifier passwordVerifier
}

func NewAuth(admin adminClient, verifier passwordVerifier) *Auth {
	return &Auth{admin: admin, verifier: verifier}
}

func (a *Auth) NewSession() gateway.AuthSession {
	return &session{auth: a}
}

type session struct {
	gateway.IdentityState
	auth *Auth
}

func (s *session) SignUp(ctx context.Context, email, password string) (*gateway.Identity, error) {
	rec, err := s.auth.admin.CreateUser(ctx, (&auth.UserToCreate{}).Email(strings.TrimSpace(email)).Password(password))
	if err != nil {
		return nil, gateway.NewAuthError(signUpCode(err), err)
	}
	id := &gateway.Identity{UID: rec.UID, Email: rec.Email}
	s.Set(id)
	return id, nil
}

func (s *session) SignIn(ctx context.Context, email, password string) (*gateway.Identity, error) {
	idToken, err := s.auth.verifier.VerifyPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, gateway.NewAuthError(toolkitCode(err), err)
	}
	tok, err := s.auth.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, gateway.NewAuthError(gateway.CodeUnknown, err)
	}

	id := &gateway.Identity{UID: tok.UID, Email: strings.TrimSpace(email)}
	if claim, ok := tok.Claims["email"].(string); ok && claim != "" {
		id.Email = claim
	}
	s.Set(id)
	return id, nil
}

// SignOut only forgets the session; server-side ID tokens are never stored.
func (s *session) SignOut(context.Context) error {
	s.Set(nil)
	return nil
}

// signUpCode classifies CreateUser failures. The Admin SDK validates email
// and password locally and returns plain errors for those.
func signUpCode(err error) gateway.AuthCode {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return gateway.CodeEmailInUse
	case auth.IsInvalidEmail(err):
		return gateway.CodeInvalidEmail
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "password must be"):
		return gateway.CodeWeakPassword
	case strings.Contains(msg, "malformed email"), strings.Contains(msg, "email must be"):
		return gateway.CodeInvalidEmail
	}
	return gateway.CodeUnknown
}

// toolkitCode maps Identity Toolkit error messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func toolkitCode(err error) gateway.AuthCode {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return gateway.CodeUnknown
	}
	reason := gerr.Message
	if i := strings.IndexAny(reason, " :"); i >= 0 {
		reason = reason[:i]
	}
	switch reason {
	case "EMAIL_EXISTS":
		return gateway.CodeEmailInUse
	case "WEAK_PASSWORD":
		return gateway.CodeWeakPassword
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return gateway.CodeInvalidEmail
	case "INVALID_PASSWORD", "MISSING_PASSWORD":
		return gateway.CodeWrongPassword
	case "EMAIL_NOT_FOUND":
		return gateway.CodeUserNotFound
	case "INVALID_LOGIN_CREDENTIALS":
		return gateway.CodeInvalidCredential
	}
	return gateway.CodeUnknown
}

var _ gateway.Auth = (*Auth)(nil)
