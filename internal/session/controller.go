// Package session tracks who is signed in to a workspace.
//
// The controller holds one identity subscription for its whole life. Each
// notification is applied on the workspace event loop; the first one marks
// the initial session check as complete.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/eventloop"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

const (
	MsgEmailInUse     = "O e-mail já está em uso. Tente fazer login."
	MsgWeakPassword   = "A senha é muito fraca. Use pelo menos 6 caracteres."
	MsgInvalidEmail   = "O e-mail é inválido."
	MsgBadCredentials = "E-mail ou senha incorretos."
	MsgGeneric        = apperr.GenericMessage
	MsgSignOutFailed  = "Erro ao sair. Tente novamente."
)

// Message maps an identity provider failure code to the text shown to the
// user. Wrong password and unknown account share one message.
func Message(code gateway.AuthCode) string {
	switch code {
	case gateway.CodeEmailInUse:
		return MsgEmailInUse
	case gateway.CodeWeakPassword:
		return MsgWeakPassword
	case gateway.CodeInvalidEmail:
		return MsgInvalidEmail
	case gateway.CodeWrongPassword, gateway.CodeUserNotFound, gateway.CodeInvalidCredential:
		return MsgBadCredentials
	default:
		return MsgGeneric
	}
}

// ChangeFunc is called on the loop when the signed-in user changes. The
// first notification is always delivered, even when both are nil.
type ChangeFunc func(prev, next *gateway.Identity)

type Controller struct {
	loop *eventloop.Loop
	auth gateway.AuthSession
	log  *logging.Logger

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}

	// owned by the loop
	identity  *gateway.Identity
	checked   bool
	listeners []ChangeFunc
	cancel    func()
}

func New(loop *eventloop.Loop, auth gateway.AuthSession, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.New("session")
	}
	return &Controller{
		loop:  loop,
		auth:  auth,
		log:   logger,
		ready: make(chan struct{}),
	}
}

// OnChange registers fn. Call it before Start.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.listeners = append(c.listeners, fn)
}

// Start registers the identity subscription. Later calls do nothing.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		cancel := c.auth.OnIdentityChange(func(id *gateway.Identity) {
			var next *gateway.Identity
			if id != nil {
				cp := *id
				next = &cp
			}
			c.loop.Post(func() { c.apply(next) })
		})
		c.loop.Post(func() { c.cancel = cancel })
	})
}

func (c *Controller) apply(next *gateway.Identity) {
	prev := c.identity
	first := !c.checked
	c.identity = next
	if first {
		c.checked = true
		c.readyOnce.Do(func() { close(c.ready) })
	}
	if !first && uid(prev) == uid(next) {
		return
	}
	c.log.LogInfof("identity", "uid=%s", uid(next))
	for _, fn := range c.listeners {
		fn(prev, next)
	}
}

func uid(id *gateway.Identity) string {
	if id == nil {
		return ""
	}
	return id.UID
}

// Identity returns the signed-in user or nil. Loop only.
func (c *Controller) Identity() *gateway.Identity {
	return c.identity
}

// Checked reports whether the first identity notification has arrived. Loop only.
func (c *Controller) Checked() bool {
	return c.checked
}

// Ready is closed after the first identity notification has been applied.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// SignUp creates an account and signs it in. The identity changes through
// the subscription, never here.
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	if _, err := c.auth.SignUp(ctx, strings.TrimSpace(email), password); err != nil {
		c.log.LogError("signup", err)
		return apperr.Auth(Message(gateway.CodeOf(err)), err)
	}
	return nil
}

func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	if _, err := c.auth.SignIn(ctx, strings.TrimSpace(email), password); err != nil {
		c.log.LogError("signin", err)
		return apperr.Auth(Message(gateway.CodeOf(err)), err)
	}
	return nil
}

func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.auth.SignOut(ctx); err != nil {
		c.log.LogError("signout", err)
		return apperr.Auth(MsgSignOutFailed, err)
	}
	return nil
}

// Close cancels the identity subscription. Loop only.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
