// Package workspace is the per-browser state of the application: one session
// controller, the project and receipt registries, and the ephemeral input
// state of the forms. All of it lives on one event loop.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/eventloop"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
	projdomain "github.com/GoSim-25-26J-441/obras/internal/projects/domain"
	projrepo "github.com/GoSim-25-26J-441/obras/internal/projects/repository"
	projsvc "github.com/GoSim-25-26J-441/obras/internal/projects/service"
	recdomain "github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
	recrepo "github.com/GoSim-25-26J-441/obras/internal/receipts/repository"
	recsvc "github.com/GoSim-25-26J-441/obras/internal/receipts/service"
	"github.com/GoSim-25-26J-441/obras/internal/session"
)

// MsgProjectNotFound labels a receipt whose project no longer exists.
const MsgProjectNotFound = "Obra não encontrada"

type AuthMode string

const (
	ModeLogin  AuthMode = "login"
	ModeSignup AuthMode = "signup"
)

// Deps are the process-wide services every workspace shares.
type Deps struct {
	Backend *gateway.Backend
	Watch   livequery.Options
	Now     func() time.Time
}

type Workspace struct {
	ID string

	loop     *eventloop.Loop
	session  *session.Controller
	projects *projsvc.Registry
	receipts *recsvc.Registry
	log      *logging.Logger

	lastSeen  atomic.Int64
	closeOnce sync.Once

	lmu       sync.Mutex
	nextKey   int
	listeners map[int]func()

	// owned by the loop
	mode     AuthMode
	email    string
	form     projdomain.Form
	selected string
	banner   string
}

func New(id string, deps Deps) *Workspace {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	w := &Workspace{
		ID:        id,
		loop:      eventloop.New(),
		log:       logging.New("workspace").With(id),
		listeners: make(map[int]func()),
		mode:      ModeLogin,
	}
	w.lastSeen.Store(now().UnixNano())

	b := deps.Backend
	w.session = session.New(w.loop, b.Auth.NewSession(), logging.New("session").With(id))
	w.projects = projsvc.NewRegistry(w.loop, projrepo.NewProjectRepository(b.Docs), projsvc.Options{
		Watch:    deps.Watch,
		Logger:   logging.New("projects").With(id),
		Now:      deps.Now,
		OnChange: w.notify,
	})
	w.receipts = recsvc.NewRegistry(w.loop, recrepo.NewReceiptRepository(b.Docs, b.Blobs), recsvc.Options{
		Watch:    deps.Watch,
		Logger:   logging.New("receipts").With(id),
		Now:      deps.Now,
		OnChange: w.notify,
	})

	w.session.OnChange(func(prev, next *gateway.Identity) {
		owner := ""
		if next != nil {
			owner = next.UID
		}
		w.form = projdomain.Form{}
		w.selected = ""
		w.projects.Subscribe(owner)
		w.receipts.Subscribe(owner)
		w.notify()
	})
	w.session.Start()
	return w
}

// OnChange registers fn to be called whenever the view may have changed.
// fn runs on the event loop and must not block.
func (w *Workspace) OnChange(fn func()) (cancel func()) {
	w.lmu.Lock()
	key := w.nextKey
	w.nextKey++
	w.listeners[key] = fn
	w.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.lmu.Lock()
			delete(w.listeners, key)
			w.lmu.Unlock()
		})
	}
}

// Watchers reports how many change listeners are registered.
func (w *Workspace) Watchers() int {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	return len(w.listeners)
}

func (w *Workspace) notify() {
	w.lmu.Lock()
	fns := make([]func(), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Touch records activity at t.
func (w *Workspace) Touch(t time.Time) {
	w.lastSeen.Store(t.UnixNano())
}

func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// Ready is closed once the initial session check has completed.
func (w *Workspace) Ready() <-chan struct{} {
	return w.session.Ready()
}

func (w *Workspace) do(ctx context.Context, fn func()) error {
	return w.loop.Do(ctx, fn)
}

// act clears the banner, runs fn and shows its failure message, if any.
func (w *Workspace) act(ctx context.Context, fn func() error) error {
	if err := w.do(ctx, func() {
		if w.banner != "" {
			w.banner = ""
			w.notify()
		}
	}); err != nil {
		return err
	}

	err := fn()
	if err != nil {
		msg := apperr.Message(err)
		_ = w.do(context.Background(), func() {
			w.banner = msg
			w.notify()
		})
	}
	return err
}

func (w *Workspace) SetAuthMode(ctx context.Context, mode AuthMode) error {
	if mode != ModeSignup {
		mode = ModeLogin
	}
	return w.do(ctx, func() {
		w.mode = mode
		w.banner = ""
		w.notify()
	})
}

func (w *Workspace) SignIn(ctx context.Context, email, password string) error {
	return w.act(ctx, func() error {
		_ = w.do(ctx, func() { w.email = email })
		return w.session.SignIn(ctx, email, password)
	})
}

func (w *Workspace) SignUp(ctx context.Context, email, password string) error {
	return w.act(ctx, func() error {
		_ = w.do(ctx, func() { w.email = email })
		return w.session.SignUp(ctx, email, password)
	})
}

func (w *Workspace) SignOut(ctx context.Context) error {
	return w.act(ctx, func() error {
		return w.session.SignOut(ctx)
	})
}

// SaveProject keeps the submitted text in the form and clears it on success.
func (w *Workspace) SaveProject(ctx context.Context, form projdomain.Form) error {
	return w.act(ctx, func() error {
		_ = w.do(ctx, func() { w.form = form })
		if err := w.projects.Save(ctx, form); err != nil {
			return err
		}
		return w.do(ctx, func() {
			w.form = projdomain.Form{}
			w.notify()
		})
	})
}

func (w *Workspace) EditProject(ctx context.Context, id string) error {
	return w.act(ctx, func() error {
		var err error
		if derr := w.do(ctx, func() {
			var form projdomain.Form
			form, err = w.projects.BeginEdit(id)
			if err == nil {
				w.form = form
				w.notify()
			}
		}); derr != nil {
			return derr
		}
		if err != nil {
			return apperr.Validation(MsgProjectNotFound)
		}
		return nil
	})
}

func (w *Workspace) CancelEdit(ctx context.Context) error {
	return w.act(ctx, func() error {
		return w.do(ctx, func() {
			w.projects.CancelEdit()
			w.form = projdomain.Form{}
			w.notify()
		})
	})
}

// DeleteProject does nothing unless confirmed.
func (w *Workspace) DeleteProject(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return nil
	}
	return w.act(ctx, func() error {
		var wasEditing bool
		_ = w.do(ctx, func() { wasEditing = w.projects.EditingID() == id })
		if err := w.projects.Delete(ctx, id, true); err != nil {
			return err
		}
		if wasEditing {
			return w.do(ctx, func() {
				w.form = projdomain.Form{}
				w.notify()
			})
		}
		return nil
	})
}

// UploadReceipt keeps the chosen project selected when the upload fails.
func (w *Workspace) UploadReceipt(ctx context.Context, file *recdomain.File, projectID string) error {
	return w.act(ctx, func() error {
		_ = w.do(ctx, func() { w.selected = projectID })
		if err := w.receipts.Upload(ctx, file, projectID); err != nil {
			return err
		}
		return w.do(ctx, func() {
			w.selected = ""
			w.notify()
		})
	})
}

// DeleteReceipt does nothing unless confirmed.
func (w *Workspace) DeleteReceipt(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return nil
	}
	return w.act(ctx, func() error {
		return w.receipts.Delete(ctx, id, true)
	})
}

// Close releases every subscription and stops the loop. It is idempotent.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		_ = w.do(context.Background(), func() {
			w.session.Close()
			w.projects.Close()
			w.receipts.Close()
		})
		w.loop.Close()
		w.lmu.Lock()
		w.listeners = make(map[int]func())
		w.lmu.Unlock()
	})
}
