// Package service holds a workspace's project registry: the live cache of
// the signed-in user's projects and the project being edited.
//
// Subscribe, BeginEdit, CancelEdit, the accessors and Close must run on the
// workspace event loop. Save and Delete are called from request goroutines;
// they read state through the loop and talk to the backend off it.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/eventloop"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
	"github.com/GoSim-25-26J-441/obras/internal/projects/domain"
	"github.com/GoSim-25-26J-441/obras/internal/projects/repository"
)

const (
	MsgSaveFailed      = "Não foi possível salvar a obra. Tente novamente."
	MsgSaveSignedOut   = "Você precisa estar logado para salvar obras."
	MsgDeleteFailed    = "Não foi possível deletar a obra."
	MsgDeleteSignedOut = "Você precisa estar logado para deletar obras."
	MsgConfirmDelete   = "Tem certeza que deseja excluir esta obra?"
)

var ErrUnknownProject = errors.New("project not in cache")

type Options struct {
	Watch    livequery.Options
	Logger   *logging.Logger
	Now      func() time.Time
	OnChange func()
}

type Registry struct {
	loop     *eventloop.Loop
	repo     *repository.ProjectRepository
	watch    livequery.Options
	log      *logging.Logger
	now      func() time.Time
	onChange func()

	// owned by the loop
	owner    string
	gen      uint64
	handle   *livequery.Handle
	projects []domain.Project
	editing  string
	status   livequery.Status
}

func NewRegistry(loop *eventloop.Loop, repo *repository.ProjectRepository, opts Options) *Registry {
	r := &Registry{
		loop:     loop,
		repo:     repo,
		watch:    opts.Watch,
		log:      opts.Logger,
		now:      opts.Now,
		onChange: opts.OnChange,
		status:   livequery.Stopped,
	}
	if r.log == nil {
		r.log = logging.New("projects")
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.watch.Logger == nil {
		r.watch.Logger = r.log
	}
	return r
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Subscribe follows ownerID's projects, replacing any previous watch. An
// empty owner clears the cache and holds no watch.
func (r *Registry) Subscribe(ownerID string) {
	r.stopWatch()
	r.gen++
	r.owner = ownerID
	r.projects = nil
	r.editing = ""
	r.status = livequery.Stopped

	if ownerID == "" {
		r.changed()
		return
	}

	gen := r.gen
	r.status = livequery.Connecting
	r.handle = r.repo.Follow(ownerID, func(ps []domain.Project) {
		r.loop.Post(func() {
			if r.gen != gen {
				return
			}
			r.projects = ps
			r.changed()
		})
	}, func(s livequery.Status) {
		r.loop.Post(func() {
			if r.gen != gen || r.status == s {
				return
			}
			r.status = s
			r.changed()
		})
	}, r.watch)
	r.changed()
}

func (r *Registry) stopWatch() {
	if r.handle != nil {
		r.handle.Stop()
		r.handle = nil
	}
}

// Close releases the watch. The registry stays usable as an empty cache.
func (r *Registry) Close() {
	r.stopWatch()
	r.gen++
	r.owner = ""
	r.projects = nil
	r.status = livequery.Stopped
}

// BeginEdit makes id the editing target and returns its values for the form.
func (r *Registry) BeginEdit(id string) (domain.Form, error) {
	p, ok := r.Lookup(id)
	if !ok {
		return domain.Form{}, ErrUnknownProject
	}
	r.editing = id
	r.changed()
	return p.Form(), nil
}

func (r *Registry) CancelEdit() {
	if r.editing == "" {
		return
	}
	r.editing = ""
	r.changed()
}

func (r *Registry) Projects() []domain.Project {
	return r.projects
}

func (r *Registry) EditingID() string {
	return r.editing
}

func (r *Registry) Status() livequery.Status {
	return r.status
}

func (r *Registry) Lookup(id string) (domain.Project, bool) {
	for _, p := range r.projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// Save creates a project, or updates the editing target when one is set.
// The cache is not touched; it changes with the next watch notification.
func (r *Registry) Save(ctx context.Context, form domain.Form) error {
	in, err := form.Validate()
	if err != nil {
		return err
	}

	var owner, editing string
	if err := r.loop.Do(ctx, func() { owner, editing = r.owner, r.editing }); err != nil {
		return apperr.Write(MsgSaveFailed, err)
	}
	if owner == "" {
		return apperr.Auth(MsgSaveSignedOut, nil)
	}

	now := r.now()
	if editing != "" {
		err = r.repo.Update(ctx, owner, editing, in, now)
	} else {
		_, err = r.repo.Create(ctx, owner, in, now)
	}
	if err != nil {
		r.log.LogError("save", err)
		return apperr.Write(MsgSaveFailed, err)
	}

	if editing != "" {
		_ = r.loop.Do(ctx, func() {
			if r.owner == owner && r.editing == editing {
				r.editing = ""
				r.changed()
			}
		})
	}
	return nil
}

// Delete removes project id. Nothing happens unless confirmed.
func (r *Registry) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return nil
	}

	var owner string
	if err := r.loop.Do(ctx, func() { owner = r.owner }); err != nil {
		return apperr.Write(MsgDeleteFailed, err)
	}
	if owner == "" {
		return apperr.Auth(MsgDeleteSignedOut, nil)
	}

	if err := r.repo.Delete(ctx, owner, id); err != nil {
		r.log.LogError("delete", err)
		return apperr.Write(MsgDeleteFailed, err)
	}

	_ = r.loop.Do(ctx, func() {
		if r.owner == owner && r.editing == id {
			r.editing = ""
			r.changed()
		}
	})
	return nil
}
