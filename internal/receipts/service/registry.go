// Package service holds a workspace's receipt registry: the live cache of
// uploaded receipts and the upload in progress.
//
// Subscribe, the accessors and Close run on the workspace event loop;
// Upload and Delete are called from request goroutines.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/obras/internal/apperr"
	"github.com/GoSim-25-26J-441/obras/internal/eventloop"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
	"github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
	"github.com/GoSim-25-26J-441/obras/internal/receipts/repository"
)

const (
	MsgSelectBoth      = "Selecione uma obra e um arquivo para upload."
	MsgUploadBusy      = "Já existe um upload em andamento."
	MsgUploadFailed    = "Falha no upload do recibo. Tente novamente."
	MsgUploadSignedOut = "Você precisa estar logado para enviar recibos."
	MsgDeleteFailed    = "Não foi possível deletar o recibo."
	MsgDeleteSignedOut = "Você precisa estar logado para deletar recibos."
	MsgConfirmDelete   = "Tem certeza que deseja excluir este recibo?"
)

type Options struct {
	Watch    livequery.Options
	Logger   *logging.Logger
	Now      func() time.Time
	OnChange func()
}

type Registry struct {
	loop     *eventloop.Loop
	repo     *repository.ReceiptRepository
	watch    livequery.Options
	log      *logging.Logger
	now      func() time.Time
	onChange func()

	// owned by the loop
	owner     string
	gen       uint64
	handle    *livequery.Handle
	receipts  []domain.Receipt
	uploading bool
	status    livequery.Status
}

func NewRegistry(loop *eventloop.Loop, repo *repository.ReceiptRepository, opts Options) *Registry {
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
		r.log = logging.New("receipts")
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

// Subscribe follows ownerID's receipts, replacing any previous watch. An
// empty owner clears the cache and holds no watch.
func (r *Registry) Subscribe(ownerID string) {
	r.stopWatch()
	r.gen++
	r.owner = ownerID
	r.receipts = nil
	r.status = livequery.Stopped

	if ownerID == "" {
		r.changed()
		return
	}

	gen := r.gen
	r.status = livequery.Connecting
	r.handle = r.repo.Follow(ownerID, func(rs []domain.Receipt) {
		r.loop.Post(func() {
			if r.gen != gen {
				return
			}
			r.receipts = rs
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

func (r *Registry) Close() {
	r.stopWatch()
	r.gen++
	r.owner = ""
	r.receipts = nil
	r.status = livequery.Stopped
}

func (r *Registry) Receipts() []domain.Receipt {
	return r.receipts
}

// Uploading reports whether an upload is in flight.
func (r *Registry) Uploading() bool {
	return r.uploading
}

func (r *Registry) Status() livequery.Status {
	return r.status
}

// Upload stores file, resolves its URL and then writes the metadata record
// linking it to projectID. A failure before the record is written leaves no
// record behind; a file stored before a failed record write is left as is.
func (r *Registry) Upload(ctx context.Context, file *domain.File, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if file == nil || file.Content == nil || file.Name == "" || projectID == "" {
		return apperr.Validation(MsgSelectBoth)
	}

	var owner string
	var busy bool
	if err := r.loop.Do(ctx, func() {
		owner = r.owner
		if owner == "" {
			return
		}
		if r.uploading {
			busy = true
			return
		}
		r.uploading = true
		r.changed()
	}); err != nil {
		return apperr.Write(MsgUploadFailed, err)
	}
	if owner == "" {
		return apperr.Auth(MsgUploadSignedOut, nil)
	}
	if busy {
		return apperr.Validation(MsgUploadBusy)
	}

	defer func() {
		_ = r.loop.Do(context.Background(), func() {
			r.uploading = false
			r.changed()
		})
	}()

	now := r.now()
	url, err := r.repo.StoreFile(ctx, domain.BlobKey(owner, now, file.Name), *file)
	if err != nil {
		r.log.LogError("upload", err)
		return apperr.Write(MsgUploadFailed, err)
	}
	if _, err := r.repo.CreateRecord(ctx, owner, projectID, url, file.Name, now); err != nil {
		r.log.LogErrorf("upload", "orphaned_blob=%s error=%v", url, err)
		return apperr.Write(MsgUploadFailed, err)
	}
	return nil
}

// Delete removes the metadata record of receipt id. Nothing happens unless
// confirmed.
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
	return nil
}
