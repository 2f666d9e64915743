package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/obras/internal/logging"
	projdomain "github.com/GoSim-25-26J-441/obras/internal/projects/domain"
	projsvc "github.com/GoSim-25-26J-441/obras/internal/projects/service"
	recdomain "github.com/GoSim-25-26J-441/obras/internal/receipts/domain"
	recsvc "github.com/GoSim-25-26J-441/obras/internal/receipts/service"
	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

// view waits briefly for the session check and snapshots the workspace.
func (h *Handler) view(c *gin.Context) (workspace.View, bool) {
	w := current(c)
	ctx := c.Request.Context()

	t := time.NewTimer(h.readyWait)
	defer t.Stop()
	select {
	case <-w.Ready():
	case <-t.C:
	case <-ctx.Done():
	}

	v, err := w.View(ctx)
	if err != nil {
		logging.FromContext(c, "web").LogError("view", err)
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return workspace.View{}, false
	}
	c.Header("Cache-Control", "no-store")
	return v, true
}

func (h *Handler) index(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	if v.Checking {
		c.HTML(http.StatusOK, "loading.html", nil)
		return
	}
	c.HTML(http.StatusOK, "index.html", pageData{View: v})
}

// live renders the lists the websocket asks the page to refresh.
func (h *Handler) live(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	if !v.Authenticated {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.HTML(http.StatusOK, "live", pageData{View: v})
}

func (h *Handler) setAuthMode(c *gin.Context) {
	h.run(c, "auth_mode", func(ctx context.Context, w *workspace.Workspace) error {
		return w.SetAuthMode(ctx, workspace.AuthMode(c.PostForm("mode")))
	})
}

func (h *Handler) signIn(c *gin.Context) {
	h.run(c, "signin", func(ctx context.Context, w *workspace.Workspace) error {
		return w.SignIn(ctx, strings.TrimSpace(c.PostForm("email")), c.PostForm("password"))
	})
}

func (h *Handler) signUp(c *gin.Context) {
	h.run(c, "signup", func(ctx context.Context, w *workspace.Workspace) error {
		return w.SignUp(ctx, strings.TrimSpace(c.PostForm("email")), c.PostForm("password"))
	})
}

func (h *Handler) signOut(c *gin.Context) {
	h.run(c, "signout", func(ctx context.Context, w *workspace.Workspace) error {
		return w.SignOut(ctx)
	})
}

func (h *Handler) saveProject(c *gin.Context) {
	form := projdomain.Form{
		Nome:     c.PostForm("nome"),
		Valor:    c.PostForm("valor"),
		Servicos: c.PostForm("servicos"),
		Vales:    c.PostForm("vales"),
	}
	h.run(c, "save_project", func(ctx context.Context, w *workspace.Workspace) error {
		return w.SaveProject(ctx, form)
	})
}

func (h *Handler) editProject(c *gin.Context) {
	h.run(c, "edit_project", func(ctx context.Context, w *workspace.Workspace) error {
		return w.EditProject(ctx, c.Param("id"))
	})
}

func (h *Handler) cancelEdit(c *gin.Context) {
	h.run(c, "cancel_edit", func(ctx context.Context, w *workspace.Workspace) error {
		return w.CancelEdit(ctx)
	})
}

func (h *Handler) confirmDeleteProject(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	id := c.Param("id")
	for _, p := range v.Projects {
		if p.ID == id {
			c.HTML(http.StatusOK, "confirm.html", pageData{View: v, Confirm: &confirmData{
				Message: projsvc.MsgConfirmDelete,
				Subject: p.Nome,
				Action:  "/projects/" + id + "/delete",
			}})
			return
		}
	}
	home(c)
}

func (h *Handler) deleteProject(c *gin.Context) {
	confirmed := c.PostForm("confirm") == "1"
	h.run(c, "delete_project", func(ctx context.Context, w *workspace.Workspace) error {
		return w.DeleteProject(ctx, c.Param("id"), confirmed)
	})
}

func (h *Handler) uploadReceipt(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	projectID := c.PostForm("obra_id")

	var file *recdomain.File
	fh, err := c.FormFile("file")
	if err == nil {
		f, err := fh.Open()
		if err == nil {
			defer f.Close()
			file = &recdomain.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Content:     f,
			}
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		logging.FromContext(c, "web").LogWarnf("upload_receipt", "form_error=%v", err)
	}

	h.run(c, "upload_receipt", func(ctx context.Context, w *workspace.Workspace) error {
		return w.UploadReceipt(ctx, file, projectID)
	})
}

func (h *Handler) confirmDeleteReceipt(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	id := c.Param("id")
	for _, r := range v.Receipts {
		if r.ID == id {
			c.HTML(http.StatusOK, "confirm.html", pageData{View: v, Confirm: &confirmData{
				Message: recsvc.MsgConfirmDelete,
				Subject: r.Nome,
				Action:  "/receipts/" + id + "/delete",
			}})
			return
		}
	}
	home(c)
}

func (h *Handler) deleteReceipt(c *gin.Context) {
	confirmed := c.PostForm("confirm") == "1"
	h.run(c, "delete_receipt", func(ctx context.Context, w *workspace.Workspace) error {
		return w.DeleteReceipt(ctx, c.Param("id"), confirmed)
	})
}

func (h *Handler) socket(c *gin.Context) {
	w := current(c)
	if err := h.hub.Serve(c, w.ID); err != nil {
		logging.FromContext(c, "web").With(w.ID).LogWarnf("socket", "upgrade_error=%v", err)
	}
}

func (h *Handler) blob(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	data, contentType, ok := h.blobs.Open(key)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

// run performs a workspace action and redirects home. Failures are already
// on the workspace banner, so they are only logged here.
func (h *Handler) run(c *gin.Context, op string, fn func(context.Context, *workspace.Workspace) error) {
	w := current(c)
	if err := fn(c.Request.Context(), w); err != nil {
		logging.FromContext(c, "web").LogDebugf(op, "workspace=%s error=%v", w.ID, err)
	}
	home(c)
}
