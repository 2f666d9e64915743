// Package web is the browser surface: server-rendered pages, form posts that
// drive a workspace, and a websocket that tells the page to refresh.
package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

const (
	ctxWorkspace     = "workspace"
	defaultReadyWait = 2 * time.Second
	maxUploadBytes   = 20 << 20
)

type Options struct {
	Manager *workspace.Manager
	Signer  *CookieSigner
	// Blobs is served under /blobs when it implements gateway.BlobServer.
	Blobs   gateway.BlobStore
	Limiter *IPLimiter
	// SecureCookie marks the workspace cookie HTTPS-only.
	SecureCookie bool
	// ReadyWait bounds how long a page waits for the session check before
	// rendering the loading screen.
	ReadyWait time.Duration
}

type Handler struct {
	manager   *workspace.Manager
	signer    *CookieSigner
	blobs     gateway.BlobServer
	limiter   *IPLimiter
	hub       *Hub
	secure    bool
	readyWait time.Duration
	log       *logging.Logger
}

func NewHandler(opt Options) *Handler {
	h := &Handler{
		manager:   opt.Manager,
		signer:    opt.Signer,
		limiter:   opt.Limiter,
		hub:       NewHub(opt.Manager),
		secure:    opt.SecureCookie,
		readyWait: opt.ReadyWait,
		log:       logging.New("web"),
	}
	if bs, ok := opt.Blobs.(gateway.BlobServer); ok {
		h.blobs = bs
	}
	if h.limiter == nil {
		h.limiter = NewIPLimiter(0)
	}
	if h.readyWait <= 0 {
		h.readyWait = defaultReadyWait
	}
	return h
}

// Register installs the templates and every route on r.
func (h *Handler) Register(r *gin.Engine) error {
	tmpl, err := ParseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	page := r.Group("/", h.withWorkspace(true))
	page.GET("", h.index)

	auth := page.Group("/auth")
	auth.POST("/mode", h.setAuthMode)
	auth.POST("/signin", h.limiter.Middleware(), h.signIn)
	auth.POST("/signup", h.limiter.Middleware(), h.signUp)
	auth.POST("/signout", h.signOut)

	projects := page.Group("/projects")
	projects.POST("", h.saveProject)
	projects.POST("/cancel", h.cancelEdit)
	projects.POST("/:id/edit", h.editProject)
	projects.GET("/:id/delete", h.confirmDeleteProject)
	projects.POST("/:id/delete", h.deleteProject)

	receipts := page.Group("/receipts")
	receipts.POST("", h.uploadReceipt)
	receipts.GET("/:id/delete", h.confirmDeleteReceipt)
	receipts.POST("/:id/delete", h.deleteReceipt)

	existing := r.Group("/", h.withWorkspace(false))
	existing.GET("/live", h.live)
	existing.GET("/ws", h.socket)

	if h.blobs != nil {
		r.GET("/blobs/*key", h.blob)
	}
	return nil
}

// Close disconnects every websocket.
func (h *Handler) Close() error {
	return h.hub.Close()
}

// withWorkspace resolves the workspace named by the cookie. Without a valid
// one it creates a workspace when create is set and answers 401 otherwise.
func (h *Handler) withWorkspace(create bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if w := h.lookup(c); w != nil {
			c.Set(ctxWorkspace, w)
			c.Next()
			return
		}
		if !create {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		w := h.manager.Create()
		token, err := h.signer.Sign(w.ID)
		if err != nil {
			logging.FromContext(c, "web").LogError("cookie", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, token, int(cookieTTL/time.Second), "/", "", h.secure, true)
		c.Set(ctxWorkspace, w)
		c.Next()
	}
}

func (h *Handler) lookup(c *gin.Context) *workspace.Workspace {
	token, err := c.Cookie(cookieName)
	if err != nil || token == "" {
		return nil
	}
	id, err := h.signer.Parse(token)
	if err != nil {
		logging.FromContext(c, "web").LogDebugf("cookie", "error=%v", err)
		return nil
	}
	w, ok := h.manager.Get(id)
	if !ok {
		return nil
	}
	return w
}

func current(c *gin.Context) *workspace.Workspace {
	return c.MustGet(ctxWorkspace).(*workspace.Workspace)
}

func home(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}
