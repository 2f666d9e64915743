package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	Backend    string    `json:"backend"`
	DB         string    `json:"db,omitempty"`
	Workspaces int       `json:"workspaces"`
}

type HealthHandler struct {
	serviceName string
	version     string
	backend     string
	db          *pgxpool.Pool
	workspaces  func() int
}

// NewHealthHandler reports on the backend named backend. db is only set for
// the postgres backend; workspaces may be nil.
func NewHealthHandler(serviceName, version, backend string, db *pgxpool.Pool, workspaces func() int) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		backend:     backend,
		db:          db,
		workspaces:  workspaces,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	dbStatus := "disabled"
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.db.Ping(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "up"
		}
	}

	open := 0
	if h.workspaces != nil {
		open = h.workspaces()
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Service:    h.serviceName,
		Version:    h.version,
		Backend:    h.backend,
		DB:         dbStatus,
		Workspaces: open,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
