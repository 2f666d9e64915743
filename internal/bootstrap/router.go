package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	httpapi "github.com/GoSim-25-26J-441/obras/internal/api/http"
	"github.com/GoSim-25-26J-441/obras/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/obras/internal/gateway"
	"github.com/GoSim-25-26J-441/obras/internal/web"
	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

type RouterDeps struct {
	ServiceName  string
	Version      string
	Backend      *gateway.Backend
	DB           *pgxpool.Pool
	Manager      *workspace.Manager
	Signer       *web.CookieSigner
	Limiter      *web.IPLimiter
	CORSOrigins  []string
	SecureCookie bool
}

// BuildRouter returns the engine and the web handler, whose sockets must be
// closed on shutdown.
func BuildRouter(dep RouterDeps) (*gin.Engine, *web.Handler, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.MaxMultipartMemory = 8 << 20

	if len(dep.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     dep.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Backend.Name, dep.DB, dep.Manager.Len)
	healthHandler.RegisterRoutes(r)

	h := web.NewHandler(web.Options{
		Manager:      dep.Manager,
		Signer:       dep.Signer,
		Blobs:        dep.Backend.Blobs,
		Limiter:      dep.Limiter,
		SecureCookie: dep.SecureCookie,
	})
	if err := h.Register(r); err != nil {
		return nil, nil, err
	}

	return r, h, nil
}
