package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/obras/config"
	"github.com/GoSim-25-26J-441/obras/internal/bootstrap"
	"github.com/GoSim-25-26J-441/obras/internal/livequery"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
	"github.com/GoSim-25-26J-441/obras/internal/web"
	"github.com/GoSim-25-26J-441/obras/internal/workspace"
)

const serviceName = "obras"

func newServeCmd(loadCfg loadFunc) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(loadCfg)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "how long to wait for in-flight requests on shutdown")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, shutdownTimeout time.Duration) error {
	log := logging.New("server")
	bootstrap.SetGinMode(cfg.App.Environment)

	opened, err := bootstrap.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		if err := opened.Backend.Close(); err != nil {
			log.LogError("close_backend", err)
		}
	}()

	if cfg.Session.Secret == "" {
		log.LogWarn("config", "SESSION_SECRET is not set; workspace cookies will not survive a restart")
	}
	signer, err := web.NewCookieSigner(cfg.Session.Secret)
	if err != nil {
		return err
	}

	manager := workspace.NewManager(workspace.Deps{
		Backend: opened.Backend,
		Watch: livequery.Options{
			MinBackoff: cfg.Watch.MinBackoff,
			MaxBackoff: cfg.Watch.MaxBackoff,
		},
	}, cfg.Session.IdleTimeout)
	defer manager.CloseAll()

	limiter := web.NewIPLimiter(cfg.Server.AuthRatePerMinute)

	router, handler, err := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:  serviceName,
		Version:      cfg.App.Version,
		Backend:      opened.Backend,
		DB:           opened.DB,
		Manager:      manager,
		Signer:       signer,
		Limiter:      limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		SecureCookie: strings.HasPrefix(cfg.Server.PublicURL, "https://"),
	})
	if err != nil {
		return err
	}

	sched := bootstrap.NewScheduler(manager, limiter, cfg.Session.IdleTimeout)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.LogInfof("start", "listening on :%s env=%s backend=%s blobs=%s", cfg.Server.Port, cfg.App.Environment, opened.Backend.Name, cfg.Backend.BlobKind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.LogInfo("shutdown", "stopping")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections.
	if err := handler.Close(); err != nil {
		log.LogError("close_sockets", err)
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
