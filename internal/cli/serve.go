package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/syy-ex/hair-makeover/internal/api"
	"github.com/syy-ex/hair-makeover/internal/app"
	"github.com/syy-ex/hair-makeover/internal/services"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	reapInterval    = 10 * time.Minute
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("debug", false, "Run gin in debug mode")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if debug, _ := cmd.Flags().GetBool("debug"); !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(cfg, a.Services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		reapSessions(groupCtx, a.Services.Auth, reapInterval)
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		logger.Log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Server Shutdown Failed", zap.Error(err))
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Log.Info("Server exiting")
	return nil
}

// reapSessions deletes expired sessions every interval until ctx is done.
func reapSessions(ctx context.Context, auth *services.AuthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.ReapExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Log.Warn("Failed to reap expired sessions", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				logger.Log.Info("Expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
