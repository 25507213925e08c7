/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/rag-assistant/handler"
	"github.com/tieubaoca/rag-assistant/service"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API. Without a generation key the server still starts
and /health reports the degraded state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, false)
		if err != nil {
			return exitError(err)
		}
		defer a.Close()

		if _, err := a.embedder.Load(); err != nil {
			a.logger.Warn("embedding model unavailable", zap.Error(err))
		}
		if created, err := a.rag.EnsureCollection(ctx); err != nil {
			a.logger.Warn("could not ensure collection", zap.String("collection", a.cfg.Collection), zap.Error(err))
		} else if created {
			a.logger.Info("collection created", zap.String("collection", a.cfg.Collection))
		}
		if a.cfg.Auth.AdminSecret == "" {
			a.logger.Warn("JWT_SECRET_ADMIN is not set, write routes are unauthenticated")
		}

		if !a.cfg.Log.Development {
			gin.SetMode(gin.ReleaseMode)
		}
		router := handler.NewRouter(handler.RouterConfig{
			RAGService:     a.rag,
			FileService:    service.NewFileService(a.cfg.UploadDir, a.rag, a.logger.Named("upload")),
			UploadDir:      a.cfg.UploadDir,
			AdminSecret:    a.cfg.Auth.AdminSecret,
			AllowedOrigins: a.cfg.CORS.AllowedOrigins,
			Gatherer:       a.registry,
			Logger:         a.logger.Named("http"),
		})

		srv := &http.Server{
			Addr:    ":" + a.cfg.Port,
			Handler: router,
		}
		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("starting server", zap.String("port", a.cfg.Port), zap.String("vector_store", a.cfg.VectorStore))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}
