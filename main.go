package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-patch/pkg/cli"
	"github.com/ekaya-inc/ekaya-patch/pkg/handlers"
	"github.com/ekaya-inc/ekaya-patch/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Options{
		Version: Version,
		FS:      afero.NewOsFs(),
		Serve:   serve,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		cli.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, env *cli.Env) error {
	cfg, logger := env.Config, env.Logger

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("templates_dir", cfg.Templates.Dir),
		zap.String("output_dir", cfg.Output.Dir),
		zap.Int("write_retries", cfg.Output.WriteRetries),
		zap.Int("max_upload_mb", cfg.HTTP.MaxUploadMB),
		zap.Strings("allowed_origins", cfg.HTTP.AllowedOrigins),
		zap.Bool("enforce_required", cfg.Generation.EnforceRequired),
		zap.Bool("reject_injection", cfg.Generation.RejectInjection))

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, env.Service, logger).RegisterRoutes(mux)
	handlers.NewQueriesHandler(env.Service, logger).RegisterRoutes(mux)
	handlers.NewPatchHandler(env.Service, env.Store, cfg.HTTP.MaxUploadBytes(), logger).RegisterRoutes(mux)
	handlers.NewOpenAPIHandler(env.Service, cfg.Version, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.HTTP.AllowedOrigins)(handler)
	handler = middleware.RequestLogger(logger)(handler)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ekaya-patch",
			zap.String("addr", server.Addr),
			zap.Int("queries", env.Registry.Len()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
