package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/metrics"
	chiTransport "github.com/kailas-cloud/solango/internal/transport/chi"
	replayuc "github.com/kailas-cloud/solango/internal/usecase/replay"
	"github.com/kailas-cloud/solango/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var replayEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP server",
		Long: `Run the ops HTTP server exposing /health, /metrics, /search,
/deferred, /deferred/replay and /reindex/{type}.

With --replay-every the deferred queue is drained periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a, replayEvery)
		},
	}

	cmd.Flags().DurationVar(&replayEvery, "replay-every", 0, "Drain the deferred queue at this interval (0 disables)")
	return cmd
}

func runServe(ctx context.Context, a *app, replayEvery time.Duration) error {
	logger := a.logger
	logger.Info("Starting solango ops server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
		zap.String("update_url", a.cfg.Backend.UpdateURL),
		zap.String("deferred_backend", a.cfg.Deferred.Backend),
		zap.Strings("types", a.schemas.Keys()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterBackendMetrics()
	metrics.RegisterHTTPMetrics()

	indexing, err := a.indexing(ctx)
	if err != nil {
		return err
	}
	replay, err := a.replay(ctx)
	if err != nil {
		return err
	}
	search, err := a.search()
	if err != nil {
		return err
	}
	health, err := a.health(ctx)
	if err != nil {
		return err
	}

	server := chiTransport.NewServer(indexing, replay, search, health, logger).
		WithWorkers(a.cfg.Index.Workers)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	if replayEvery > 0 {
		go replayLoop(ctx, replay, replayEvery, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func replayLoop(ctx context.Context, replay *replayuc.Service, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := replay.Drain(ctx)
			switch {
			case errors.Is(err, domain.ErrDrainInProgress):
				logger.Debug("Replay skipped, another drain holds the lease")
			case err != nil:
				logger.Warn("Periodic replay failed", zap.Error(err))
			case rep.Replayed+rep.Failed+rep.Superseded > 0:
				logger.Info("Periodic replay",
					zap.Int("replayed", rep.Replayed),
					zap.Int("failed", rep.Failed),
					zap.Int("superseded", rep.Superseded),
				)
			}
		}
	}
}
