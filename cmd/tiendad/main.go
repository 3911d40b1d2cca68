// Command tiendad runs the tienda engine as a long-lived process with a
// durable snapshot store, background insights and a read-only HTTP surface
// for health, metrics, dashboard figures and exports.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xraph/tienda"
	"github.com/xraph/tienda/advisor"
	audithook "github.com/xraph/tienda/audit_hook"
	"github.com/xraph/tienda/config"
	"github.com/xraph/tienda/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tiendad stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	metrics := observability.NewPrometheusFactory()
	opts := []tienda.Option{
		tienda.WithLogger(logger),
		tienda.WithAuditCapacity(cfg.AuditCapacity),
		tienda.WithPluginTimeout(cfg.PluginTimeout),
		tienda.WithPlugin(observability.NewMetricsExtension(metrics)),
		tienda.WithPlugin(audithook.New(logRecorder(logger), audithook.WithLogger(logger))),
	}
	if cfg.ResetOnCorrupt {
		opts = append(opts, tienda.WithResetOnCorrupt())
	}

	if cfg.InsightsEnabled() {
		gemini, err := advisor.NewGemini(ctx, cfg.GeminiAPIKey, advisor.WithModel(cfg.GeminiModel))
		if err != nil {
			_ = st.Close()
			return err
		}
		defer gemini.Close()
		opts = append(opts, tienda.WithAdvisor(gemini,
			advisor.WithTimeout(cfg.InsightsTimeout),
		))
	} else {
		logger.Info("insights disabled: no advisor key configured")
	}

	engine := tienda.New(st, opts...)
	if err := engine.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Warn("engine stop", slog.Any("error", err))
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(engine, st, metrics.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return engine.Flush(shutdownCtx)
}

// logRecorder writes forwarded audit events to the process log.
func logRecorder(logger *slog.Logger) audithook.RecorderFunc {
	return func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	}
}
