package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogFile)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	oteltrace.InstallPropagator()
	counters, histograms := prometrics.New(prometheus.DefaultRegisterer, "").RegisterDefaults()
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), zaplogger.New(baseLogger), counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, tel)
	if err != nil {
		systemLogger.Fatal("startup_failed", zap.Error(err))
	}
	app.start(ctx)

	deps := app.httpDeps
	deps.JWTKey = cfg.JWTKey
	deps.PaymentAPIKey = cfg.PaymentAPIKey
	deps.WebhookToken = cfg.WebhookToken
	deps.WebhookRateLimit = cfg.WebhookRateLimit
	deps.RequestTimeout = cfg.RequestTimeout
	deps.Metrics = promhttp.Handler()
	handler := httppresentation.NewHandler(deps, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.Strings("services", app.services),
			zap.String("bus", cfg.Bus),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	app.stop(shutdownCtx)
}
