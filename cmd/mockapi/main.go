// Package main runs the fake media API for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediaclient/config"
	"mediaclient/internal/logging"
	"mediaclient/internal/server"
)

func main() {
	addr := flag.String("addr", ":8089", "listen address")
	partnerID := flag.Int64("partner-id", 100, "partner the fake API serves")
	secret := flag.String("secret", os.Getenv("MOCKAPI_SECRET"), "admin secret; when set, calls need a started session")
	nested := flag.Bool("nested", false, "wrap responses in result/error envelopes")
	uploadDelay := flag.Duration("upload-delay", 0, "delay added to every upload transfer")
	metrics := flag.Bool("metrics", true, "expose Prometheus metrics")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	slog.SetDefault(logging.New(config.LoggingConfig{Level: *logLevel, Format: logging.FormatAuto}))

	if *secret == "" {
		slog.Warn("no secret configured - every call is accepted without a session")
	}

	srv := server.New(&server.Config{
		PartnerID:       *partnerID,
		Secret:          *secret,
		NestedResponses: *nested,
		UploadDelay:     *uploadDelay,
		MetricsEnabled:  *metrics,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting fake media api", "address", *addr, "partner_id", *partnerID)

	if err := srv.Start(*addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
