package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/tracepipe/internal/analysis"
	"github.com/your-org/tracepipe/internal/api"
	"github.com/your-org/tracepipe/internal/api/ws"
	"github.com/your-org/tracepipe/internal/config"
	"github.com/your-org/tracepipe/internal/detectclient"
	"github.com/your-org/tracepipe/internal/eventbus"
	"github.com/your-org/tracepipe/internal/matchclient"
	"github.com/your-org/tracepipe/internal/models"
	"github.com/your-org/tracepipe/internal/observability"
	"github.com/your-org/tracepipe/internal/pipeline"
	"github.com/your-org/tracepipe/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting tracepipe server", "port", cfg.Server.Port)

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	publisher, err := eventbus.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	if err := publisher.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	detector := detectclient.New(cfg.Detector.BaseURL, cfg.Pipeline.DetectionTimeout)
	matcher := matchclient.New(cfg.Matcher.BaseURL, cfg.Pipeline.MatchingTimeout)

	p := pipeline.New(detector, matcher, cfg.Pipeline)
	p.UploadCrop = func(analysisID, trackID string, crop models.Crop) (string, error) {
		key := fmt.Sprintf("crops/%s/%s.jpg", analysisID, trackID)
		buf, err := encodeCropJPEG(crop)
		if err != nil {
			return "", err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := minioStore.PutObject(ctx, key, buf, "image/jpeg"); err != nil {
			return "", err
		}
		return key, nil
	}

	registry := analysis.NewRegistry(p, publisher, hub)

	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		Registry:    registry,
		MinIO:       minioStore,
		Publisher:   publisher,
		Hub:         hub,
		FPSInterval: 1.0,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

func encodeCropJPEG(crop models.Crop) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pipeline.CropImage(&crop), &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
