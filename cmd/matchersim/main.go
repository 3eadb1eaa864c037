package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/tracepipe/internal/config"
	"github.com/your-org/tracepipe/internal/matchersim"
	"github.com/your-org/tracepipe/internal/observability"
)

func main() {
	port := flag.Int("port", 9002, "listen port")
	modelPath := flag.String("model", "models/clothing-embedder.onnx", "path to ONNX clothing-appearance model")
	configPath := flag.String("config", "configs/matchersim.yaml", "path to config file (database section)")
	flag.Parse()

	observability.SetupLogger("info", "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init failed", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	embedder, err := matchersim.NewEmbedder(*modelPath)
	if err != nil {
		slog.Error("load embedder model", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	store, err := matchersim.NewStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	srv := matchersim.NewServer(embedder, store)
	addr := fmt.Sprintf(":%d", *port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("matchersim listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
