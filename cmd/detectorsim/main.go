package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/tracepipe/internal/detectorsim"
	"github.com/your-org/tracepipe/internal/observability"
)

func main() {
	port := flag.Int("port", 9001, "listen port")
	modelPath := flag.String("model", "models/person-detector.onnx", "path to ONNX person-detection model")
	flag.Parse()

	observability.SetupLogger("info", "text")

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init failed", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	detector, err := detectorsim.NewDetector(*modelPath)
	if err != nil {
		slog.Error("load detector model", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	srv := detectorsim.NewServer(detector)
	addr := fmt.Sprintf(":%d", *port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("detectorsim listening", "addr", addr)
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
