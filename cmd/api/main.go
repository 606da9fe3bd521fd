package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/greeter/internal/api"
	"github.com/your-org/greeter/internal/api/ws"
	"github.com/your-org/greeter/internal/bus"
	"github.com/your-org/greeter/internal/config"
	"github.com/your-org/greeter/internal/greet"
	"github.com/your-org/greeter/internal/notify"
	"github.com/your-org/greeter/internal/observability"
	"github.com/your-org/greeter/internal/recognize"
	"github.com/your-org/greeter/internal/storage"
	"github.com/your-org/greeter/internal/vision"
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

	slog.Info("starting robot greeter service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	images, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := images.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to the device bus
	busClient, err := bus.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Notification fanout: dashboard clients + robot fleet
	fanout := notify.NewFanout()
	fanout.Register(notify.NewWSSink(hub))
	fanout.Register(notify.NewBusSink(busClient))

	// Face detector: ONNX models when configured, stub otherwise
	var detector recognize.Detector = recognize.StubDetector{}
	if cfg.Vision.ModelsDir != "" {
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Warn("onnx runtime init failed, using stub detector", "error", err)
		} else {
			engine, err := vision.NewEngine(cfg.Vision)
			if err != nil {
				slog.Warn("vision engine init failed, using stub detector", "error", err)
			} else {
				detector = engine
				defer engine.Close()
				defer ort.DestroyEnvironment()
				slog.Info("vision engine ready")
			}
		}
	}

	matcher := recognize.NewRemoteMatcher(cfg.Matcher)
	greetSvc := greet.NewService(db)
	workflow := recognize.NewWorkflow(detector, matcher, db, images, fanout, storage.VisitorImageKey)

	// Dashboard clients can identify visitors over the real-time channel.
	hub.Identify = func(ctx context.Context, visitorID int64, name string) (string, error) {
		sanitized := greet.Sanitize(name, greet.MaxVisitorNameLen)
		if sanitized == "" {
			return "", greet.ErrNameRequired
		}
		if err := db.SetVisitorName(ctx, visitorID, sanitized); err != nil {
			return "", err
		}
		return sanitized, nil
	}

	// Relay inbound device messages to dashboard clients.
	err = busClient.SubscribeStatus(func(deviceID string, payload json.RawMessage) {
		fanout.RobotStatusUpdate(context.Background(), deviceID, payload)
	})
	if err != nil {
		slog.Warn("subscribe device status", "error", err)
	}
	err = busClient.SubscribeVisitorDetections(func(deviceID string, payload json.RawMessage) {
		fanout.HardwareDetection(context.Background(), deviceID, payload)
	})
	if err != nil {
		slog.Warn("subscribe visitor detections", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		WebDir:   cfg.Server.WebDir,
		DB:       db,
		Images:   images,
		Bus:      busClient,
		Greet:    greetSvc,
		Workflow: workflow,
		Fanout:   fanout,
		Hub:      hub,
	})

	// Start HTTP server
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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
