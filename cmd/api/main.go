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
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/imaging"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/notify"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/recognize"
	"github.com/your-org/presence/internal/session"
	"github.com/your-org/presence/internal/storage"
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

	slog.Info("starting presence API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Initialize ONNX Runtime and the face detector
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	detector, err := recognize.NewRetinaFace(
		filepath.Join(cfg.Recognition.ModelsDir, "det_10g.onnx"),
		float32(cfg.Recognition.DetectionThreshold),
		nil,
	)
	if err != nil {
		slog.Error("init face detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	// Restore the classifier from persisted enrollment state
	engine := recognize.NewEngine(detector, db, cfg.Recognition.MaxTemplatesPerIdent)
	if err := engine.Load(context.Background()); err != nil {
		slog.Error("load classifier state", "error", err)
		os.Exit(1)
	}

	conditioner := imaging.NewConditioner(cfg.Lighting.BrightnessThreshold, cfg.Lighting.Enhance())
	sessions := session.NewStore(cfg.Session.TTL)

	svc := attend.NewService(attend.Options{
		Conditioner:         conditioner,
		Engine:              engine,
		Sessions:            sessions,
		Store:               db,
		Captures:            minioStore,
		Publisher:           producer,
		ConfidenceThreshold: cfg.Recognition.ConfidenceThreshold,
		MaxBatchSize:        cfg.Offline.MaxBatchSize,
		AdminEmail:          cfg.Notification.AdminEmail,
		NotifyEnabled:       cfg.Notification.Enabled,
	})

	mailer := notify.NewResendMailer(cfg.Notification.ResendAPIKey, cfg.Notification.FromAddress)
	dispatcher := notify.NewDispatcher(db, mailer, cfg.Notification.MaxAttempts)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Broadcast committed check-ins via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create checkin consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeCheckins(ctx, "api-checkins", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.CheckinEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}
		hub.BroadcastCheckin(event)
		return nil
	})
	if err != nil {
		slog.Warn("start checkin consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		DB:         db,
		MinIO:      minioStore,
		Producer:   producer,
		Service:    svc,
		Engine:     engine,
		Dispatcher: dispatcher,
		Hub:        hub,
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
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
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
