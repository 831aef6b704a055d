package main

import (
	"context"
	"errors"
	"fmt"
	"groupchat/auth"
	"groupchat/infrastructure/grpc/server"
	"groupchat/infrastructure/http/handler"
	"groupchat/infrastructure/storage"
	"groupchat/internal"
	"groupchat/moderation"
	"groupchat/observability"
	"groupchat/repositories"
	"groupchat/runtime"
	"groupchat/runtime/workers"
	"groupchat/services"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every deferred cleanup runs before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	// A .env file is optional, the real environment always wins.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	groupRepository := repositories.NewGroupRepository(db)
	messageRepository, err := repositories.NewMessageRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = messageRepository.Close()
	}()

	blobStore, err := storage.NewDiskBlobStore(logger, config.BlobDir, config.BlobBaseURL)
	if err != nil {
		return exitConfig, err
	}

	moderator, err := moderation.NewModerator(moderation.ParseWords(config.CensoredWords), '*')
	if err != nil {
		return exitConfig, fmt.Errorf("moderation dictionary: %w", err)
	}

	// 3. Runtime: rooms, per-group ordering, supervised workers
	registry := runtime.NewRegistry(logger)
	sequencer := runtime.NewSequencer()
	monitoring := observability.NewMonitoringManager(logger, registry, config.MetricInterval)
	healthServer := server.NewHealthServer(logger, db, config.MetricInterval)
	archiver := workers.NewArchiverWorker(logger, messageRepository, monitoring, workers.ArchiveConfig{
		Interval:     config.ArchiveInterval,
		Retention:    config.ArchiveRetention,
		SafetyMargin: config.ArchiveSafetyMargin,
		BatchSize:    config.ArchiveBatchSize,
	})

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(archiver, monitoring, healthServer)
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 4. Services
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(logger, userRepository, tokens)
	groupService := services.NewGroupService(logger, groupRepository, userRepository, registry, sequencer)
	chatService := services.NewChatService(logger, groupRepository, messageRepository, userRepository,
		registry, sequencer, blobStore, moderator, monitoring, services.ChatConfig{
			MaxMessageLength: config.MaxMessageLength,
			BufferSize:       config.ConnectionBufferSize,
		})

	// 5. Servers
	errChan := make(chan error, 3)

	httpServer := &http.Server{
		Addr: config.Address(),
		Handler: handler.NewRouter(handler.Dependencies{
			Log:           logger,
			Tokens:        tokens,
			AuthService:   authService,
			GroupService:  groupService,
			ChatService:   chatService,
			Monitoring:    monitoring,
			BlobDir:       config.BlobDir,
			MaxUploadSize: config.MaxUploadSize,
			AllowedOrigin: config.AllowedOrigin,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	// Hijacked websocket connections are not tracked by Shutdown
	httpServer.RegisterOnShutdown(registry.CloseAll)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
	}()

	var debugServer *http.Server
	if config.DebugPort > 0 {
		debugServer = &http.Server{
			Addr:              fmt.Sprintf("localhost:%d", config.DebugPort),
			Handler:           internal.NewDebugHandler(logger, db, internal.MessageMapper),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("Debug Badger inspector available", "url", "http://"+debugServer.Addr+"/inspect")
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("debug server error: %w", err)
			}
		}()
	}

	// 6. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 7. Final Cleanup (Graceful Shutdown)
	// HTTP first so no new message is accepted, then workers, then the store.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	healthServer.Shutdown()
	stop()
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
