package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/stream-stt-service/internal/config"
	"github.com/skypro1111/stream-stt-service/internal/metrics"
	"github.com/skypro1111/stream-stt-service/internal/server"
	"github.com/skypro1111/stream-stt-service/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "stream-stt-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.Int("tcp_port", cfg.Server.TCPPort),
		slog.Int("ws_port", cfg.Server.WSPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_concurrent_sessions", cfg.Server.MaxConcurrentSessions),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("step_ms", cfg.Audio.StepMs),
		slog.Int("length_ms", cfg.Audio.LengthMs),
		slog.Int("keep_ms", cfg.Audio.KeepMs),
		slog.Bool("streaming_enabled", cfg.Audio.StreamingEnabled),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.String("engine_backend", cfg.Engine.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Create session manager configuration
	managerConfig := session.ManagerConfig{
		Session: session.Config{
			SampleRate:       cfg.Audio.SampleRate,
			StepMs:           cfg.Audio.StepMs,
			LengthMs:         cfg.Audio.LengthMs,
			KeepMs:           cfg.Audio.KeepMs,
			RingCapMs:        cfg.Audio.RingCapMs,
			MinStepMs:        cfg.Audio.MinStepMs,
			MaxStepMs:        cfg.Audio.MaxStepMs,
			StreamingEnabled: cfg.Audio.StreamingEnabled,
		},
		Gate: session.GateConfig{
			Enabled:    cfg.VAD.Enabled,
			Threshold:  cfg.VAD.Threshold,
			HighPassHz: cfg.VAD.HighPassHz,
		},
		Backend:     cfg.Engine.Backend,
		MaxSessions: cfg.Server.MaxConcurrentSessions,
		Timeout:     cfg.Server.GetSessionTimeout(),
	}

	// Initialize session manager
	sessionMgr, err := session.NewManager(logger, appMetrics, managerConfig)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Server.GetSessionTimeout()),
		slog.String("engine_backend", cfg.Engine.Backend),
	)

	// Initialize TCP intake server
	tcpServer := server.NewTCPServer(&cfg.Server, logger, sessionMgr, appMetrics)
	logger.Info("TCP server initialized")

	// Initialize WebSocket intake server (if enabled)
	var wsServer *server.WSServer
	if cfg.Server.WSPort != 0 {
		wsServer = server.NewWSServer(&cfg.Server, logger, sessionMgr, appMetrics)
		logger.Info("WebSocket server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.WSPort)),
		)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, sessionMgr, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start TCP server
	if err := tcpServer.Start(); err != nil {
		logger.Error("Failed to start TCP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start WebSocket server (if enabled)
	if wsServer != nil {
		if err := wsServer.Start(); err != nil {
			logger.Error("Failed to start WebSocket server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("tcp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.TCPPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop intake servers (stop accepting new streams)
	if wsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := wsServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping WebSocket server", slog.String("error", err.Error()))
		}
	}
	tcpServer.Stop()

	// Stop session manager (abort remaining sessions, close the engine)
	sessionMgr.Stop()

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
