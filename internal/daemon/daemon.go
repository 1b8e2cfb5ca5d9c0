package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driftcode/fimproxy/internal/config"
	"github.com/driftcode/fimproxy/internal/server"
	"github.com/driftcode/fimproxy/internal/upstream"
	"github.com/driftcode/fimproxy/internal/vault"
	"github.com/driftcode/fimproxy/internal/version"
)

// cachePurgeInterval is how often the suggestion cache sweeps expired
// entries while the daemon runs.
const cachePurgeInterval = 1 * time.Minute

// Run is the main daemon orchestrator. It initialises logging, resolves
// the configured provider's API key, wires the prediction pipeline, and
// blocks until a shutdown signal is received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Set up zerolog logger.
	dataDir := expandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	writers := []io.Writer{}

	// Always log to file.
	logPath := filepath.Join(dataDir, "fimproxy.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	// If foreground, also write to stdout with console formatting.
	if foreground {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
		writers = append(writers, consoleWriter)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "fimproxy").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("fimproxy starting")

	// 2. Check if already running.
	if IsRunning(dataDir) {
		return fmt.Errorf("fimproxy is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	// 3. Resolve the configured provider's API key and build its client.
	client, err := buildUpstreamClient(cfg)
	if err != nil {
		return fmt.Errorf("building upstream client: %w", err)
	}
	if problems := client.CheckConfig(); len(problems) > 0 {
		for _, p := range problems {
			log.Warn().Str("provider", cfg.Provider.APIProvider).Msg(p)
		}
	}
	log.Info().Str("provider", cfg.Provider.APIProvider).Msg("upstream client ready")

	// 4. Assemble the prediction pipeline.
	predictor, err := server.NewPredictor(cfg, upstream.NewFallbackClient(client))
	if err != nil {
		return fmt.Errorf("assembling prediction pipeline: %w", err)
	}

	// 5. Write PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	// 6. Start config watcher.
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}

	var watcher *config.Watcher
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			watcher = w
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
				predictor.Reconfigure(newCfg)
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// 7. Start the suggestion cache purger.
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	purgerDone := predictor.StartCachePurger(purgeCtx, cachePurgeInterval)

	// 8. Start the HTTP server.
	httpServer := server.NewServer(predictor, cfg, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		if cfg.Server.TLSCertFile != "" {
			log.Info().Str("addr", cfg.Server.BindAddress).Int("port", cfg.Server.Port).Msg("fimproxy server starting (TLS)")
			if err := httpServer.StartTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		} else {
			log.Info().Str("addr", cfg.Server.BindAddress).Int("port", cfg.Server.Port).Msg("fimproxy server starting")
			if err := httpServer.Start(); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}
	}()

	if foreground {
		fmt.Printf("\n  fimproxy is running!\n")
		fmt.Printf("  Listening: http://%s:%d\n\n", cfg.Server.BindAddress, cfg.Server.Port)
	}

	// 9. Wait for shutdown signal or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	// 10. Graceful shutdown with 30-second timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("shutting down server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// 11. Clean up -- wait for the purger goroutine before exiting.
	purgeCancel()
	<-purgerDone
	if err := RemovePID(dataDir); err != nil {
		log.Error().Err(err).Msg("failed to remove PID file during shutdown")
	}

	log.Info().Msg("fimproxy stopped")
	return nil
}

// buildUpstreamClient resolves the configured provider's key and
// constructs its Client implementation.
func buildUpstreamClient(cfg *config.Config) (upstream.Client, error) {
	v := vault.New()

	switch cfg.Provider.APIProvider {
	case "openai":
		key, err := v.ResolveKeyRef(cfg.Provider.OpenAI.KeyRef)
		if err != nil {
			return nil, fmt.Errorf("resolving openai key: %w", err)
		}
		return upstream.NewOpenAIClient(upstream.OpenAIConfig{
			APIKey:  key,
			BaseURL: cfg.Provider.OpenAI.URL,
			Model:   cfg.Provider.OpenAI.Model,
		}), nil

	case "openrouter":
		key, err := v.ResolveKeyRef(cfg.Provider.OpenRouter.KeyRef)
		if err != nil {
			return nil, fmt.Errorf("resolving openrouter key: %w", err)
		}
		return upstream.NewOpenRouterClient(upstream.OpenRouterConfig{
			APIKey:  key,
			BaseURL: cfg.Provider.OpenRouter.URL,
			Model:   cfg.Provider.OpenRouter.Model,
		}), nil

	case "gemini":
		key, err := v.ResolveKeyRef(cfg.Provider.Gemini.KeyRef)
		if err != nil {
			return nil, fmt.Errorf("resolving gemini key: %w", err)
		}
		return upstream.NewGeminiClient(context.Background(), upstream.GeminiConfig{
			APIKey: key,
			Model:  cfg.Provider.Gemini.Model,
		})

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.APIProvider)
	}
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Server.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("fimproxy does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		// Stale PID file; clean it up.
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("fimproxy is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to fimproxy (PID %d)\n", pid)

	// Wait briefly for the process to exit.
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}

	return nil
}

// Status checks if the daemon is running, pings its /health endpoint, and
// prints the listen address and provider from the local config.
func Status() error {
	cfg := config.Get()
	dataDir := expandHome(cfg.Server.DataDir)

	if !IsRunning(dataDir) {
		fmt.Println("fimproxy is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("fimproxy is running (PID %d)\n", pid)

	healthURL := fmt.Sprintf("http://%s:%d/health", cfg.Server.BindAddress, cfg.Server.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		fmt.Println("  (server unreachable)")
		return nil
	}
	defer resp.Body.Close()

	fmt.Printf("  Listening: %s:%d\n", cfg.Server.BindAddress, cfg.Server.Port)
	fmt.Printf("  Provider:  %s\n", cfg.Provider.APIProvider)
	fmt.Printf("  Health:    %d\n", resp.StatusCode)

	return nil
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
