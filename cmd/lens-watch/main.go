// ABOUTME: Entry point for lens-watch
// ABOUTME: Uploads documents dropped into watched folders to the lens backend

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
)

const banner = `
    ╭──────────────────────────────╮
    │                              │
    │   ╻   ┏━╸ ┏┓╻ ┏━┓            │
    │   ┃   ┣╸  ┃┗┫ ┗━┓            │
    │   ┗━╸ ┗━╸ ╹ ╹ ┗━┛            │
    │                              │
    │      lens document watcher   │
    │                              │
    ╰──────────────────────────────╯
`

// getConfigPath returns the path to the watch daemon config file.
// Priority: LENS_WATCH_CONFIG env var > XDG_CONFIG_HOME/lens/watch.toml > ~/.config/lens/watch.toml
func getConfigPath() string {
	if envPath := os.Getenv("LENS_WATCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "watch.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lens", "watch.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging.Level)

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.URL)
	green.Print("    ▶ ")
	fmt.Printf("Watching: %s\n", strings.Join(cfg.Watch.Dirs, ", "))
	green.Print("    ▶ ")
	fmt.Printf("Settle:   %s\n", cfg.Watch.Settle)
	fmt.Println()

	// Create daemon
	daemon, err := NewDaemon(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating daemon: %w", err)
	}
	defer daemon.Close()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting watch daemon")
	return daemon.Run(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
