// Command lifewatch polls a lifelog feed for keyword triggers.
//
// Usage:
//
//	lifewatch -config lifewatch.yaml        # full configuration
//	lifewatch -keyword gemini               # defaults with a keyword
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/lifewatch"
	"github.com/hazyhaar/lifewatch/internal/status"
)

func main() {
	configPath := flag.String("config", "", "path to lifewatch.yaml config file")
	keyword := flag.String("keyword", "", "override the watched keyword")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *keyword); err != nil && ctx.Err() == nil {
		logger.Error("lifewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, keyword string) error {
	var cfg *lifewatch.Config
	if configPath != "" {
		var err error
		cfg, err = lifewatch.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
	}
	if keyword != "" {
		if cfg == nil {
			cfg = &lifewatch.Config{}
		}
		cfg.Keyword = keyword
	}

	svc, err := lifewatch.New(cfg, logger)
	if err != nil {
		return err
	}

	if cfg != nil && cfg.Status.Addr != "" {
		srv := status.New(cfg.Status.Addr, func() any { return svc.Stats() }, logger)
		srv.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	return svc.Run(ctx)
}
