package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"linkgrid/go-client/internal/config"
	"linkgrid/go-client/internal/metrics"
	"linkgrid/go-client/internal/platform/privacylog"
	"linkgrid/go-client/internal/session"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	userID := flag.String("user-id", "", "Authenticated user id")
	token := flag.String("token", "", "Session token (or LINKGRID_TOKEN)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("linkgrid-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkgrid-daemon failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	sessionToken := *token
	if sessionToken == "" {
		sessionToken = os.Getenv("LINKGRID_TOKEN")
	}
	if *userID == "" || sessionToken == "" {
		fmt.Fprintln(os.Stderr, "linkgrid-daemon requires -user-id and a session token")
		os.Exit(1)
	}

	mtr := metrics.New()
	sess, err := session.Open(session.Options{
		UserID:  *userID,
		Config:  cfg,
		Logger:  logger,
		Metrics: mtr,
	})
	if err != nil {
		logger.Error("session initialization failed", "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := mtr.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	logger.Info("linkgrid-daemon starting", "version", version)
	sess.Start(ctx, sessionToken)

	<-ctx.Done()
	sess.Close()
	logger.Info("linkgrid-daemon stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(handler))
}
