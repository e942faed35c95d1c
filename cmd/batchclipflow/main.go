package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChuheLin/BatchClipFlow/internal/api"
	"github.com/ChuheLin/BatchClipFlow/internal/batch"
	"github.com/ChuheLin/BatchClipFlow/internal/config"
	"github.com/ChuheLin/BatchClipFlow/internal/db"
	"github.com/ChuheLin/BatchClipFlow/internal/history"
	"github.com/ChuheLin/BatchClipFlow/internal/logging"
	"github.com/ChuheLin/BatchClipFlow/internal/playback"
	"github.com/ChuheLin/BatchClipFlow/internal/project"
	"github.com/ChuheLin/BatchClipFlow/internal/transcode"
	"github.com/ChuheLin/BatchClipFlow/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting batchclipflow agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	deviceID, err := ensureConfigValue(repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureConfigValue(repo, "auth_token", 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                 BATCHCLIPFLOW AGENT v0.1.0                ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	store := project.NewStore(cfg.SessionPath())
	session := project.NewSession(store, logger)

	projectPath := store.ReadLastOpened()
	if projectPath == "" {
		projectPath = cfg.DefaultProjectPath()
	}
	if err := session.Open(projectPath); err != nil {
		logger.Error("failed to open last project, starting from default",
			"path", logging.SanitizePath(projectPath), "error", err)
		if err := session.Open(cfg.DefaultProjectPath()); err != nil {
			return fmt.Errorf("failed to open default project: %w", err)
		}
	}
	logger.Info("project opened",
		"path", logging.SanitizePath(session.Path()),
		"clips", session.Snapshot().ClipCount(),
	)

	var transcoder transcode.Transcoder
	if ff, err := transcode.NewFFmpeg(cfg.FFmpegPath(), cfg.ClipTimeout(), logger); err != nil {
		logger.Warn("ffmpeg unavailable, batch runs will produce placeholder files", "error", err)
		transcoder = transcode.NewStub(logger)
	} else {
		transcoder = ff
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := batch.NewRunner(session, transcoder, repo, logger)
	hub := api.NewEventHub(logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Session:      session,
		Runner:       runner,
		Repository:   repo,
		Preview:      playback.NewPreview(logger),
		Hub:          hub,
		Logger:       logger,
		StartTime:    startTime,
		DeviceID:     deviceID,
		BatchContext: ctx,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Session:      session,
			Runner:       runner,
			Logger:       logger,
			BatchContext: ctx,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	// Single consumer of the ordered event stream; fans out to websocket
	// subscribers and the tray.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-runner.Events():
				hub.Broadcast(ev)
				if tray != nil {
					tray.NotifyEvent(ev)
				}
			}
		}
	}()

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureConfigValue(repo history.Repository, key string, numBytes int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	raw := make([]byte, numBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	value := hex.EncodeToString(raw)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}

	return value, nil
}
