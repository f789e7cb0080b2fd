package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veomenu/veomenu/internal/backup"
	"github.com/veomenu/veomenu/internal/config"
	"github.com/veomenu/veomenu/internal/database"
	"github.com/veomenu/veomenu/internal/email"
	"github.com/veomenu/veomenu/internal/logging"
	"github.com/veomenu/veomenu/internal/metrics"
	"github.com/veomenu/veomenu/internal/server"
	"github.com/veomenu/veomenu/internal/sms"
)

func main() {
	restoreKey := flag.String("restore-backup", "", "restore the S3 backup at this object key and exit")
	flag.Parse()

	// A missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.BackupS3Endpoint,
			Bucket:    cfg.BackupS3Bucket,
			Region:    cfg.BackupS3Region,
			AccessKey: cfg.BackupS3AccessKey,
			SecretKey: cfg.BackupS3SecretKey,
		},
		DBPath:        cfg.DatabasePath,
		EncryptionKey: cfg.BackupEncryptionKey,
		Retention:     cfg.BackupRetention,
		Interval:      cfg.BackupInterval,
	}

	if *restoreKey != "" {
		// Restore never snapshots, so it needs no database handle. Running
		// it before Open also keeps migrations off the file being replaced.
		mgr := backup.NewManager(backupCfg, nil, logger.With("component", "backup"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := mgr.Restore(ctx, *restoreKey); err != nil {
			logger.Error("restore backup", "key", *restoreKey, "error", err)
			os.Exit(1)
		}
		logger.Info("backup restored, start again without -restore-backup", "key", *restoreKey)
		return
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FrontendURL)
	smsClient := sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	m := metrics.New()

	backupMgr := backup.NewManager(backupCfg, db, logger.With("component", "backup"))
	backupCtx, backupCancel := context.WithCancel(context.Background())
	defer backupCancel()
	backupMgr.Start(backupCtx)

	srv := server.New(db, cfg, emailClient, smsClient, m, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				if n, err := srv.MagicLinkStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired magic links", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired magic links", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("veomenu api starting", "addr", ":"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	backupMgr.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
