package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/jononovo/5ducks-outreach/internal/api"
	"github.com/jononovo/5ducks-outreach/internal/config"
	"github.com/jononovo/5ducks-outreach/internal/mergefield"
	"github.com/jononovo/5ducks-outreach/internal/pkg/distlock"
	"github.com/jononovo/5ducks-outreach/internal/pkg/logger"
	"github.com/jononovo/5ducks-outreach/internal/repository/postgres"
	"github.com/jononovo/5ducks-outreach/internal/retry"
	"github.com/jononovo/5ducks-outreach/internal/service/autosend"
	"github.com/jononovo/5ducks-outreach/internal/service/sending"
	"github.com/jononovo/5ducks-outreach/internal/service/suppression"
	"github.com/jononovo/5ducks-outreach/internal/tracking"
	"github.com/jononovo/5ducks-outreach/internal/worker"
)

func main() {
	log.Println("Starting 5Ducks outreach worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configPath, err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.Server.AdminToken == "" {
		log.Fatal("ADMIN_API_TOKEN (server.admin_token) must be set")
	}

	// Database connection
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	// Redis is optional; without it locks use Postgres advisory locks.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		log.Printf("Redis configured at %s", cfg.Redis.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newSender(ctx, cfg.SES)

	var signer *tracking.Signer
	if cfg.Tracking.SigningKey != "" {
		signer = tracking.NewSigner(cfg.Tracking.SigningKey, cfg.Tracking.BaseURL)
	} else {
		log.Println("UNSUBSCRIBE_SIGNING_KEY not set, campaign emails go out without unsubscribe links")
	}

	dripRepo := postgres.NewDripRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	outreachRepo := postgres.NewOutreachRepo(db)

	suppressions := suppression.NewService(postgres.NewSuppressionRepo(db), signer)

	autoSend := autosend.NewService(outreachRepo, sender, mergefield.NewResolver(), signer, autosend.Config{
		FromEmail:    cfg.SES.FromEmail,
		ReplyTo:      cfg.SES.ReplyTo,
		DefaultDelay: time.Duration(cfg.Scheduler.DelayBetweenEmailsMS) * time.Millisecond,
	})

	// Drip engine
	policy := retry.Default()
	policy.MaxAttempts = cfg.Drip.MaxRetries
	drip := worker.NewDripEngine(dripRepo, sender, worker.DripConfig{
		PollInterval: cfg.Drip.PollInterval(),
		BatchSize:    cfg.Drip.BatchSize,
		Retry:        policy,
		FromName:     cfg.SES.FromName,
	})
	drip.SetLock(distlock.NewLock(rdb, db, distlock.KeyDripPoll, worker.DefaultClaimLease))
	drip.SetSuppressor(suppressions)
	if cfg.Drip.Enabled {
		if err := drip.Initialize(ctx); err != nil {
			log.Fatalf("Failed to initialize drip engine: %v", err)
		}
		log.Printf("Drip engine polling every %s", cfg.Drip.PollInterval())
	}

	// Campaign scheduler
	scheduler := worker.NewCampaignScheduler(campaignRepo, autoSend)
	scheduler.SetPollInterval(cfg.Scheduler.CheckInterval())
	scheduler.SetLock(distlock.NewLock(rdb, db, distlock.KeyCampaignCheck, 30*time.Minute))
	if cfg.Scheduler.Enabled {
		scheduler.Start()
		log.Printf("Campaign scheduler checking every %s", cfg.Scheduler.CheckInterval())
	}

	// Data cleanup
	if cfg.Cleanup.Enabled {
		cleanup := worker.NewDataCleanupWorker(dripRepo, cfg.Cleanup.Interval(), cfg.Cleanup.Retention())
		cleanup.SetLock(distlock.NewLock(rdb, db, distlock.KeyDataCleanup, 30*time.Minute))
		go cleanup.Start(ctx)
	}

	// Admin API
	server := api.NewServer(cfg.Server, api.Deps{
		Drip:        drip,
		Scheduler:   scheduler,
		Suppression: suppressions,
		DB:          db,
		Redis:       rdb,
	})
	go func() {
		log.Printf("Admin API listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Admin API failed: %v", err)
		}
	}()

	logger.For("worker").Info("worker running",
		"drip_enabled", cfg.Drip.Enabled,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"cleanup_enabled", cfg.Cleanup.Enabled,
		"ses_enabled", cfg.SES.Enabled,
		"redis", rdb != nil)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Admin API shutdown: %v", err)
	}

	scheduler.Stop()
	drip.StopPolling()
	cancel()

	d := drip.Stats()
	logger.For("worker").Info("worker stopped", "sent", d.Sent, "failed", d.Failed, "suppressed", d.Suppressed)
}

// newSender returns the SES sender when credentials are configured and the
// log sender otherwise.
func newSender(ctx context.Context, cfg config.SESConfig) sending.Sender {
	if !cfg.Enabled {
		log.Println("SES disabled, emails will be logged instead of sent")
		return sending.LogSender{}
	}
	ses, err := sending.NewSESSender(ctx, cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.FromEmail, cfg.ReplyTo)
	if err != nil {
		log.Fatalf("Failed to initialize SES sender: %v", err)
	}
	ses.SetTimeout(cfg.Timeout())
	log.Printf("SES sender initialized (region=%s)", cfg.Region)
	return ses
}
