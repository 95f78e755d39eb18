package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"receptionist-platform/internal/audit"
	"receptionist-platform/internal/auth"
	"receptionist-platform/internal/booking"
	"receptionist-platform/internal/calls"
	"receptionist-platform/internal/config"
	"receptionist-platform/internal/httpapi"
	"receptionist-platform/internal/notify"
	"receptionist-platform/internal/realtime"
	"receptionist-platform/internal/reporting"
	"receptionist-platform/internal/scheduling"
	"receptionist-platform/internal/sentiment"
	"receptionist-platform/internal/voice"
	"receptionist-platform/pkg/logger"
	"receptionist-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Sentiment classification is optional; calls fall back to
	// UNKNOWN when it is not configured.
	var classifier calls.SentimentClassifier
	if cfg.Gemini.APIKey != "" {
		gem, closeGemini, err := sentiment.NewGeminiClassifier(rootCtx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Error("gemini init failed", "err", err)
			os.Exit(1)
		}
		defer closeGemini()
		classifier = gem
	} else {
		log.Warn("GEMINI_API_KEY not set, sentiment classification disabled")
	}

	// Services over Postgres repositories.
	schedService := scheduling.NewService(scheduling.NewPostgresRepo(db))
	bookService := booking.NewService(booking.NewPostgresStore(db), schedService)
	callsService := calls.NewService(calls.NewPostgresRepo(db), classifier)
	reportService := reporting.NewService(reporting.NewPostgresRepo(db), rdb)
	auditService := audit.NewService(audit.NewPostgresRepo(db))

	hub := realtime.NewHub()
	go hub.Run()
	defer hub.Close()

	// Outbound SMS worker. Without Twilio credentials the worker has
	// no sender and Enqueue becomes a no-op.
	var sender notify.Sender
	if cfg.SMSEnabled() {
		sender = notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.SMSFrom)
	} else {
		log.Warn("Twilio not configured, SMS confirmations disabled")
	}
	outbound := notify.NewWorker(sender)
	workerCtx, stopWorker := context.WithCancel(rootCtx)
	go outbound.Run(logger.With(workerCtx, log))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	dispatcher := voice.NewDispatcher(schedService, bookService, callsService)
	webhook := voice.NewHandler(callsService, bookService, dispatcher, hub, outbound, rdb, cfg.Vapi.WebhookSecret)

	handlers := httpapi.Handlers{
		Auth:      authManager,
		Sched:     schedService,
		Book:      bookService,
		Calls:     callsService,
		Reporting: reportService,
		Audit:     auditService,
		Hub:       hub,
	}

	registerRoutes(r, db, hub, webhook, handlers, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	stopWorker()
	outbound.Wait()
}
