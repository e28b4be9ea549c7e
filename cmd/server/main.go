package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	emailPkg "stablepost/internal/adapters/email"
	web "stablepost/internal/adapters/http"
	"stablepost/internal/adapters/render"
	"stablepost/internal/adapters/storage"
	paymentStorePkg "stablepost/internal/adapters/storage/payment"
	queueStorePkg "stablepost/internal/adapters/storage/queue"
	quotaStorePkg "stablepost/internal/adapters/storage/quota"
	registrationStorePkg "stablepost/internal/adapters/storage/registration"
	"stablepost/internal/application/orchestrators"
	"stablepost/internal/platform/config"
	"stablepost/internal/platform/logger"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// defaultWelcomeBody is the markdown used when no welcome body file is
// configured. Edit the file, not this constant, for copy changes.
const defaultWelcomeBody = `We offer **horse riding lessons** for all ages and skill levels, taught by certified instructors on well-schooled horses.

Your first lesson includes a stable tour and a meet-and-greet with our horses.`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("startup_failed", "error", err.Error())
		os.Exit(1)
	}

	// WAL mode with a busy timeout so the sweep goroutine and HTTP
	// handlers can share the database.
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		slog.Error("open_database_failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		slog.Error("database_unreachable", "error", err.Error())
		os.Exit(1)
	}
	if err := storage.InitDB(db); err != nil {
		slog.Error("init_schema_failed", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("database_ready", "path", cfg.DBPath)

	quotaStore := quotaStorePkg.NewSQLiteStore(db)
	queueStore := queueStorePkg.NewSQLiteStore(db)
	registrationStore := registrationStorePkg.NewSQLiteStore(db)
	paymentStore := paymentStorePkg.NewSQLiteStore(db)

	tracker := orchestrators.NewQuotaTracker(quotaStore, cfg.DailyEmailLimit, time.Now, loc)

	var sender emailPkg.Sender
	if cfg.ResendAPIKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		slog.Warn("email_sender_noop", "hint", "set STABLEPOST_RESEND_API_KEY for real delivery")
	}

	welcomeBody := defaultWelcomeBody
	if cfg.WelcomeBodyPath != "" {
		raw, err := os.ReadFile(cfg.WelcomeBodyPath)
		if err != nil {
			slog.Error("read_welcome_body_failed", "path", cfg.WelcomeBodyPath, "error", err.Error())
			os.Exit(1)
		}
		welcomeBody = string(raw)
	}

	renderer := render.New(render.Branding{
		BusinessName:   cfg.BusinessName,
		Tagline:        cfg.Tagline,
		WebsiteURL:     cfg.WebsiteURL,
		ContactPhone:   cfg.ContactPhone,
		ContactEmail:   cfg.ContactEmail,
		ConsentBaseURL: cfg.ConsentBaseURL,
	}, welcomeBody)

	processor := &orchestrators.QueueProcessor{
		Queue:         queueStore,
		Registrations: registrationStore,
		Tracker:       tracker,
		Sender:        sender,
		Renderer:      renderer,
		FromAddress:   cfg.EmailFrom,
		ReplyTo:       cfg.EmailReplyTo,
		SendDelay:     time.Duration(cfg.SendDelayMS) * time.Millisecond,
		Now:           time.Now,
	}

	guard := &orchestrators.DuplicateGuard{Payments: paymentStore, Location: loc}

	server := &web.Server{
		Queue:     queueStore,
		Tracker:   tracker,
		Processor: processor,
		EnquiryDeps: orchestrators.EnquiryDeps{
			Registrations: registrationStore,
			Queue:         queueStore,
			Tracker:       tracker,
			Sender:        sender,
			Renderer:      renderer,
			FromAddress:   cfg.EmailFrom,
			ReplyTo:       cfg.EmailReplyTo,
			AmountPaise:   cfg.DefaultAmountPaise,
			GenerateID:    uuid.NewString,
			Now:           time.Now,
		},
		ConsentDeps: orchestrators.AcceptConsentDeps{
			Registrations: registrationStore,
			LocationCodes: cfg.ParseLocationCodes(),
			Now:           time.Now,
			Location:      loc,
		},
		PaymentRequestDeps: orchestrators.SendPaymentRequestDeps{
			Registrations: registrationStore,
			Tracker:       tracker,
			Sender:        sender,
			Renderer:      renderer,
			UPIID:         cfg.UPIID,
			PayeeName:     cfg.BusinessName,
			FromAddress:   cfg.EmailFrom,
			ReplyTo:       cfg.EmailReplyTo,
			Now:           time.Now,
		},
		RecordPaymentDeps: orchestrators.RecordPaymentDeps{
			Payments:   paymentStore,
			Guard:      guard,
			GenerateID: uuid.NewString,
			Now:        time.Now,
		},
		SendReceiptDeps: orchestrators.SendReceiptDeps{
			Payments:    paymentStore,
			Tracker:     tracker,
			Sender:      sender,
			Renderer:    renderer,
			FromAddress: cfg.EmailFrom,
			ReplyTo:     cfg.EmailReplyTo,
			Now:         time.Now,
			Location:    loc,
		},
	}

	sweepStop := make(chan struct{})
	orchestrators.StartSweepScheduler(processor, time.Duration(cfg.SweepIntervalMin)*time.Minute, sweepStop)
	defer close(sweepStop)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server_starting", "version", version, "addr", httpServer.Addr, "daily_limit", tracker.Limit())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err.Error())
	}
}
