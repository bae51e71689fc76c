package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"automatch/internal/config"
	"automatch/internal/db"
	"automatch/internal/events"
	"automatch/internal/handlers"
	"automatch/internal/jobs"
	"automatch/internal/logger"
	"automatch/internal/notify"
	"automatch/internal/payments"
	"automatch/internal/services"
	"automatch/internal/store"
	"automatch/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "automatch-api",
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	dealers := store.NewDealerStore(database)
	leads := store.NewLeadStore(database)
	ledgerStore := store.NewLedgerStore(database)
	purchases := store.NewPurchaseStore(database)
	admins := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	stats := store.NewStatsStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub(strings.Split(cfg.AllowedOrigins, ",")...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher services.EventPublisher = events.Noop{}
	if cfg.MessagingEnabled() {
		broker, err := events.Connect(cfg.AMQPURL)
		if err != nil {
			log.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		defer broker.Close()
		publisher = events.NewProducer(broker.Ch)

		if cfg.MailEnabled() {
			consumerCh, err := broker.Conn.Channel()
			if err != nil {
				log.Fatal("failed to open consumer channel", zap.Error(err))
			}
			mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
			if err := events.NewConsumer(mailer, log.Named("notifications")).Start(ctx, consumerCh); err != nil {
				log.Fatal("failed to start notification consumer", zap.Error(err))
			}
		}
	} else {
		log.Info("AMQP_URL not set, domain events are not published")
	}

	var provider payments.Provider
	if cfg.PaymentProviderURL != "" {
		provider = payments.NewHTTPClient(cfg.PaymentProviderURL, cfg.PaymentProviderKey, cfg.PaymentTimeout)
	} else {
		if cfg.IsProduction() {
			log.Fatal("PAYMENT_PROVIDER_URL is required in production")
		}
		log.Warn("PAYMENT_PROVIDER_URL not set, using sandbox payments")
		provider = payments.Sandbox{}
	}

	ledger := services.NewCreditLedger(txRunner, dealers, ledgerStore, audit, hub, log)
	leadService := services.NewLeadService(txRunner, leads, dealers, ledgerStore, audit)
	unlockService := services.NewUnlockService(txRunner, ledger, leads, audit, publisher, log)
	provisioning := services.NewProvisioningService(txRunner, dealers, admins, audit, stats, ledger, cfg.DefaultDealerCredits)
	purchaseService := services.NewPurchaseService(txRunner, dealers, purchases, ledger, audit, provider, publisher, cfg.PaymentTimeout, log)
	authService := services.NewAuthService(txRunner, dealers, admins, cfg.JWTSecret, cfg.TokenTTL)

	created, err := provisioning.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		log.Fatal("failed to bootstrap admin", zap.Error(err))
	}
	if created {
		log.Info("bootstrap super admin created", zap.String("email", cfg.BootstrapAdminEmail))
	}

	scheduler, err := jobs.New(jobs.Config{
		ReconcileSchedule:  cfg.ReconcileSchedule,
		ExpireSchedule:     cfg.ExpireSchedule,
		PurchasePendingTTL: cfg.PurchasePendingTTL,
	}, ledger, purchaseService, log.Named("jobs"))
	if err != nil {
		log.Fatal("failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	handler := handlers.New(cfg, leadService, unlockService, ledger, provisioning, purchaseService, authService, audit, dealers, admins, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("automatch API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
}
