package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/auth"
	"dompet/internal/backend"
	"dompet/internal/cache"
	"dompet/internal/cli"
	"dompet/internal/config"
	dhttp "dompet/internal/http"
	"dompet/internal/ledger"
	dlog "dompet/internal/log"
	"dompet/internal/services"
	"dompet/internal/session"
)

func main() {
	_ = config.LoadEnvFile()
	logger := cli.SetupLogger(dlog.ComponentApp)
	logger.Info("Starting dompet")

	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", dlog.FieldError, err)
		os.Exit(1)
	}
	remote, err := backend.NewFactory(logger.Slog()).Open(startCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to open backend", dlog.FieldBackend, backendCfg.Type, dlog.FieldError, err)
		os.Exit(1)
	}

	opts := []ledger.Option{
		ledger.WithLogger(logger.Slog()),
		ledger.WithRemoteTimeout(cfg.RemoteTimeout),
	}

	var (
		amqpClient *amqp.Client
		publisher  services.ReminderPublisher = services.LogPublisher{Logger: logger.Slog()}
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(amqp.Config{
			URL:           cfg.AMQPURL,
			Exchange:      cfg.AMQPExchange,
			ReminderQueue: cfg.AMQPQueue,
			FailureQueue:  cfg.AMQPFailureQueue,
		})
		if err != nil {
			logger.Error("Failed to initialize AMQP client", dlog.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		opts = append(opts, ledger.WithNotifier(amqpClient))
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, reminders go to the log")
	}

	store := ledger.New(remote.Store, opts...)

	provider, err := auth.NewProvider(auth.Config{
		Secret:      cfg.AuthJWTSecret,
		SessionFile: cfg.AuthSessionFile,
		Logger:      logger.Slog(),
	})
	if err != nil {
		logger.Error("Failed to initialize auth provider", dlog.FieldError, err)
		os.Exit(1)
	}

	binder := session.NewBinder(provider, store, session.Config{
		InitTimeout: cfg.SessionInitTimeout,
		Logger:      logger.Slog(),
	})

	reminders := services.NewReminderProcessor(store, publisher, services.ReminderProcessorConfig{
		Interval: cfg.ReminderInterval,
	})
	caches := cache.NewManager()
	caches.Register(reminders.Sent())

	srv, err := dhttp.NewServer(net.JoinHostPort("", cfg.Port), dhttp.Deps{
		Ledger:         store,
		Auth:           provider,
		Session:        binder,
		Check:          remote.Check,
		AdminSecret:    cfg.AuthAdminSecret,
		Logger:         logger,
		RateLimit:      cfg.RateLimit,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", dlog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", dlog.FieldError, err)
		}
		if err := reminders.Stop(ctx); err != nil {
			logger.Warn("Reminder processor stop failed", dlog.FieldError, err)
		}
		caches.Stop()
		if err := binder.Close(ctx); err != nil {
			logger.Warn("Session binder close failed", dlog.FieldError, err)
		}
		if err := store.Flush(ctx); err != nil {
			logger.Warn("Pending remote writes abandoned", dlog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", dlog.FieldError, err)
			}
		}
		if err := remote.Close(); err != nil {
			logger.Warn("Backend close failed", dlog.FieldError, err)
		}
	})

	if err := binder.Start(ctx); err != nil {
		logger.Error("Failed to start session binder", dlog.FieldError, err)
		os.Exit(1)
	}
	if err := binder.WaitReady(ctx); err != nil {
		logger.Warn("Session check interrupted", dlog.FieldError, err)
	}
	if st := binder.State(); st.TimedOut {
		logger.Warn("Session check still running, serving anyway", "timeout", cfg.SessionInitTimeout)
	}

	if err := reminders.Start(ctx); err != nil {
		logger.Error("Failed to start reminder processor", dlog.FieldError, err)
		os.Exit(1)
	}
	caches.StartCleanup(10 * time.Minute)

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", dlog.FieldError, err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	<-done
}
