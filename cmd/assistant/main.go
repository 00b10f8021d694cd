package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"

	"github.com/kavishka-codxlab/portfolio-assistant/config"
	chathandler "github.com/kavishka-codxlab/portfolio-assistant/internal/chat/handler"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/database"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/dispatch"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/httputil"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/logging"
	"github.com/kavishka-codxlab/portfolio-assistant/internal/store"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/webhook"
	webhookapi "github.com/kavishka-codxlab/portfolio-assistant/pkg/webhook/api"
)

func main() {
	cfg, err := config.LoadAssistant()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, logCloser := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}, os.Stderr)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.AssistantConfig, logger *slog.Logger) error {
	// --- Catalogs ---
	var loader *conversation.Loader
	if cfg.CatalogDir != "" {
		loader = conversation.NewLoader(cfg.CatalogDir, logger)
		if _, err := loader.LoadAll(); err != nil {
			logger.Warn("loading catalogs, using built-in default", slog.String("error", err.Error()))
		}
		go func() {
			if err := loader.WatchAndReload(ctx); err != nil {
				logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// --- Events ---
	var queue events.Queue
	if cfg.NATSURL != "" {
		nq, err := events.NewNATSQueue(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nq.Close()
		queue = nq
	}
	pub := events.NewPublisher(queue, cfg.ServiceName, cfg.EventSubject, events.WithPublisherLogger(logger))

	// --- Storage ---
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(database.Config{DSN: cfg.DatabaseURL}, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
	}

	inbox, err := openStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(inbox, pub, logger)

	// --- Webhooks ---
	pool, err := ants.NewPool(cfg.WebhookWorkers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		whRepo   *webhook.Repository
		recorder webhook.Recorder
		sources  = []webhook.EndpointSource{
			webhook.NewStaticEndpoints(cfg.WebhookURLs, cfg.WebhookSecret, events.SubmissionConfirmed),
		}
	)
	if db != nil {
		whRepo = webhook.NewRepository(db)
		if err := whRepo.Migrate(ctx); err != nil {
			return err
		}
		recorder = whRepo
		sources = append(sources, whRepo)
	}
	whDeliverer := webhook.NewDeliverer(recorder, webhook.DelivererConfig{
		MaxAttempts:    cfg.WebhookMaxRetries,
		Timeout:        cfg.WebhookTimeout,
		BackoffInitial: cfg.WebhookBackoff,
		BackoffMax:     cfg.WebhookBackoffMax,
		Breaker: webhook.BreakerConfig{
			FailureThreshold: cfg.CBFailThreshold,
			ResetTimeout:     cfg.CBResetTimeout,
		},
	}, pool)
	whSubscriber := &webhook.Subscriber{Sources: sources, Deliverer: whDeliverer, Pool: pool}

	envelopes := pub.Subscribe("webhooks", 256)
	defer pub.Unsubscribe("webhooks")
	go whSubscriber.Run(ctx, envelopes)

	// --- HTTP ---
	chat := chathandler.New(loader.Source(cfg.CatalogName), dispatcher, inbox, pub, logger, chathandler.Config{
		SessionTTL:       cfg.SessionTTL,
		MaxSlotRetries:   cfg.MaxSlotRetries,
		MaxMessageLength: cfg.MaxMessageLength,
		AllowedOrigins:   cfg.AllowedOrigins,
		AdminToken:       cfg.AdminToken,
	})
	router := chat.Router()
	if whRepo != nil {
		admin := webhookapi.NewHandler(whRepo, whDeliverer, cfg.ServiceName)
		router.Route("/api/admin/webhooks", func(r chi.Router) {
			r.Use(httputil.BearerAuth(cfg.AdminToken))
			r.Mount("/", admin.Routes())
		})
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httputil.H2CHandler(router),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr), slog.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.AssistantConfig, db *gorm.DB) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		return store.NewFileStore(cfg.StoreFile), nil
	case config.StorePostgres:
		s := store.NewDatabaseStore(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreHTTP:
		client, err := contact.NewClient(cfg.ContactAPIURL, contact.WithBearerToken(cfg.ContactAPIToken))
		if err != nil {
			return nil, err
		}
		return store.NewHTTPStore(client), nil
	default:
		return store.NewMemoryStore(), nil
	}
}
