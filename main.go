package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"genfity-staff-queue/internal/alerts"
	"genfity-staff-queue/internal/bulk"
	"genfity-staff-queue/internal/config"
	"genfity-staff-queue/internal/console"
	"genfity-staff-queue/internal/db"
	"genfity-staff-queue/internal/export"
	httpapi "genfity-staff-queue/internal/http"
	"genfity-staff-queue/internal/http/handlers"
	"genfity-staff-queue/internal/logger"
	"genfity-staff-queue/internal/orderapi"
	"genfity-staff-queue/internal/queue"
	"genfity-staff-queue/internal/storage"
	"genfity-staff-queue/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := orderapi.NewHTTPClient(orderapi.HTTPConfig{
		BaseURL:       cfg.OrderAPIBaseURL,
		Timeout:       cfg.OrderAPITimeout,
		ServiceSecret: cfg.ServiceJWTSecret,
		ServiceName:   cfg.ServiceName,
		TokenTTL:      cfg.ServiceJWTTTL,
	}, log.Named("orderapi"))
	if err != nil {
		log.Fatal("order api client failed", zap.Error(err))
	}

	var (
		printer  bulk.Printer
		exporter bulk.Exporter
		store    *storage.ObjectStore
	)
	if cfg.ObjectStoreEndpoint != "" && cfg.ObjectStoreBucket != "" {
		store, err = storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			log.Warn("object store unavailable; print and export disabled", zap.Error(err))
			store = nil
		}
	} else {
		log.Info("object store disabled (OBJECT_STORE_ENDPOINT or bucket is empty)")
	}
	if store != nil {
		opts := export.Options{MerchantName: cfg.MerchantName, Timezone: cfg.MerchantTimezone}
		printer = export.NewTicketPrinter(store, opts, log.Named("tickets"))
		exporter = export.NewCSVExporter(store, opts)
	}

	hub := ws.NewHub(ws.Config{
		Heartbeat:      cfg.WSHeartbeatInterval,
		AllowedOrigins: cfg.CorsAllowedOrigins,
	}, log.Named("ws"))

	dispatcher := alerts.NewDispatcher(alerts.DispatcherConfig{
		SoundEnabled:     cfg.AlertSoundEnabled,
		VibrationEnabled: cfg.AlertVibrationEnabled,
		DesktopEnabled:   cfg.AlertDesktopEnabled,
		AutoDismiss:      cfg.DesktopAutoDismiss,
	}, map[alerts.Channel]alerts.Sink{
		alerts.ChannelSound:     hub,
		alerts.ChannelVibration: hub,
		alerts.ChannelDesktop:   hub,
	}, log.Named("alerts"))

	var qc *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err = queue.New(cfg.RabbitMQURL)
		if err == nil {
			err = queue.EnsureStaffTopology(qc, cfg.RabbitMQExchange, cfg.RabbitMQQueue)
		}
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq setup failed", zap.Error(err))
			}
			log.Warn("rabbitmq setup failed; continuing without order events", zap.Error(err))
			if qc != nil {
				_ = qc.Close()
			}
			qc = nil
		}
	} else {
		log.Info("order events disabled (RABBITMQ_URL is empty)")
	}
	if qc != nil {
		defer qc.Close()
	}

	deps := console.Deps{
		Client:     api,
		Printer:    printer,
		Exporter:   exporter,
		Dispatcher: dispatcher,
		Hub:        hub,
	}
	if qc != nil {
		deps.Auditor = queue.NewAuditor(qc, cfg.RabbitMQExchange, log.Named("audit"))
	}

	staffConsole := console.New(console.Config{
		RefreshInterval:      cfg.QueueRefreshInterval,
		TickInterval:         cfg.ClockTickInterval,
		NotificationInterval: cfg.NotificationPollInterval,
		Bulk:                 bulk.Config{RatePerSecond: cfg.BulkRatePerSecond},
		Poller: alerts.PollerConfig{
			Limit: cfg.NotificationFetchLimit,
			Retry: alerts.RetryPolicy{
				BaseDelay:  cfg.NotificationRetryBaseDelay,
				MaxRetries: cfg.NotificationMaxRetries,
			},
		},
	}, deps, log.Named("console"))

	hub.SetHooks(ws.Hooks{
		OnConnect: staffConsole.StaffConnected,
		OnDisconnect: func(staffID string) {
			staffConsole.StaffDisconnected(staffID, hub.Connected(staffID))
		},
	})

	h := &handlers.Handler{Console: staffConsole, Logger: log, Config: cfg}
	apiServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     httpapi.NewRouter(log, cfg, h, hub.ServeStaff),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return staffConsole.Run(ctx)
	})

	if qc != nil {
		g.Go(func() error {
			handler := queue.OrderEventHandler(staffConsole.RequestRefresh, log.Named("events"))
			err := qc.ConsumeWithRetry(ctx, cfg.RabbitMQQueue, handler, 5, 5*time.Second, log.Named("events"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("order event consumer stopped", zap.Error(err))
			}
			return nil
		})
	}

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("database unavailable; order LISTEN disabled", zap.Error(err))
		} else {
			defer pool.Close()
			listener := db.NewListener(pool, cfg.DatabaseListenChan, cfg.MerchantID, func(ctx context.Context, _ string) {
				_ = staffConsole.RequestRefresh(ctx, "pg_notify")
			}, log.Named("listen"))
			g.Go(func() error {
				listener.Run(ctx)
				return nil
			})
		}
	}

	if store != nil && cfg.ObjectStoreRetention > 0 {
		g.Go(func() error {
			pruneArtifacts(ctx, store, cfg.ObjectStoreRetention, log.Named("storage"))
			return nil
		})
	}

	g.Go(func() error {
		log.Info("staff queue api ready", zap.String("base", "/api/staff"))
		log.Info("staff queue ws ready", zap.String("base", "/ws/staff"))
		log.Info("staff queue service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("staff queue service stopped", zap.Error(err))
	}
}

// pruneArtifacts removes printed tickets and CSV exports older than retention, once at
// startup and then hourly.
func pruneArtifacts(ctx context.Context, store *storage.ObjectStore, retention time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		cutoff := time.Now().Add(-retention)
		for _, prefix := range []string{"tickets/", "exports/"} {
			removed, err := store.Prune(ctx, prefix, cutoff)
			if err != nil && ctx.Err() == nil {
				log.Warn("artifact prune failed", zap.String("prefix", prefix), zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Info("pruned artifacts", zap.String("prefix", prefix), zap.Int("removed", removed))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
