package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"dealstream/internal/api/rest"
	"dealstream/internal/config"
	"dealstream/internal/logging"
	"dealstream/internal/notify"
	"dealstream/internal/realtime"
	"dealstream/internal/repository"
	"dealstream/internal/supa"
)

func main() {
	runFeed := flag.Bool("feed", true, "Run the change-stream notification feed")
	flag.Parse()

	// 1. Load configuration and logging
	cfg := config.Load()
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	repository.SetValidationConfig(repository.ValidationConfig{
		MaxPageLimit: cfg.Server.MaxPageLimit,
	})

	// 2. Query channel factory
	factory, err := supa.NewFactory(supa.FactoryConfig{
		URL:        cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		ServiceKey: cfg.Supabase.ServiceKey,
		Timeout:    cfg.Supabase.Timeout,
	})
	if err != nil {
		slog.Error("Failed to create channel factory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Background feed: change stream -> filter gate -> delivery.
	// Runs on the admin channel so it can see every subscriber's rows.
	var gate *notify.Gate
	var manager *realtime.Manager
	if *runFeed {
		adminChannel, err := factory.Channel(supa.Admin())
		if err != nil {
			slog.Error("Feed requires the service key", "error", err)
			os.Exit(1)
		}

		var deliverer notify.Deliverer
		if cfg.Notify.NATSURL != "" {
			nc, err := nats.Connect(cfg.Notify.NATSURL)
			if err != nil {
				slog.Error("Failed to connect to NATS", "url", cfg.Notify.NATSURL, "error", err)
				os.Exit(1)
			}
			defer nc.Close()
			deliverer, err = notify.NewNATSDeliverer(ctx, nc)
			if err != nil {
				slog.Error("Failed to set up delivery stream", "error", err)
				os.Exit(1)
			}
		}

		notificationRepo := repository.NewNotificationRepo(adminChannel)
		userRepo := repository.NewUserRepo(adminChannel)
		productRepo := repository.NewProductRepo(adminChannel)

		gate = notify.NewGate(notificationRepo, notificationRepo, deliverer, cfg.Notify.SettingsCacheTTL)
		defer gate.Close()

		apikey, token, err := factory.Credentials(supa.Admin())
		if err != nil {
			slog.Error("Failed to resolve stream credentials", "error", err)
			os.Exit(1)
		}
		manager = realtime.NewManager(realtime.Config{
			URL:               cfg.Supabase.URL,
			APIKey:            apikey,
			Token:             token,
			HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
			ConnectTimeout:    cfg.Realtime.ConnectTimeout,
			ReconnectBase:     cfg.Realtime.ReconnectBase,
			ReconnectMax:      cfg.Realtime.ReconnectMax,
			MaxAttempts:       cfg.Realtime.MaxAttempts,
		})
		defer manager.Close()

		feed := notify.NewFeed(manager, gate, userRepo, productRepo)
		if err := feed.Start(ctx); err != nil {
			slog.Error("Failed to start notification feed", "error", err)
			os.Exit(1)
		}
		defer feed.Stop()
		slog.Info("Notification feed started")
	}

	// 4. HTTP server
	mux := http.NewServeMux()
	rest.NewHandler(factory, gate).RegisterRoutes(mux)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// 5. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
}
