package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"kitchenedge/alarm"
	"kitchenedge/config"
	"kitchenedge/engine"
	"kitchenedge/messaging"
	"kitchenedge/orderstore"
	"kitchenedge/orderstore/mongostore"
	"kitchenedge/printing"
	"kitchenedge/settings"
	"kitchenedge/store"
	"kitchenedge/www"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the display sessions and the web API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port > 0 {
				cfg.Web.Port = port
			}
			return serve(cfg, root.Debug)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	return cmd
}

func serve(cfg *config.Config, debug bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" {
		msgClient = messaging.NewClient(&cfg.Messaging, cfg.ClientID())
		defer msgClient.Close()
		if err := msgClient.Connect(); err != nil {
			log.Printf("messaging connect: %v (push and bluetooth relay disabled)", err)
			msgClient = nil
		}
	}

	orderStore, closeStore, err := openOrderStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	push, orderStore, err := openPush(cfg, orderStore, msgClient)
	if err != nil {
		return err
	}

	var settingsStore settings.Store
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis ping: %v (settings reads fall back to defaults until it recovers)", err)
		}
		settingsStore = settings.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Display)
	}

	hub := www.NewEventHub()
	bridge := www.NewHostBridge(hub, cfg.Print.HostAckTimeout, cfg.Print.ThermalScheme)
	var relay printing.Publisher
	if msgClient != nil {
		relay = msgClient
	}

	eng := engine.New(engine.Config{
		AppConfig: cfg,
		Store:     orderStore,
		Push:      push,
		Settings:  settingsStore,
		Hosts:     bridge.ForDisplay,
		Alerters:  func(display string) alarm.Alerter { return hub.Alerter(display) },
		Relay:     relay,
		LogFunc:   log.Printf,
		Debug:     debug,
	})
	router, stopWeb := www.NewRouter(eng, hub, bridge)
	defer stopWeb()
	eng.Start(ctx)
	defer eng.Stop()

	if msgClient != nil && cfg.Messaging.HeartbeatTopic != "" {
		hb := messaging.NewHeartbeater(msgClient, cfg.StationID, version, cfg.Messaging.HeartbeatTopic, cfg.Messaging.HeartbeatInterval, eng.DisplayStatuses)
		hb.Start()
		defer hb.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("kitchenedge listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Println("Shutting down...")
	stopWeb()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	return nil
}

func openOrderStore(ctx context.Context, cfg *config.Config) (orderstore.Store, func(), error) {
	switch cfg.OrderStore.Backend {
	case "", "http":
		return orderstore.NewHTTPClient(cfg.OrderStore.BaseURL, cfg.OrderStore.Timeout), func() {}, nil
	case "sql":
		db, err := store.Open(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, func() { db.Close() }, nil
	case "mongo":
		ms, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ms.Close(closeCtx)
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported order store backend: %s", cfg.OrderStore.Backend)
}

// openPush picks the push channel. The local push wraps the store so that
// changes made through this station reach every display at once.
func openPush(cfg *config.Config, s orderstore.Store, msgClient *messaging.Client) (orderstore.PushSource, orderstore.Store, error) {
	switch cfg.OrderStore.Push {
	case "", "none":
		return nil, s, nil
	case "sse":
		return orderstore.NewSSEPush(cfg.OrderStore.BaseURL), s, nil
	case "messaging":
		if msgClient == nil {
			log.Printf("order push: messaging unavailable, relying on pulls")
			return nil, s, nil
		}
		return orderstore.NewMessagingPush(msgClient, cfg.Messaging.OrderEventsTopic, cfg.StationID), s, nil
	case "local":
		n := orderstore.NewNotifier()
		return n, orderstore.NewNotifyingStore(s, n), nil
	}
	return nil, nil, fmt.Errorf("unsupported order push: %s", cfg.OrderStore.Push)
}
