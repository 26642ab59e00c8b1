package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vjranagit/pulsebridge/internal/config"
	"github.com/vjranagit/pulsebridge/pkg/analytics"
	"github.com/vjranagit/pulsebridge/pkg/api"
	"github.com/vjranagit/pulsebridge/pkg/ingest"
	"github.com/vjranagit/pulsebridge/pkg/store"
	"github.com/vjranagit/pulsebridge/pkg/stream"
	"github.com/vjranagit/pulsebridge/pkg/types"
)

const (
	version = "0.3.0"

	heartSeries = "heart"
	focusSeries = "focus"
)

func main() {
	fmt.Printf("pulsebridge v%s\n", version)
	fmt.Println("Heart-rate / window-focus ingestion and analytics service")
	fmt.Println()

	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Listen Address: %s", cfg.Server.ListenAddr)
	log.Printf("  Storage Path: %s", cfg.Storage.Path)
	log.Printf("  Retention: %d heart / %d focus entries", cfg.Storage.HeartRetention, cfg.Storage.FocusRetention)
	log.Printf("  Snapshot Interval: %s", cfg.Storage.SnapshotInterval)

	hearts := store.New[types.HeartSample](cfg.Storage.HeartRetention)
	focus := store.New[types.FocusEvent](cfg.Storage.FocusRetention)

	// A failed backend open degrades to memory-only operation; ingestion
	// never depends on the disk.
	backendMode := "badger"
	backend, err := store.OpenBackend(cfg.Storage.Path)
	if err != nil {
		backendMode = "memory"
		log.Printf("Durable backend unavailable, running memory-only: %v", err)
	} else {
		defer backend.Close()
		rehydrate(backend, hearts, focus)
	}

	saveAll := func() error {
		if backend == nil {
			return nil
		}
		if err := store.SaveSeries(backend, heartSeries, hearts.Snapshot()); err != nil {
			return err
		}
		return store.SaveSeries(backend, focusSeries, focus.Snapshot())
	}

	snapshotter := store.NewSnapshotter(cfg.Storage.SnapshotInterval, saveAll)
	go snapshotter.Run()

	sessions := stream.NewTracker(cfg.Stream.SessionTimeout)
	go sessions.Run(cfg.Stream.SweepInterval)

	heartBus := stream.NewBroadcaster[types.HeartSample](cfg.Stream.QueueSize)
	focusBus := stream.NewBroadcaster[types.FocusEvent](cfg.Stream.QueueSize)

	gateway := ingest.NewGateway(hearts, focus, heartBus, focusBus, sessions, cfg.Ingest.DefaultSource)

	server := api.NewServer(api.Options{
		Addr:        cfg.Server.ListenAddr,
		ReadTimeout: cfg.Server.ReadTimeout,
		KeepAlive:   cfg.Stream.KeepAlive,
		Gateway:     gateway,
		Hearts:      hearts,
		Focus:       focus,
		HeartBus:    heartBus,
		FocusBus:    focusBus,
		Sessions:    sessions,
		Cache:       analytics.NewResultCache(cfg.Analytics.CacheCapacity, cfg.Analytics.CacheTTL),
		Thresholds:  cfg.Thresholds(),
		Persist:     saveAll,
		BackendMode: backendMode,
	})

	go func() {
		log.Printf("API server listening on %s", cfg.Server.ListenAddr)
		if err := server.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	sessions.Close()
	if err := snapshotter.Close(); err != nil {
		log.Printf("Final snapshot error: %v", err)
	}

	log.Println("Server stopped successfully")
}

// rehydrate loads the last durable snapshots into the stores before
// ingestion begins.
func rehydrate(backend *store.Backend, hearts *store.Store[types.HeartSample], focus *store.Store[types.FocusEvent]) {
	heartEntries, err := store.LoadSeries[types.HeartSample](backend, heartSeries)
	if err != nil {
		log.Printf("Heart series rehydration failed: %v", err)
	} else if len(heartEntries) > 0 {
		hearts.Rehydrate(heartEntries)
		log.Printf("Rehydrated %d heart samples", len(heartEntries))
	}

	focusEntries, err := store.LoadSeries[types.FocusEvent](backend, focusSeries)
	if err != nil {
		log.Printf("Focus series rehydration failed: %v", err)
	} else if len(focusEntries) > 0 {
		focus.Rehydrate(focusEntries)
		log.Printf("Rehydrated %d focus events", len(focusEntries))
	}
}
