package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/config"
	"hunter-compare/pkg/events"
	"hunter-compare/pkg/jobs"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/search"
	"hunter-compare/pkg/storage"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Environment)
	log := logger.For("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	// A crash leaves claimed categories behind; nothing is running yet.
	if n, err := store.ResetStaleClaims(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset stale claims")
	} else if n > 0 {
		log.Warn().Int64("categories", n).Msg("Released categories left in progress")
	}

	orchestrator, err := search.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build search orchestrator")
	}

	results := resultCache(cfg, store, log)
	publisher := eventPublisher(ctx, cfg, log)
	defer publisher.Close()

	scheduler := jobs.NewScheduler(store, orchestrator, jobs.Options{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		StaleAfter: cfg.StaleAfter,
	}, jobs.WithCache(results), jobs.WithPublisher(publisher))

	jobEvents, unsubscribe := scheduler.Subscribe()
	defer unsubscribe()
	go logJobEvents(jobEvents)

	scheduler.Start(ctx)
	defer scheduler.Stop()

	app := newApp(store, scheduler, results)

	ip := GetOutboundIP()
	if ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), cfg.Port)
	} else {
		fmt.Println("Could not determine local IP address.")
	}
	fmt.Printf("Access URL: http://localhost:%s\n", cfg.Port)
	fmt.Printf("API Docs: http://localhost:%s/\n", cfg.Port)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}
}

// resultCache keeps snapshots in the database, fronted by memcache when
// MEMCACHE_ADDR is set and reachable.
func resultCache(cfg *config.Config, store *storage.Store, log *logger.Logger) cache.ResultCache {
	snapshots := cache.NewSnapshots(store, cfg.StaleAfter)
	if cfg.MemcacheAddr == "" {
		return snapshots
	}
	mc := cache.NewMemcache(cfg.MemcacheAddr, cfg.StaleAfter)
	if err := mc.Ping(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using database snapshots only")
		return snapshots
	}
	log.Info().Str("addr", cfg.MemcacheAddr).Msg("Memcache result cache enabled")
	return cache.Tiered{mc, snapshots}
}

func eventPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) events.Publisher {
	if cfg.RedisAddr == "" {
		return events.Nop{}
	}
	p := events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLen)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, job events stay in process")
		p.Close()
		return events.Nop{}
	}
	log.Info().Str("stream", cfg.RedisStream).Msg("Publishing job events to redis")
	return p
}

func logJobEvents(ch <-chan events.JobEvent) {
	log := logger.For("events")
	for ev := range ch {
		e := log.Info()
		if ev.Status == events.StatusFailed {
			e = log.Warn().Str("error", ev.Error)
		}
		e = e.Str("job_id", ev.JobID).Str("category", ev.Category).Str("status", string(ev.Status))
		if ev.Stats != nil {
			e = e.Int("pairs", ev.Pairs).
				Int("created", ev.Stats.Created).
				Int("price_changed", ev.Stats.PriceChanged).
				Int("failed", ev.Stats.Failed)
		}
		e.Msg("Job event")
	}
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
