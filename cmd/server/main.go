package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/FinnSolly2/TradeQuest1/internal/config"
	"github.com/FinnSolly2/TradeQuest1/internal/feed"
	"github.com/FinnSolly2/TradeQuest1/internal/history"
	"github.com/FinnSolly2/TradeQuest1/internal/ledger"
	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/pipeline"
	"github.com/FinnSolly2/TradeQuest1/internal/quote"
	"github.com/FinnSolly2/TradeQuest1/internal/sim"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
	"github.com/FinnSolly2/TradeQuest1/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize stores ---
	var st store.Store
	var objects store.Objects
	var cleanup []func()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		objects = store.NewRedisObjects(rdb)
		slog.Info("Redis object store enabled")
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		if err := store.InitSchema(ctx, pool); err != nil {
			slog.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		st = store.NewPostgresStore(pool)
		if objects == nil {
			objects = store.NewPostgresObjects(pool)
		}
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil && cfg.CacheTTL > 0 {
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}
	if objects == nil {
		objects = store.NewMemoryObjects()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote source ---
	var src quote.Source
	switch cfg.QuoteSource {
	case "static":
		prices := make(map[string]float64, len(cfg.TrackedSymbols))
		for _, sym := range cfg.TrackedSymbols {
			prices[sym] = 100
		}
		src = quote.NewStatic(prices)
	default:
		start := make(map[string]float64, len(cfg.TrackedSymbols))
		for _, sym := range cfg.TrackedSymbols {
			start[sym] = 100
		}
		src = quote.NewRandomWalk(start, 0.002, uint64(time.Now().UnixNano()))
	}

	// --- Feed pipeline ---
	agg := history.New(cfg.TrackedSymbols, history.WithReadyRatio(cfg.ReadyRatio))
	priceFeed := feed.New()
	wsHub := trade.NewWSHub()
	go wsHub.Run(ctx)

	collector := pipeline.NewCollector(agg, src, objects, cfg.FetchTimeout)
	simulator := pipeline.NewSimulator(agg, sim.NewGenerator(0), priceFeed, feed.NewArchive(objects), wsHub)

	if err := collector.Restore(ctx); err != nil {
		slog.Warn("history restore failed", "err", err)
	}
	if err := simulator.Restore(ctx); err != nil {
		slog.Warn("batch restore failed", "err", err)
	}
	// Warm up once here; the loops below start at their first tick.
	if err := collector.RunOnce(ctx); err != nil {
		slog.Warn("initial collection failed", "err", err)
	}
	if simulator.Due() {
		if err := simulator.RunOnce(ctx); err != nil {
			slog.Warn("initial simulation failed", "err", err)
		}
	}

	go pipeline.Run(ctx, collector, cfg.CollectInterval)
	go pipeline.RunAligned(ctx, simulator, cfg.SimulateInterval)

	// --- Trade service ---
	led := ledger.New(st, priceFeed, ledger.WithStoreTimeout(cfg.StoreTimeout))
	tradeSvc := trade.NewService(led, priceFeed, agg, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"tradequest"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for trade and batch events.
		r.Get("/ws", wsHub.HandleWS)
		tradeSvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("tradequest listening", "port", cfg.Port, "symbols", len(cfg.TrackedSymbols))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down tradequest...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("tradequest stopped")
}
