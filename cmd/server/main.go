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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/auth"
	"github.com/laughstock/market-engine/internal/config"
	"github.com/laughstock/market-engine/internal/limits"
	"github.com/laughstock/market-engine/internal/metrics"
	"github.com/laughstock/market-engine/internal/model"
	"github.com/laughstock/market-engine/internal/pricing"
	"github.com/laughstock/market-engine/internal/store"
	"github.com/laughstock/market-engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Optional .env for local development; real deployments set the
	// environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, time.Duration(cfg.CacheTTLSecs)*time.Second)
			slog.Info("Redis cache enabled", "ttl_seconds", cfg.CacheTTLSecs)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		ms := store.NewMemoryStore()
		if cfg.SeedDemoData {
			seedDemoAssets(ms)
		}
		st = ms
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Auth ---
	var verifier auth.Verifier
	if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
		verifier = auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		slog.Info("Supabase token verification enabled")
	} else {
		slog.Warn("SUPABASE_URL not set, tokens are accepted as user ids (dev only)")
		verifier = auth.StaticVerifier{}
	}

	// --- Price formation engine ---
	engine, err := pricing.NewEngine(cfg.PriceStepSize, cfg.PriceChangePerStep, cfg.PriceMin)
	if err != nil {
		slog.Error("invalid pricing configuration", "err", err)
		os.Exit(1)
	}

	// --- Trade limits ---
	limiter := limits.NewTradeLimiter(cfg.MaxTradeQuantity, cfg.MaxHoldingsPerAsset)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	tradeSvc := trade.NewService(st, engine, limiter, wsHub)
	tradeSvc.SetStartingCoins(cfg.StartingCoins)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price updates.
		r.Get("/ws", wsHub.HandleWS)

		// Asset management.
		r.Get("/assets", tradeSvc.ListAssets)
		r.Post("/assets", tradeSvc.CreateAsset)
		r.Get("/assets/{assetID}", tradeSvc.GetAsset)
		r.Get("/assets/{assetID}/price", tradeSvc.GetAssetPrice)
		r.Get("/assets/{assetID}/history", tradeSvc.GetAssetHistory)

		// Authenticated trade and portfolio routes.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))
			r.Post("/register", tradeSvc.Register)
			r.Post("/buy", tradeSvc.Buy)
			r.Post("/sell", tradeSvc.Sell)
			r.Get("/portfolio", tradeSvc.GetPortfolio)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("market-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down market-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("market-engine stopped")
}

// seedDemoAssets lists a handful of comedians so the in-memory mode is
// usable out of the box.
func seedDemoAssets(ms *store.MemoryStore) {
	demo := []struct {
		id, symbol, name string
	}{
		{"demo-rgrv", "RGRV", "Ricky Gervais"},
		{"demo-jmul", "JMUL", "John Mulaney"},
		{"demo-awng", "AWNG", "Ali Wong"},
		{"demo-nbar", "NBAR", "Nate Bargatze"},
	}
	for _, a := range demo {
		err := ms.CreateAsset(context.Background(), &model.Asset{
			ID:           a.id,
			Symbol:       a.symbol,
			Name:         a.name,
			CurrentPrice: decimal.NewFromInt(100),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("demo asset seed failed", "symbol", a.symbol, "err", err)
			continue
		}
	}
	slog.Info("seeded demo assets", "count", len(demo))
}
