package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	server "tripquote/internal/adapters/http_server"
	"tripquote/internal/adapters/observability"
	redisad "tripquote/internal/adapters/redis"
	"tripquote/internal/app"
	"tripquote/internal/pricing"
	"tripquote/internal/shared"
	mysqlrepo "tripquote/internal/storage/mysql"
)

func main() {
	_ = godotenv.Load()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	policy := pricing.MarkupPolicy{CeilingPct: cfg.MarkupCeilingPct}
	quotes := app.NewQuoteService(repo, repo, repo, cache, cfg.CacheTTL, policy)
	pricer := app.NewPricingService(repo, repo, policy)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Quotes: quotes, Pricing: pricer, Catalog: repo})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
