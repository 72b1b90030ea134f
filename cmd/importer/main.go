package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"tripquote/internal/adapters/observability"
	redisad "tripquote/internal/adapters/redis"
	"tripquote/internal/adapters/supplier"
	"tripquote/internal/app"
	"tripquote/internal/shared"
	mysqlrepo "tripquote/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	_ = godotenv.Load()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.SupplierBase).
		Int("workers", cfg.Workers).
		Int("items", len(cfg.ImportItemIDs)).
		Msg("importer starting")

	if len(cfg.ImportItemIDs) == 0 {
		log.Fatal().Msg("IMPORT_ITEM_IDS is empty; nothing to do")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := supplier.New(cfg.SupplierBase, cfg.SupplierKey, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize supplier client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	imp := app.NewImportService(client, repo, cache)
	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, id := range cfg.ImportItemIDs {
		id := id

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(itemID int64) {
			defer wg.Done()
			defer sem.Release(1)

			if err := imp.ImportItem(ctx, itemID); err != nil {
				log.Warn().Int64("id", itemID).Err(err).Msg("import failed")
				return
			}
			log.Info().Int64("id", itemID).Msg("import ok")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("import completed")
}
