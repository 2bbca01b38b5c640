package main

import (
	"context"
	"flag"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/docstore"
	"storefront/internal/logger"
	"storefront/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		bootLog := logger.New(logger.Options{ServiceName: "migrate"})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	if *down {
		if err := migrate.Rollback(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("rollback migration")
		}
	} else if err := migrate.Apply(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	version, dirty, err := migrate.Version(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("read schema version")
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Bool("down", *down).Msg("migrations done")

	if cfg.Mongo.URI == "" || *down {
		return
	}
	client, mdb, err := docstore.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	if err := docstore.EnsureIndexes(ctx, mdb); err != nil {
		log.Fatal().Err(err).Msg("ensure mongo indexes")
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo indexes ensured")
}
