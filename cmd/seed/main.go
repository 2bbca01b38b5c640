package main

import (
	"context"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	"storefront/internal/seed"
	customersvc "storefront/internal/service/customer"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		bootLog := logger.New(logger.Options{ServiceName: "seed"})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	customers := customersvc.New(
		customerrepo.NewPostgres(pool, log),
		tokenrepo.NewPostgres(pool),
		log,
		customersvc.WithPasswordMinLength(cfg.Auth.PasswordMinLength),
	)
	seeder := seed.New(categoryrepo.NewPostgres(pool), productrepo.NewPostgres(pool, log), customers, log)

	admin := seed.Admin{Email: cfg.Seed.AdminEmail, Password: cfg.Seed.AdminPassword}
	if err := seeder.Apply(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("seed apply")
	}
	log.Info().Msg("seed applied")
}
