package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/importer"
	"storefront/internal/logger"
	categoryrepo "storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product CSV export")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		bootLog := logger.New(logger.Options{ServiceName: "importer"})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Options{
		ServiceName: "importer",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open file")
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, productrepo.NewPostgres(pool, log), categoryrepo.NewPostgres(pool), log)

	start := time.Now()
	report, err := imp.Run(ctx)
	for _, e := range multierr.Errors(err) {
		log.Warn().Err(e).Msg("import problem")
	}

	fmt.Printf("Imported %d products (%d categories, %d rows skipped) in %s\n",
		report.Imported, report.Categories, report.Skipped, time.Since(start).Truncate(time.Millisecond))
	if err != nil {
		os.Exit(1)
	}
}
