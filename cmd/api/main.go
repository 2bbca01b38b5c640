package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront/internal/broadcast"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/docstore"
	"storefront/internal/httpserver"
	"storefront/internal/kv"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	cartrepo "storefront/internal/repository/cart"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	wishlistrepo "storefront/internal/repository/wishlist"
	cartsvc "storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	checkoutsvc "storefront/internal/service/checkout"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	wishlistsvc "storefront/internal/service/wishlist"
	"storefront/internal/storefront"
	"storefront/internal/telemetry"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		bootLog := logger.New(logger.Options{ServiceName: "storefront"})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.OTLPEndpoint, cfg.App.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to db")
	}
	defer pool.Close()

	ready := map[string]httpserver.Pinger{
		"postgres": httpserver.PingFunc(pool.Ping),
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = kv.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to redis")
		}
		defer rdb.Close()
		ready["redis"] = httpserver.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// Sync adapters: in-process always, sentinel and channel when Redis is up.
	adapters := []broadcast.Adapter{broadcast.NewLocalBus(cfg.Sync.StreamBuffer)}
	if rdb != nil {
		adapters = append(adapters,
			broadcast.NewSentinel(rdb, cfg.Sync.SentinelPoll, cfg.Sync.SentinelTTL, log),
			broadcast.NewChannel(rdb, log),
		)
	}
	bus := broadcast.NewFanout(uuid.NewString(), log, m, adapters...)
	log.Info().Strs("adapters", bus.Adapters()).Msg("sync adapters ready")

	var carts cartrepo.Storage
	if rdb != nil {
		carts = cartrepo.NewRedis(rdb, cfg.Storage.CartTTL)
	} else {
		carts, err = cartrepo.NewFile(cfg.Storage.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("open cart storage")
		}
	}

	var (
		orders    orderrepo.Repository
		wishlists wishlistrepo.Repository
	)
	if cfg.Mongo.URI != "" {
		client, mdb, err := docstore.Connect(ctx, cfg.Mongo)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := docstore.EnsureIndexes(ctx, mdb); err != nil {
			log.Fatal().Err(err).Msg("ensure mongo indexes")
		}
		orders = orderrepo.NewMongo(mdb, log)
		wishlists = wishlistrepo.NewMongo(mdb)
		ready["mongo"] = httpserver.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) })
	} else {
		if orders, err = orderrepo.NewFile(cfg.Storage.DataDir); err != nil {
			log.Fatal().Err(err).Msg("open order storage")
		}
		if wishlists, err = wishlistrepo.NewFile(cfg.Storage.DataDir); err != nil {
			log.Fatal().Err(err).Msg("open wishlist storage")
		}
	}

	productService := productsvc.New(productrepo.NewPostgres(pool, log), bus, log)
	categoryService := categorysvc.New(categoryrepo.NewPostgres(pool))
	customerService := customersvc.New(
		customerrepo.NewPostgres(pool, log),
		tokenrepo.NewPostgres(pool),
		log,
		customersvc.WithAccessTTL(cfg.Auth.AccessTTL),
		customersvc.WithPasswordMinLength(cfg.Auth.PasswordMinLength),
	)

	var source catalog.Source = productService
	if cfg.Catalog.BaseURL != "" {
		source = catalog.NewHTTPSource(cfg.Catalog.BaseURL, cfg.Catalog.FetchTimeout)
	}
	if rdb != nil {
		cached := catalog.NewCached(source, rdb, cfg.Catalog.CacheTTL, m, log)
		if err := cached.InvalidateOn(ctx, bus); err != nil {
			log.Fatal().Err(err).Msg("subscribe catalog invalidation")
		}
		source = cached
	}

	cartService := cartsvc.New(carts, bus, log, cartsvc.WithMetrics(m), cartsvc.WithCatalog(productService))
	summarizer := storefront.NewSummarizer(cartService, source, cfg.Catalog.FetchTimeout, log)
	orderService := ordersvc.New(orders, log, m, ordersvc.WithCatalog(source, cfg.Catalog.FetchTimeout))
	checkoutService := checkoutsvc.New(summarizer, cartService, orderService, cfg.Checkout.IntakeTimeout, log, m)
	wishlistService := wishlistsvc.New(wishlists, productService, bus, log, m)

	go purgeTokens(ctx, customerService, log)

	srv, err := httpserver.New(cfg.App.HTTPAddr, log, httpserver.Deps{
		Products:     productService,
		Categories:   categoryService,
		Customers:    customerService,
		Carts:        cartService,
		Summaries:    summarizer,
		Checkout:     checkoutService,
		Orders:       orderService,
		Wishlist:     wishlistService,
		Events:       bus,
		PollInterval: cfg.Sync.PollInterval,
		KeepAlive:    cfg.Sync.StreamKeepAlive,
		Metrics:      m,
		Gatherer:     registry,
		Ready:        ready,
		CORSOrigins:  cfg.App.CORSOrigins,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.App.HTTPAddr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return
	}
	log.Info().Msg("server stopped")
}

type tokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func purgeTokens(ctx context.Context, purger tokenPurger, log zerolog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge expired tokens")
				continue
			}
			if n > 0 {
				log.Info().Int64("removed", n).Msg("expired tokens purged")
			}
		}
	}
}
