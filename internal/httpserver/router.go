package httpserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"storefront/internal/logger"
)

// buildRouter wires routes for the API.
func buildRouter(log zerolog.Logger, deps Deps) (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestID(), logger.Gin(log), observe(deps.Metrics), gin.Recovery())

	if len(deps.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = deps.CORSOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
		cfg.ExposeHeaders = []string{requestIDHeader}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	auth := requireAuth(deps.Customers)

	api.GET("/checkout/payment-methods", paymentMethodsHandler)

	if deps.Products != nil {
		h := &catalogHandler{products: deps.Products, categories: deps.Categories}
		api.GET("/products", h.list)
		api.GET("/products/:id", h.get)
		admin := api.Group("/admin/products", auth, requireAdmin())
		admin.POST("", h.create)
		admin.PUT("/:id", h.update)
		admin.DELETE("/:id", h.remove)
		if deps.Categories != nil {
			api.GET("/categories", h.listCategories)
			api.PUT("/admin/categories/:key", auth, requireAdmin(), h.upsertCategory)
		}
	}

	if deps.Customers != nil {
		h := &authHandler{customers: deps.Customers}
		api.POST("/auth/signup", h.signup)
		api.POST("/auth/login", h.login)
		api.POST("/auth/logout", auth, h.logout)
		api.GET("/me", auth, h.me)
	}

	if deps.Carts != nil && deps.Summaries != nil && deps.Products != nil {
		h := &cartHandler{
			carts:     deps.Carts,
			summaries: deps.Summaries,
			products:  deps.Products,
			events:    deps.Events,
			poll:      deps.PollInterval,
			keepAlive: deps.KeepAlive,
			logger:    log,
		}
		carts := api.Group("/carts")
		carts.POST("", h.create)
		carts.GET("/:cartId", h.view)
		carts.DELETE("/:cartId", h.clear)
		carts.GET("/:cartId/summary", h.summary)
		carts.GET("/:cartId/checkout", h.checkoutView)
		carts.POST("/:cartId/items", h.addItem)
		carts.PATCH("/:cartId/items", h.updateItem)
		carts.DELETE("/:cartId/items", h.removeItem)
		if deps.Events != nil {
			carts.GET("/:cartId/events", h.streamEvents)
		}
		if deps.Checkout != nil {
			ch := &checkoutHandler{checkout: deps.Checkout}
			carts.POST("/:cartId/checkout", auth, ch.submit)
		}
	}

	if deps.Orders != nil {
		h := &orderHandler{orders: deps.Orders}
		orders := api.Group("/orders", auth)
		orders.POST("", h.create)
		orders.GET("", h.listMine)
		orders.GET("/:id", h.get)

		admin := api.Group("/admin/orders", auth, requireAdmin())
		admin.GET("", h.listAll)
		admin.PATCH("/:id/status", h.updateStatus)
		admin.DELETE("/:id", h.remove)
	}

	if deps.Wishlist != nil {
		h := &wishlistHandler{wishlist: deps.Wishlist}
		wl := api.Group("/wishlist", auth)
		wl.GET("", h.list)
		wl.POST("", h.add)
		wl.DELETE("", h.clear)
		wl.DELETE("/:productId", h.remove)
	}

	return router, nil
}
