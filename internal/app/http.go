package app

import (
	"context"
	"net/http"
	"time"

	"session-service/internal/account"
	"session-service/internal/auth/credentials"
	"session-service/internal/auth/handler"
	"session-service/internal/auth/resolver"
	"session-service/internal/cloudsync"
	"session-service/internal/config"
	"session-service/internal/logger"
	"session-service/internal/metrics"
	"session-service/internal/middleware"
	"session-service/internal/session"
	"session-service/internal/syncgate"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const healthTimeout = 2 * time.Second

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	passwords := credentials.NewService(
		credentials.NewPostgresRepository(infra.DB),
		rate.Limit(cfg.EmailSignInRate),
		cfg.EmailSignInBurst,
	)

	manager := account.NewManager(account.Deps{
		Passwords: passwords,
		Tokens:    registry,
		Resolver:  resolver.NewDBResolver(infra.DB),
		Sessions:  session.NewRedisStore(infra.Redis.Client),
	}, account.Config{
		Timeout:    cfg.SignInTimeout,
		SessionTTL: cfg.ProviderSessionTTL,
	})

	engine := cloudsync.NewEngine(infra.Redis.Client)
	gate := syncgate.New(engine)
	manager.Subscribe(ctx, gate)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	handler.NewHandler(manager).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := gin.H{"postgres": "ok", "redis": "ok"}
		code := http.StatusOK

		if err := infra.DB.PingContext(hctx); err != nil {
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := infra.Redis.Ping(hctx).Err(); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, status)
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// ----------------------------
	// Sync Routes
	// ----------------------------

	api := router.Group("/api/sync")
	api.Use(middleware.GinRequireSync(middleware.NewSyncMiddleware(gate, engine)))

	handler.NewRecordsHandler(engine).RegisterRoutes(api)

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, infra.Close, nil
}
