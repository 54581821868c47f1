package bootstrap

import (
	"context"
	"strings"

	"labeler_server/adapter/in/http"
	"labeler_server/config"
	"labeler_server/core/port/out"
	"labeler_server/infra/middleware"
	"labeler_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// bodyLimit bounds request bodies; training texts are single emails.
const bodyLimit = 1 * 1024 * 1024

func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialize dependencies")
		return nil, nil, err
	}
	return newApp(deps), cleanup, nil
}

func newApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit,
		ServerHeader:          "",
		ReadBufferSize:        16384,
	})

	// Order matters: request ID first so every later log line carries it.
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Recover())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID,Retry-After",
		MaxAge:        86400,
	}))

	health := http.NewHealthHandler().AddCheck("store", storeCheck{deps.Stores})
	if deps.Breaker != nil {
		health.AddBreaker(deps.Breaker)
	}
	if deps.SQLDB != nil {
		health.AddPool("model_store", deps.SQLDB.DB)
	}
	if deps.Redis != nil {
		health.AddRedis("redis", deps.Redis)
	}
	health.Register(app)
	http.NewMetricsHandler(deps.Registry, deps.Metrics.Latency()).Register(app)

	api := app.Group("")
	if cfg.RateLimitPerMin > 0 {
		api.Use(middleware.RateLimit(deps.Limiter))
	}
	api.Use(middleware.RequireJSON())
	http.NewClassifierHandler(deps.Classifier, cfg.Classifier.EvalTestFraction, cfg.Classifier.EvalFolds).Register(api)

	return app
}

// storeCheck pings the model store when its backend supports it.
type storeCheck struct{ stores *Stores }

func (s storeCheck) Ping(ctx context.Context) error {
	if hc, ok := s.stores.Store.(out.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}
