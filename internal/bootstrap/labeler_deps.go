package bootstrap

import (
	"context"
	"fmt"
	"time"

	"labeler_server/adapter/out/mongodb"
	"labeler_server/adapter/out/persistence"
	"labeler_server/config"
	"labeler_server/core/domain"
	"labeler_server/core/port/out"
	"labeler_server/core/service/classification"
	"labeler_server/core/service/training"
	"labeler_server/infra/database"
	"labeler_server/pkg/cache"
	"labeler_server/pkg/logger"
	"labeler_server/pkg/metrics"
	"labeler_server/pkg/ratelimit"
	"labeler_server/pkg/resilience"
	"labeler_server/pkg/snowflake"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stores holds the model store and the clients behind it.
type Stores struct {
	Store   out.ModelStore
	Breaker *resilience.CircuitBreaker // nil for the file backend

	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
}

// OpenStore connects the configured backend. Remote backends are wrapped in a circuit breaker.
func OpenStore(ctx context.Context, cfg *config.Config) (*Stores, func(), error) {
	stores := &Stores{}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Redis also backs the shared rate limiter, so connect it whenever configured.
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.Redis = client
		cleanups = append(cleanups, func() { _ = client.Close() })
	}

	codec := persistence.NewCodec(domain.Settings{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		MinTextLength:       cfg.Classifier.MinTextLength,
	})

	var remote out.ModelStore
	switch cfg.Store.Backend {
	case config.StoreFile:
		stores.Store = persistence.NewFileStore(cfg.Store.Path, codec)

	case config.StoreRedis:
		remote = persistence.NewRedisStore(cache.NewRedisCache(stores.Redis), cfg.Store.RedisKey, codec)

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		stores.SQLDB = db
		cleanups = append(cleanups, func() { _ = db.Close() })

		pg, err := persistence.NewPostgresStore(db, cfg.Store.TableName, cfg.Store.StateID, codec)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		remote = pg

	case config.StoreMongoDB:
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL, cfg.Store.Timeout)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		stores.MongoDB = client
		cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })

		coll := client.Database(cfg.MongoDBName).Collection(cfg.Store.Collection)
		remote = mongodb.NewModelStore(coll, cfg.Store.StateID, codec)

	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown model store %q", cfg.Store.Backend)
	}

	if remote != nil {
		resilient := persistence.NewResilientStore(remote, nil, cfg.Store.Timeout)
		stores.Store = resilient
		stores.Breaker = resilient.Breaker()
	}

	logger.WithField("store", stores.Store.Name()).Info("model store ready")
	return stores, cleanup, nil
}

// ServiceConfig maps configuration onto the training controller parameters.
func ServiceConfig(cfg *config.Config) training.Config {
	c := cfg.Classifier
	sc := training.DefaultConfig()
	sc.Vectorizer = classification.VectorizerOptions{
		NGramMax:    c.NGramMax,
		MinDF:       c.MinDF,
		MaxFeatures: c.MaxFeatures,
	}
	sc.Alpha = c.Alpha
	sc.Settings = domain.Settings{
		ConfidenceThreshold: c.ConfidenceThreshold,
		MinTextLength:       c.MinTextLength,
	}
	sc.EvalSeed = c.EvalSeed
	return sc
}

// NewClassifier restores the controller from store.
func NewClassifier(ctx context.Context, cfg *config.Config, store out.ModelStore, opts ...training.Option) (*training.Service, error) {
	ids, err := snowflake.NewGenerator(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	opts = append([]training.Option{training.WithIDGenerator(ids)}, opts...)
	return training.NewService(ctx, store, ServiceConfig(cfg), opts...), nil
}

// Dependencies is everything the API needs.
type Dependencies struct {
	Config *config.Config
	*Stores

	Registry   *prometheus.Registry
	Metrics    *metrics.Collector
	Limiter    ratelimit.Limiter
	Classifier *training.Service
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	stores, closeStores, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	deps := &Dependencies{Config: cfg, Stores: stores}

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.NewCollector(deps.Registry, metrics.NewLatencyRegistry(1000))
	if stores.SQLDB != nil {
		if err := metrics.RegisterDBPool(deps.Registry, "model_store", stores.SQLDB.DB); err != nil {
			closeStores()
			return nil, nil, err
		}
	}

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	deps.Limiter = newLimiter(limiterCtx, cfg, stores.Redis)

	deps.Classifier, err = NewClassifier(ctx, cfg, stores.Store, training.WithObserver(deps.Metrics))
	if err != nil {
		stopLimiter()
		closeStores()
		return nil, nil, err
	}

	return deps, func() {
		stopLimiter()
		closeStores()
	}, nil
}

// newLimiter shares the window through Redis when available, otherwise limits per node.
func newLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) ratelimit.Limiter {
	window := time.Minute
	if client != nil {
		return ratelimit.NewSlidingWindowLimiter(client, cfg.RateLimitPerMin, window)
	}
	l := ratelimit.NewWindowLimiter(cfg.RateLimitPerMin, window)
	go l.Run(ctx)
	return l
}
