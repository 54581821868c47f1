package http

import (
	"context"
	"database/sql"
	"time"

	"labeler_server/core/port/out"
	"labeler_server/infra/database"
	"labeler_server/pkg/metrics"
	"labeler_server/pkg/resilience"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks   map[string]out.HealthChecker
	breakers []*resilience.CircuitBreaker
	pools    map[string]*sql.DB
	redis    map[string]*redis.Client
	timeout  time.Duration
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		checks:  make(map[string]out.HealthChecker),
		pools:   make(map[string]*sql.DB),
		redis:   make(map[string]*redis.Client),
		timeout: 5 * time.Second,
	}
}

// AddCheck registers a dependency that must answer Ping for the service to be ready.
func (h *HealthHandler) AddCheck(name string, checker out.HealthChecker) *HealthHandler {
	h.checks[name] = checker
	return h
}

// AddBreaker reports a circuit breaker; an open breaker makes the service not ready.
func (h *HealthHandler) AddBreaker(cb *resilience.CircuitBreaker) *HealthHandler {
	h.breakers = append(h.breakers, cb)
	return h
}

// AddPool reports a database pool's health on /ready.
func (h *HealthHandler) AddPool(name string, db *sql.DB) *HealthHandler {
	h.pools[name] = db
	return h
}

// AddRedis pings client on /ready and reports its connection pool.
func (h *HealthHandler) AddRedis(name string, client *redis.Client) *HealthHandler {
	h.redis[name] = client
	return h
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	ready := true
	for name, checker := range h.checks {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			ready = false
			continue
		}
		checks[name] = "healthy"
	}

	breakers := make(map[string]resilience.CircuitBreakerStats, len(h.breakers))
	for _, cb := range h.breakers {
		stats := cb.Stats()
		breakers[stats.Name] = stats
		if cb.State() == resilience.StateOpen {
			ready = false
		}
	}

	pools := make(map[string]metrics.PoolHealth, len(h.pools))
	for name, db := range h.pools {
		health := metrics.AssessDBPoolHealth(metrics.GetDBPoolStats(db))
		pools[name] = health
		if health.Status == metrics.PoolUnhealthy {
			ready = false
		}
	}

	redisPools := make(map[string]*database.RedisStats, len(h.redis))
	for name, client := range h.redis {
		if err := client.Ping(ctx).Err(); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			ready = false
		} else {
			checks[name] = "healthy"
		}
		redisPools[name] = database.GetRedisStats(client)
	}

	status, code := "ready", fiber.StatusOK
	if !ready {
		status, code = "not ready", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"breakers":  breakers,
		"pools":     pools,
		"redis":     redisPools,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
