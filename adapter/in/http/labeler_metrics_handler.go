package http

import (
	"labeler_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes Prometheus metrics and latency percentiles.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
	latency  *metrics.LatencyRegistry
}

func NewMetricsHandler(gatherer prometheus.Gatherer, latency *metrics.LatencyRegistry) *MetricsHandler {
	return &MetricsHandler{gatherer: gatherer, latency: latency}
}

func (h *MetricsHandler) Register(router fiber.Router) {
	router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	router.Get("/metrics/latency", h.Latency)
}

// Latency returns P50/P90/P95/P99 per operation.
// GET /metrics/latency
func (h *MetricsHandler) Latency(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"operations": h.latency.AllStats()})
}
