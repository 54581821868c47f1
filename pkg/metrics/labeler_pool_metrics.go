package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DBPoolStats is a snapshot of a database/sql connection pool.
type DBPoolStats struct {
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	MaxOpenConnections int           `json:"max_open_connections"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// GetDBPoolStats reads pool statistics from db. A nil db yields the zero value.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}
	s := db.Stats()
	return DBPoolStats{
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		MaxOpenConnections: s.MaxOpenConnections,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}

// PoolHealthStatus grades a connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth is reported by the readiness probe for the postgres model store.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Message     string           `json:"message,omitempty"`
}

// AssessDBPoolHealth grades utilization and wait time.
func AssessDBPoolHealth(stats DBPoolStats) PoolHealth {
	if stats.MaxOpenConnections == 0 {
		return PoolHealth{Status: PoolHealthy, Message: "unlimited connections"}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	health := PoolHealth{Status: PoolHealthy, Utilization: utilization, Message: "pool operating normally"}

	switch {
	case utilization >= 0.95:
		health.Status, health.Message = PoolUnhealthy, "pool nearly exhausted"
	case utilization >= 0.80:
		health.Status, health.Message = PoolDegraded, "high pool utilization"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if health.Status == PoolHealthy {
			health.Status = PoolDegraded
		}
		health.Message = "elevated connection wait times"
	}
	return health
}

// RegisterDBPool exports pool gauges for db under the given pool name.
func RegisterDBPool(reg prometheus.Registerer, name string, db *sql.DB) error {
	labels := prometheus.Labels{"pool": name}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "labeler_db_pool_open_connections",
			Help:        "Open connections in the model store pool",
			ConstLabels: labels,
		}, func() float64 { return float64(GetDBPoolStats(db).OpenConnections) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "labeler_db_pool_in_use",
			Help:        "Connections currently in use",
			ConstLabels: labels,
		}, func() float64 { return float64(GetDBPoolStats(db).InUse) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "labeler_db_pool_wait_count",
			Help:        "Total connections waited for",
			ConstLabels: labels,
		}, func() float64 { return float64(GetDBPoolStats(db).WaitCount) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
