package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPostgresConfig returns pool defaults sized for a single-writer model store.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

func NewPostgres(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	return NewPostgresWithConfig(ctx, databaseURL, DefaultPostgresConfig())
}

// NewPostgresWithConfig opens a sqlx handle over the pgx driver and verifies connectivity.
func NewPostgresWithConfig(ctx context.Context, databaseURL string, cfg *PostgresConfig) (*sqlx.DB, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}

	connCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// Simple protocol keeps sqlx named queries free of prepared statement cache conflicts.
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	db := sqlx.NewDb(stdlib.OpenDB(*connCfg), "pgx")
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// RedisConfig holds Redis client settings.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns client defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	return NewRedisWithConfig(ctx, redisURL, DefaultRedisConfig())
}

func NewRedisWithConfig(ctx context.Context, redisURL string, cfg *RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStats is a snapshot of the client pool.
type RedisStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

func GetRedisStats(client *redis.Client) *RedisStats {
	stat := client.PoolStats()
	return &RedisStats{
		Hits:       stat.Hits,
		Misses:     stat.Misses,
		Timeouts:   stat.Timeouts,
		TotalConns: stat.TotalConns,
		IdleConns:  stat.IdleConns,
	}
}
