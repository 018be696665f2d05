package db

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Pinger is the part of the pool the liveness check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// ---------------------------------------------------------------------------
// Liveness monitor
// ---------------------------------------------------------------------------

// Status is the outcome of the most recent ping.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
	Latency   string    `json:"latency"`
}

// Monitor pings the database on a fixed interval and keeps the last result.
type Monitor struct {
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu   sync.RWMutex
	last Status
}

func NewMonitor(db Pinger, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		db:       db,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger.With().Str("component", "db_monitor").Logger(),
	}
}

// Check pings once and records the result.
func (m *Monitor) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.db.Ping(ctx)
	st := Status{Healthy: err == nil, CheckedAt: start.UTC(), Latency: time.Since(start).String()}
	if err != nil {
		st.Error = err.Error()
	}

	m.mu.Lock()
	prev := m.last
	m.last = st
	m.mu.Unlock()

	switch {
	case err != nil && (prev.Healthy || prev.CheckedAt.IsZero()):
		m.logger.Error().Err(err).Msg("database unreachable")
	case err == nil && !prev.Healthy && !prev.CheckedAt.IsZero():
		m.logger.Info().Msg("database reachable again")
	}
	return st
}

// Run checks immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Last returns the most recent status.
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// HealthHandler reports liveness with a fresh ping, adding pool statistics
// when pool is non-nil.
func HealthHandler(m *Monitor, pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := m.Check(c.Request().Context())
		body := map[string]interface{}{"status": "healthy", "database": st}
		if pool != nil {
			body["pool"] = GetPoolStats(pool)
		}
		if !st.Healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
