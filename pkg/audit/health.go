package audit

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus reports audit-database connectivity and pool statistics.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"responseTimeMs"`
	OpenConnections int           `json:"openConnections"`
	InUse           int           `json:"inUse"`
	Idle            int           `json:"idle"`
}

// Health pings the audit database and reports connection pool statistics.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
	}, nil
}
