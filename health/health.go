// Package health provides dependency checks for the platform's /healthz
// endpoint: cache, database, and scanner-registry reachability.
package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// State classifies a check result.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status is the outcome of a single check or an aggregation of checks.
type Status struct {
	State   State          `json:"state"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// IsHealthy returns true when the state is healthy.
func (s Status) IsHealthy() bool { return s.State == StateHealthy }

// IsUnhealthy returns true when the state is unhealthy.
func (s Status) IsUnhealthy() bool { return s.State == StateUnhealthy }

// Healthy builds a healthy status.
func Healthy(message string) Status {
	return Status{State: StateHealthy, Message: message}
}

// Degraded builds a degraded status: usable but impaired.
func Degraded(message string, details map[string]any) Status {
	return Status{State: StateDegraded, Message: message, Details: details}
}

// Unhealthy builds an unhealthy status.
func Unhealthy(message string, details map[string]any) Status {
	return Status{State: StateUnhealthy, Message: message, Details: details}
}

// Check probes one dependency.
type Check func(ctx context.Context) Status

// TCP checks TCP connectivity to host:port.
func TCP(host string, port int) Check {
	return func(ctx context.Context) Status {
		if host == "" {
			return Unhealthy("host cannot be empty", nil)
		}
		if port <= 0 || port > 65535 {
			return Unhealthy(fmt.Sprintf("invalid port number: %d", port),
				map[string]any{"port": port})
		}

		address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return Unhealthy(fmt.Sprintf("failed to connect to %s", address),
				map[string]any{"address": address, "error": err.Error()})
		}
		conn.Close()
		return Healthy(fmt.Sprintf("connected to %s", address))
	}
}

// Redis checks the query cache by pinging it. A down cache degrades the
// service rather than taking it out: reads fall through to the database.
func Redis(client *redis.Client) Check {
	return func(ctx context.Context) Status {
		if client == nil {
			return Degraded("cache not configured", nil)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return Degraded("cache unreachable",
				map[string]any{"error": err.Error()})
		}
		return Healthy("cache reachable")
	}
}

// Database checks the findings database with a ping.
func Database(db *gorm.DB) Check {
	return func(ctx context.Context) Status {
		if db == nil {
			return Unhealthy("database not configured", nil)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return Unhealthy("database handle unavailable",
				map[string]any{"error": err.Error()})
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return Unhealthy("database unreachable",
				map[string]any{"error": err.Error()})
		}
		return Healthy("database reachable")
	}
}

// Run executes the named checks and returns their results plus the
// combined status.
func Run(ctx context.Context, checks map[string]Check) (map[string]Status, Status) {
	results := make(map[string]Status, len(checks))
	statuses := make([]Status, 0, len(checks))
	for name, check := range checks {
		s := check(ctx)
		results[name] = s
		statuses = append(statuses, s)
	}
	return results, Combine(statuses...)
}

// Combine aggregates statuses: any unhealthy wins, then any degraded,
// otherwise healthy.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthy, degraded []string
	healthyCount := 0
	for _, check := range checks {
		switch check.State {
		case StateUnhealthy:
			unhealthy = append(unhealthy, check.Message)
		case StateDegraded:
			degraded = append(degraded, check.Message)
		case StateHealthy:
			healthyCount++
		}
	}

	if len(unhealthy) > 0 {
		return Unhealthy(fmt.Sprintf("%d check(s) failed", len(unhealthy)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthy),
				"degraded":      len(degraded),
				"healthy":       healthyCount,
				"failed_checks": unhealthy,
			})
	}
	if len(degraded) > 0 {
		return Degraded(fmt.Sprintf("%d check(s) degraded", len(degraded)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degraded),
				"healthy":         healthyCount,
				"degraded_checks": degraded,
			})
	}
	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
