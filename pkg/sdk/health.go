package partcat

import (
	"context"
	"time"
)

// HealthStatus represents the aggregated engine health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok" or "error"
}

// Health checks the taxonomy registry and every configured store and provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.health.Check(ctx)
	c.obs.observe("health", start, nil, "status", string(report.Status))

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
