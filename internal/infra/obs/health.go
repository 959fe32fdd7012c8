package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// HealthHandlers exposes endpoints for liveness and readiness checks.
type HealthHandlers struct {
	Checks  map[string]Check
	Timeout time.Duration
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	failures := h.Probe(c.Request.Context())
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "errors": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Probe runs every check and returns the failures by dependency name.
func (h HealthHandlers) Probe(ctx context.Context) map[string]string {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	failures := map[string]string{}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}
