package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/iconduit/go-iconduit/service/breaker"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/util"
)

// healthcheck reports overall service health: degraded while either circuit
// breaker is open, healthy otherwise.
func healthcheck(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		indexState := res.index.BreakerState()
		blobState := res.blobs.BreakerState()

		status := "healthy"
		httpStatus := http.StatusOK
		if indexState == breaker.StateOpen || blobState == breaker.StateOpen {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":  status,
			"env":     viper.GetString("ENV"),
			"version": viper.GetString("VERSION"),
			"breakers": gin.H{
				"index": indexState.String(),
				"blob":  blobState.String(),
			},
			"memoryCache": res.memory.Stats(),
		})
	}
}

// liveness only proves the process is serving requests.
func liveness() gin.HandlerFunc {
	return util.HealthCheckHandler()
}

// readiness proves the index backend is reachable.
func readiness(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := res.index.GetIndex(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "index unavailable"})
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// metricsJSON dumps the counter and timer snapshot.
func metricsJSON(res *resources) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := metric.Default().Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"counters":    snap.Counters,
			"timers":      snap.Timers,
			"memoryCache": res.memory.Stats(),
			"inFlight":    res.flights.PendingCount(),
		})
	}
}
