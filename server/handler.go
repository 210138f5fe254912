package server

import (
	"github.com/gin-gonic/gin"

	"github.com/iconduit/go-iconduit/service/blob"
	"github.com/iconduit/go-iconduit/service/coalesce"
	"github.com/iconduit/go-iconduit/service/index"
	"github.com/iconduit/go-iconduit/service/memcache"
	"github.com/iconduit/go-iconduit/service/metric"
	"github.com/iconduit/go-iconduit/service/search"
	"github.com/iconduit/go-iconduit/service/transform"
)

// resources holds the long-lived collaborators the handlers close over.
type resources struct {
	index     *index.Store
	blobs     *blob.Store
	transform *transform.Engine
	search    *search.Engine
	memory    *memcache.Memory
	edge      memcache.Edge
	flights   *coalesce.Group[renderedIcon]
}

func (r *resources) initFlights() {
	r.flights = coalesce.NewGroup[renderedIcon](func(key string) {
		source, _ := splitFingerprintSource(key)
		metric.Default().DedupHit(source)
	})
}

func handlersInit(router *gin.Engine, res *resources) *gin.Engine {

	// The core set is served identically at the root and under /v1.
	for _, group := range []*gin.RouterGroup{router.Group("/"), router.Group("/v1")} {

		iconsGroup := group.Group("/icons")

		iconsGroup.GET("/:name", getIcon(res))
		iconsGroup.GET("/:name/:subname", getIcon(res))
		iconsGroup.POST("/batch", batchIcons(res))

		group.POST("/bulk", bulkIcons(res))

		group.GET("/search", searchIcons(res))
		group.GET("/sources", listSources(res))
		group.GET("/sources/:source", getSource(res))
		group.GET("/categories", listCategories(res))
		group.GET("/categories/:category", getCategory(res))
		group.GET("/random", randomIcon(res))

		group.GET("/health", healthcheck(res))
		group.GET("/health/live", liveness())
		group.GET("/health/ready", readiness(res))

		group.GET("/metrics", metricsJSON(res))
		group.GET("/metrics/prometheus", gin.WrapH(metric.Default().PrometheusHandler()))
	}

	return router
}
