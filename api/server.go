package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/query"
)

// New assembles the HTTP handler: book routes plus an optional /metrics
// endpoint backed by the given registry.
func New(engine *query.Engine, loader func() (*dataset.Dataset, error), registry *prometheus.Registry) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	handler := BookHandler{Engine: engine, Loader: loader}
	handler.RegisterRoutes(router)

	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return router
}
