package restapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures SetupRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer serves /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(tvlHandler *TVLHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	if opts.Logger != nil {
		router.Use(ZapLoggerMiddleware(opts.Logger))
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", HealthHandler)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// Группа для API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/tvl", tvlHandler.GetTVLHandler)
		v1.GET("/tvl/balances", tvlHandler.GetBalancesHandler)
	}

	return router
}
