package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cart-service/controllers"
	"cart-service/middlewares"
)

// SetupRouter 创建 Gin 路由并挂载中间件
func SetupRouter(logger *zap.Logger, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.AccessLog(logger))
	r.Use(middlewares.CORS(corsOrigins))

	// 应用Prometheus中间件
	r.Use(middlewares.PrometheusMiddleware())

	// 暴露Prometheus指标端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查端点
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/carts/:mode")
	{
		api.GET("", controllers.ListCarts)
		api.POST("/events", controllers.ApplyViewEvent)
		api.POST("/revalidate", controllers.RevalidateCarts)
		api.GET("/:id/raw", controllers.GetRawCart)
	}
	return r
}
