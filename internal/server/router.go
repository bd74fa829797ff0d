package server

import (
	"payout-core/internal/handler"
	"payout-core/internal/handler/middleware"
	"payout-core/internal/handler/response"

	"payout-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(payouts *handler.PayoutHandler, adminKey string, verifier middleware.UserVerifier) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler())) // 暴露给 Prometheus

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		// 后台接口: X-API-Key 鉴权
		admin := api.Group("", middleware.AdminAuth(adminKey))
		{
			admin.POST("/payouts", payouts.CreatePayout)
			admin.GET("/payouts", payouts.ListPayouts)
			admin.GET("/payouts/:id", payouts.GetPayout)
			admin.POST("/admin/reconcile", payouts.Reconcile)
		}

		// 用户接口: Pi 访问令牌鉴权
		me := api.Group("/me", middleware.PiAuth(verifier))
		{
			me.GET("/payouts", payouts.MyPayouts)
		}
	}

	return r
}
