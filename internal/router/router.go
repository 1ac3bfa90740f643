package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "shopify_sync_v1/docs"
	"shopify_sync_v1/internal/controller"
	"shopify_sync_v1/internal/middleware"
)

// Controllers 路由需要的控制器
type Controllers struct {
	Sync    *controller.SyncController
	Listing *controller.ListingController
	Catalog *controller.CatalogController
	Order   *controller.OrderController
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl Controllers, limiter *middleware.SyncRateLimiter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// 接口文档 http://localhost:8080/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		// 手动触发定时任务
		sync := api.Group("/sync")
		{
			sync.GET("/status", ctl.Sync.Status)
			sync.POST("/stock", middleware.SyncRateLimit(limiter, middleware.SyncTypeStock, 0), ctl.Sync.SyncStock)
			sync.POST("/collections", middleware.SyncRateLimit(limiter, middleware.SyncTypeCollections, 0), ctl.Sync.SyncCollections)
			sync.POST("/orders", middleware.SyncRateLimit(limiter, middleware.SyncTypeOrders, 0), ctl.Sync.SyncOrders)
			sync.POST("/fulfillment", middleware.SyncRateLimit(limiter, middleware.SyncTypeFulfillment, 0), ctl.Sync.SyncFulfillment)
		}

		listings := api.Group("/listings")
		{
			listings.POST("/:id/upload", middleware.SyncRateLimit(limiter, middleware.SyncTypeListing, 0), ctl.Listing.Upload)
			listings.GET("/:id/status", ctl.Listing.Status)
			listings.GET("/:id/active", ctl.Listing.Active)
			listings.PUT("/:id/tags", ctl.Listing.SetTags)
			listings.PUT("/:id/collections", ctl.Listing.SetCollections)
		}
		api.POST("/ranges/:id/listings", ctl.Listing.CreateFromRange)

		tags := api.Group("/tags")
		{
			tags.GET("", ctl.Catalog.ListTags)
			tags.POST("", ctl.Catalog.CreateTag)
			tags.POST("/:id/replace", ctl.Catalog.ReplaceTag)
		}
		api.GET("/collections", ctl.Catalog.ListCollections)

		api.POST("/orders/import", ctl.Order.ImportFile)
		exports := api.Group("/fulfillment/exports")
		{
			exports.GET("", ctl.Order.ListExports)
			exports.POST("", ctl.Order.Export)
			exports.GET("/:id", ctl.Order.GetExport)
			exports.GET("/:id/download", ctl.Order.Download)
		}
	}
}
