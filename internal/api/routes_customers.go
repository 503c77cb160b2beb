package api

import (
	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/handlers"
)

func registerCustomerRoutes(api *gin.RouterGroup, handler *handlers.CustomerHandler) {
	customers := api.Group("/customers")
	{
		customers.GET("", handler.List)
		customers.POST("/sync", handler.Sync)
		customers.GET("/sync/status", handler.SyncStatus)
		customers.GET("/search", handler.Search)
		customers.GET("/lookup", handler.Lookup)
		customers.DELETE("/cache", handler.ClearCache)
		customers.GET("/:id", handler.Get)
	}
}

func registerPriceRoutes(api *gin.RouterGroup, handler *handlers.PriceHandler) {
	prices := api.Group("/bottle-prices")
	{
		prices.GET("", handler.List)
		prices.GET("/19-liter", handler.NineteenLiter)
	}
}
