// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fooddash/internal/http/handlers"
	"fooddash/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.RequestLogger(deps.Log),
		middleware.Metrics(),
		middleware.CORS(deps.FrontendURL),
	)

	health := handlers.NewHealthHandler(deps.Checks)
	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	realtime := handlers.NewRealtimeHandler(deps.Hub, deps.Verifier)
	r.GET("/ws", realtime.Connect)

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimit(deps.RateLimiter, deps.RateLimit.Window, deps.RateLimit.Max, deps.Log))
	}
	authed := middleware.Auth(deps.Verifier)
	admin := middleware.RequireAdmin()

	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	api.GET("/food-items", catalogHandler.List)
	api.GET("/food-items/:id", catalogHandler.Get)
	api.POST("/food-items", authed, admin, catalogHandler.Create)
	api.PUT("/food-items/:id", authed, admin, catalogHandler.Update)
	api.DELETE("/food-items/:id", authed, admin, catalogHandler.Delete)
	api.GET("/menus", catalogHandler.ListMenus)
	api.POST("/menus", authed, admin, catalogHandler.CreateMenu)

	orderHandler := handlers.NewOrderHandler(deps.Order)
	orders := api.Group("/orders", authed)
	orders.POST("", orderHandler.Create)
	orders.GET("", orderHandler.List)
	orders.GET("/stats", orderHandler.Stats)
	orders.GET("/:id", orderHandler.Get)
	orders.PATCH("/:id/status", orderHandler.UpdateStatus)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	tracking := api.Group("/tracking/:orderId", authed)
	tracking.GET("", trackingHandler.Get)
	tracking.PATCH("", admin, trackingHandler.UpdateLocation)
	tracking.POST("/arrived", admin, trackingHandler.MarkArrived)

	api.GET("/restaurant/location", trackingHandler.RestaurantLocation)

	return r
}
