// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trego/internal/http/handlers"
	"trego/internal/http/middleware"
	"trego/internal/modules/availability"
	"trego/internal/modules/ride"
	"trego/internal/modules/user"
)

type RouterDeps struct {
	Rides     *ride.Service
	Users     *user.Store
	Cache     *availability.Store
	JWTSecret []byte
	Log       *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(deps.JWTSecret, deps.Users))

	rideHandler := handlers.NewRideHandler(deps.Rides)
	api.POST("/rides", rideHandler.Create)
	api.GET("/rides/:id", rideHandler.Show)
	api.POST("/rides/:id/cancel", rideHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Rides)
	driver := api.Group("/driver")
	driver.POST("/rides/:id/accept", driverHandler.Accept)
	driver.POST("/rides/:id/confirm", driverHandler.Confirm)
	driver.POST("/rides/:id/start", driverHandler.Start)
	driver.POST("/rides/:id/complete", driverHandler.Complete)
	driver.POST("/rides/:id/cancel", driverHandler.Cancel)

	adminHandler := handlers.NewAdminHandler(deps.Rides, deps.Cache, deps.Users, deps.Log)
	admin := api.Group("/admin")
	admin.GET("/rides", adminHandler.ListRides)
	admin.POST("/rides/:id/cancel", adminHandler.ForceCancel)
	admin.GET("/cities/:id/available_drivers", adminHandler.AvailableDrivers)

	return r
}
