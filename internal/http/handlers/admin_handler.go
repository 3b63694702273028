// README: Admin console handlers: ride listing, force cancel, city availability.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trego/internal/http/middleware"
	"trego/internal/modules/availability"
	"trego/internal/modules/ride"
	"trego/internal/modules/user"
	"trego/internal/types"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

type AdminHandler struct {
	rides *ride.Service
	cache *availability.Store
	users *user.Store
	log   *zap.Logger
}

func NewAdminHandler(svc *ride.Service, cache *availability.Store, users *user.Store, log *zap.Logger) *AdminHandler {
	return &AdminHandler{rides: svc, cache: cache, users: users, log: log}
}

func (h *AdminHandler) ListRides(c *gin.Context) {
	actor := middleware.Actor(c)
	limit := intQuery(c, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := intQuery(c, "offset", 0)

	rides, err := h.rides.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]rideJSON, 0, len(rides))
	for _, r := range rides {
		out = append(out, serializeRide(r, actor))
	}
	c.JSON(http.StatusOK, gin.H{"rides": out, "limit": limit, "offset": offset})
}

func (h *AdminHandler) ForceCancel(c *gin.Context) {
	actor := middleware.Actor(c)
	id, ok := rideIDParam(c)
	if !ok {
		return
	}
	r, err := h.rides.AdminCancel(c.Request.Context(), id, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializeRide(r, actor))
}

// AvailableDrivers reads the city availability set from the cache, falling
// back to the user store when the cache is unreachable.
func (h *AdminHandler) AvailableDrivers(c *gin.Context) {
	cityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || cityID <= 0 {
		writeError(c, http.StatusBadRequest, "invalid city id")
		return
	}

	ids, cerr := h.cache.AvailableDrivers(c.Request.Context(), types.ID(cityID))
	source := "cache"
	if cerr != nil {
		h.log.Warn("availability cache unavailable, falling back to store",
			zap.Int64("city_id", cityID), zap.Error(cerr))
		ids, err = h.users.AvailableDriversInCity(c.Request.Context(), types.ID(cityID))
		if err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
		source = "store"
	}
	if ids == nil {
		ids = []types.ID{}
	}
	c.JSON(http.StatusOK, gin.H{"city_id": cityID, "driver_ids": ids, "source": source})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
