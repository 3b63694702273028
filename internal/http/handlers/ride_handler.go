// README: Rider-facing ride handlers: create, show, cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trego/internal/http/middleware"
	"trego/internal/modules/ride"
	"trego/internal/types"
)

type RideHandler struct {
	rides *ride.Service
}

func NewRideHandler(svc *ride.Service) *RideHandler {
	return &RideHandler{rides: svc}
}

type createRideReq struct {
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
	CityID          *int64 `json:"city_id"`
	VehicleID       *int64 `json:"vehicle_id"`
}

func (h *RideHandler) Create(c *gin.Context) {
	actor := middleware.Actor(c)
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.Request(c.Request.Context(), actor, ride.RequestCommand{
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		CityID:          toIDPtr(req.CityID),
		VehicleID:       toIDPtr(req.VehicleID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializeRide(r, actor))
}

func (h *RideHandler) Show(c *gin.Context) {
	actor := middleware.Actor(c)
	id, ok := rideIDParam(c)
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializeRide(r, actor))
}

func (h *RideHandler) Cancel(c *gin.Context) {
	actor := middleware.Actor(c)
	id, ok := rideIDParam(c)
	if !ok {
		return
	}
	r, err := h.rides.RiderCancel(c.Request.Context(), id, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializeRide(r, actor))
}

func toIDPtr(v *int64) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
