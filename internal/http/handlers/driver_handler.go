// README: Driver-facing lifecycle handlers: accept, confirm, start, complete, cancel.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"trego/internal/http/middleware"
	"trego/internal/modules/ride"
	"trego/internal/modules/user"
	"trego/internal/types"
)

type DriverHandler struct {
	rides *ride.Service
}

func NewDriverHandler(svc *ride.Service) *DriverHandler {
	return &DriverHandler{rides: svc}
}

type lifecycleOp func(ctx context.Context, id types.ID, actor *user.User) (*ride.Ride, error)

func (h *DriverHandler) Accept(c *gin.Context) {
	h.lifecycle(c, h.rides.Accept)
}

func (h *DriverHandler) Confirm(c *gin.Context) {
	h.lifecycle(c, h.rides.Confirm)
}

func (h *DriverHandler) Start(c *gin.Context) {
	h.lifecycle(c, h.rides.Start)
}

func (h *DriverHandler) Complete(c *gin.Context) {
	h.lifecycle(c, h.rides.Complete)
}

func (h *DriverHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.rides.DriverCancel)
}

func (h *DriverHandler) lifecycle(c *gin.Context, op lifecycleOp) {
	actor := middleware.Actor(c)
	id, ok := rideIDParam(c)
	if !ok {
		return
	}
	r, err := op(c.Request.Context(), id, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializeRide(r, actor))
}
