// README: Shared handler utilities; JSON helpers, error mapping, ride serialization.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trego/internal/modules/ride"
	"trego/internal/modules/user"
	"trego/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, user.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, ride.ErrAdmissionDenied):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func rideIDParam(c *gin.Context) (types.ID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return 0, false
	}
	return types.ID(id), true
}

type rideJSON struct {
	ID              types.ID         `json:"id"`
	Status          ride.Status      `json:"status"`
	PickupLocation  string           `json:"pickup_location"`
	DropoffLocation string           `json:"dropoff_location"`
	RiderID         *types.ID        `json:"rider_id,omitempty"`
	DriverID        *types.ID        `json:"driver_id,omitempty"`
	CityID          *types.ID        `json:"city_id,omitempty"`
	CancelledBy     ride.CancelActor `json:"cancelled_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	AssignedAt      *time.Time       `json:"assigned_at,omitempty"`
	AcceptedAt      *time.Time       `json:"accepted_at,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty"`
}

// serializeRide is role-aware: riders see their driver, drivers see their
// rider, admins see everything.
func serializeRide(r *ride.Ride, actor *user.User) rideJSON {
	out := rideJSON{
		ID:              r.ID,
		Status:          r.Status,
		PickupLocation:  r.PickupLocation,
		DropoffLocation: r.DropoffLocation,
		CreatedAt:       r.CreatedAt,
		AssignedAt:      r.AssignedAt,
		AcceptedAt:      r.AcceptedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		CancelledAt:     r.CancelledAt,
	}
	switch actor.Role {
	case user.RoleRider:
		out.DriverID = r.DriverID
	case user.RoleDriver:
		rider := r.RiderID
		out.RiderID = &rider
	case user.RoleAdmin:
		rider := r.RiderID
		out.RiderID = &rider
		out.DriverID = r.DriverID
		out.CityID = r.CityID
		out.CancelledBy = r.CancelledBy
	}
	return out
}
