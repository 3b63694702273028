// README: Ride aggregate, status definitions, and the transition table.
package ride

import (
	"time"

	"trego/internal/types"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusAssigned  Status = "assigned"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CancelActor records who cancelled a ride.
type CancelActor string

const (
	CancelledByRider   CancelActor = "rider"
	CancelledByDriver  CancelActor = "driver"
	CancelledByAdmin   CancelActor = "admin"
	CancelledByTimeout CancelActor = "timeout"
)

type Ride struct {
	ID              types.ID
	RiderID         types.ID
	DriverID        *types.ID
	VehicleID       *types.ID
	CityID          *types.ID
	Status          Status
	PickupLocation  string
	DropoffLocation string
	CancelledBy     CancelActor // empty until cancelled
	CreatedAt       time.Time
	AssignedAt      *time.Time
	AcceptedAt      *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// Event names handed to the async job layer after a successful mutation.
const (
	EventAssigned  = "assigned"
	EventStarted   = "started"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
	EventFare      = "fare" // fare computation, enqueued alongside completed
)

// AllowedTransitions is the authoritative state flow. Statuses missing from
// the map are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusRequested: {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusStarted, StatusCancelled},
	StatusStarted:   {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the table allows moving from one status to
// another. A self-transition is always permitted so retried operations can
// no-op instead of failing.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// DriverActiveStatuses are the statuses during which a driver is considered
// busy. Used by the admission fallback query when the cache is down.
var DriverActiveStatuses = []Status{StatusAssigned, StatusAccepted, StatusStarted}

// applyStatus moves the ride to the new status and stamps the matching
// lifecycle timestamp. Timestamps are first-write-wins; re-entering a status
// never rewrites history.
func (r *Ride) applyStatus(to Status, now time.Time) {
	r.Status = to
	switch to {
	case StatusAssigned:
		setOnce(&r.AssignedAt, now)
	case StatusAccepted:
		setOnce(&r.AcceptedAt, now)
	case StatusStarted:
		setOnce(&r.StartedAt, now)
	case StatusCompleted:
		setOnce(&r.CompletedAt, now)
	case StatusCancelled:
		setOnce(&r.CancelledAt, now)
	}
}

func setOnce(ts **time.Time, now time.Time) {
	if *ts == nil {
		t := now
		*ts = &t
	}
}
