// README: Lifecycle event shape shared by the in-process queue and the AMQP transport.
package jobs

import "trego/internal/types"

// Event is what the lifecycle engine hands off after a successful mutation.
// Delivery is at-least-once; handlers must tolerate repeats.
type Event struct {
	RideID types.ID `json:"ride_id"`
	Name   string   `json:"event"`
}
