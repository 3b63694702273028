// README: In-process, fire-and-forget event queue.
package jobs

import (
	"context"
	"fmt"

	"trego/internal/types"
)

// Queue buffers lifecycle events for a worker in the same process. Emit
// never blocks the caller: when the buffer is full the event is dropped and
// the error is left to the engine to log.
type Queue struct {
	ch chan Event
}

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Emit(_ context.Context, rideID types.ID, event string) error {
	select {
	case q.ch <- Event{RideID: rideID, Name: event}:
		return nil
	default:
		return fmt.Errorf("event queue full, dropping %s for ride %d", event, rideID)
	}
}

func (q *Queue) Events() <-chan Event {
	return q.ch
}
