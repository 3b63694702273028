// README: Worker draining lifecycle events; notifications and fare computation.
package jobs

import (
	"context"

	"go.uber.org/zap"

	"trego/internal/modules/ride"
	"trego/internal/types"
)

type RideGetter interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
}

// Worker consumes lifecycle events and runs the follow-on work the engine
// never waits for. Handler failures are logged, never propagated; the
// triggering mutation has already committed.
type Worker struct {
	rides RideGetter
	log   *zap.Logger
}

func NewWorker(rides RideGetter, log *zap.Logger) *Worker {
	return &Worker{rides: rides, log: log}
}

func (w *Worker) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			w.Handle(ctx, e)
		}
	}
}

func (w *Worker) Handle(ctx context.Context, e Event) {
	r, err := w.rides.Get(ctx, e.RideID)
	if err != nil {
		w.log.Error("event refers to unknown ride",
			zap.Int64("ride_id", int64(e.RideID)), zap.String("event", e.Name), zap.Error(err))
		return
	}

	switch e.Name {
	case ride.EventAssigned:
		w.notifyRider(r, "Driver is on the way!")
		w.notifyDriver(r, "You accepted this ride")
	case ride.EventStarted:
		w.notifyRider(r, "Your ride has started")
		w.notifyDriver(r, "Ride started, heading to destination")
	case ride.EventCompleted:
		w.notifyRider(r, "Ride completed. Thanks for riding with Trego!")
		w.notifyDriver(r, "Ride completed successfully")
	case ride.EventCancelled:
		w.notifyRider(r, "Your ride was cancelled by "+cancellerLabel(r))
		if r.DriverID != nil {
			w.notifyDriver(r, "Ride was cancelled by "+cancellerLabel(r))
		}
	case ride.EventFare:
		fare := ComputeFare(r)
		w.log.Info("fare computed",
			zap.Int64("ride_id", int64(r.ID)),
			zap.Int64("fare_cents", fare.Amount),
			zap.String("currency", fare.Currency))
	default:
		w.log.Warn("unknown lifecycle event", zap.String("event", e.Name))
	}
}

// ComputeFare mirrors the launch pricing sheet: flat base plus fixed
// distance and time estimates until trip telemetry is recorded.
func ComputeFare(_ *ride.Ride) types.Money {
	const (
		baseCents      = 350
		perMileCents   = 200
		perMinuteCents = 35
	)
	estimatedMiles := 5.0
	estimatedMinutes := 15.0

	total := int64(baseCents) +
		int64(estimatedMiles*perMileCents) +
		int64(estimatedMinutes*perMinuteCents)
	return types.Money{Amount: total, Currency: "USD"}
}

// Delivery channels (SMS, push) are not wired yet; notifications land in the
// log the same way the rest of the system reports.
func (w *Worker) notifyRider(r *ride.Ride, msg string) {
	w.log.Info("notify rider",
		zap.Int64("ride_id", int64(r.ID)), zap.Int64("rider_id", int64(r.RiderID)), zap.String("message", msg))
}

func (w *Worker) notifyDriver(r *ride.Ride, msg string) {
	if r.DriverID == nil {
		return
	}
	w.log.Info("notify driver",
		zap.Int64("ride_id", int64(r.ID)), zap.Int64("driver_id", int64(*r.DriverID)), zap.String("message", msg))
}

func cancellerLabel(r *ride.Ride) string {
	if r.CancelledBy == "" {
		return "system"
	}
	return string(r.CancelledBy)
}
