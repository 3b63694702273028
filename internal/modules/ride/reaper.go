// README: Idle-ride reaper; force-cancels rides stuck in requested past the timeout.
package ride

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"trego/internal/types"
)

const reapBatchSize = 100

// Reaper periodically cancels rides that sat in requested status past the
// idle threshold. It uses the same per-ride locking discipline as the
// engine so a sweep never races a driver's concurrent accept.
type Reaper struct {
	store    Store
	log      *zap.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewReaper(store Store, interval, maxAge time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{store: store, log: log, interval: interval, maxAge: maxAge}
}

func (rp *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.Sweep(ctx)
		}
	}
}

// Sweep cancels every requested ride older than the threshold with
// cancelled_by=timeout. No driver was ever assigned to these rides, so there
// is no cache cleanup to do.
func (rp *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-rp.maxAge)
	stale, err := rp.store.ListRequestedBefore(ctx, cutoff, reapBatchSize)
	if err != nil {
		rp.log.Error("reaper: listing stale rides failed", zap.Error(err))
		return
	}

	for _, r := range stale {
		if err := rp.reap(ctx, r.ID); err != nil {
			// A driver accepted between the list and the lock; leave it alone.
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			rp.log.Error("reaper: cancel failed", zap.Int64("ride_id", int64(r.ID)), zap.Error(err))
			continue
		}
		rp.log.Info("ride timed out, no driver accepted", zap.Int64("ride_id", int64(r.ID)))
	}
}

func (rp *Reaper) reap(ctx context.Context, id types.ID) error {
	_, err := rp.store.UpdateLocked(ctx, id, func(r *Ride) error {
		if r.Status != StatusRequested {
			return ErrInvalidTransition
		}
		r.CancelledBy = CancelledByTimeout
		r.applyStatus(StatusCancelled, time.Now().UTC())
		return nil
	})
	return err
}
