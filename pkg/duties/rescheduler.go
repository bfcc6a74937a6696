package duties

import (
	"context"

	"github.com/ethpandaops/validator-keymanager/pkg/logging"
)

// RescheduleFunc recomputes duties for the current set of validators.
type RescheduleFunc func(ctx context.Context) error

// Rescheduler runs a RescheduleFunc each time its Channel is signalled.
type Rescheduler struct {
	signals    <-chan struct{}
	reschedule RescheduleFunc
}

// NewRescheduler returns a Rescheduler that calls fn for each notification on ch.
func NewRescheduler(ch *Channel, fn RescheduleFunc) *Rescheduler {
	return &Rescheduler{
		signals:    ch.C(),
		reschedule: fn,
	}
}

// Run blocks until ctx is done. Failed reschedules are logged and retried on the next signal.
func (r *Rescheduler) Run(ctx context.Context) error {
	log := logging.WithComponent("duties")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.signals:
			log.Debug("Validators added, rescheduling duties")

			if err := r.reschedule(ctx); err != nil {
				log.Errorf("Failed to reschedule duties: %v", err)
			}
		}
	}
}
