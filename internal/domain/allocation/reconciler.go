package allocation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler periodically sweeps for occupied beds that no admitted
// admission accounts for. Such beds mean a compensation failed somewhere;
// the sweep flags them for manual review instead of auto-releasing, since
// a human has to decide whether the bed is really free.
type Reconciler struct {
	repo     Repository
	interval time.Duration
	logger   zerolog.Logger
	flagged  atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(repo Repository, interval time.Duration, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.loop(ctx)
	r.logger.Info().Dur("interval", r.interval).Msg("bed reconciler started")
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.logger.Info().Msg("bed reconciler stopped")
}

// Flagged returns the total number of orphaned beds reported so far.
func (r *Reconciler) Flagged() int64 {
	return r.flagged.Load()
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	orphans, err := r.repo.OrphanedBeds(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("reconciler: orphan query failed")
		return
	}

	for _, o := range orphans {
		r.flagged.Add(1)
		evt := r.logger.Error().
			Str("bed_id", o.BedID.String()).
			Str("number", o.Number).
			Time("occupied_at", o.OccupiedAt)
		if o.AdmissionID != nil {
			evt = evt.Str("admission_id", o.AdmissionID.String())
		}
		evt.Msg("reconciler: occupied bed with no admitted admission")
	}
}
