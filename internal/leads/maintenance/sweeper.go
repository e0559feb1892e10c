// Package maintenance contains the lifecycle sweeper that expires
// assignments whose response window elapsed without provider action and
// quoted assignments whose quote validity lapsed without acceptance.
package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"servicesartisans_backend/internal/leads/domain"
	"servicesartisans_backend/internal/leads/repository"
	"servicesartisans_backend/platform/config"
	"servicesartisans_backend/platform/logger"
)

const (
	sweepBatchSize   = 100
	sweepConcurrency = 8
)

// Expirer force-expires a single assignment. Implemented by the leads
// service, which also continues the dispatch waterfall afterwards.
type Expirer interface {
	Expire(ctx context.Context, assignment repository.Assignment, reason string) error
}

// Sweeper periodically expires overdue assignments. It competes with
// provider actions through the same CAS transition as every other writer:
// losing the race is normal and means the provider acted in time.
type Sweeper struct {
	store   repository.AssignmentStore
	expirer Expirer
	cfg     config.DispatchConfig
	log     *logger.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store repository.AssignmentStore, expirer Expirer, cfg config.DispatchConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{store: store, expirer: expirer, cfg: cfg, log: log}
}

// Run loops RunOnce on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.GetSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.DatabaseError("sweep", err)
			}
		}
	}
}

// RunOnce expires one batch of overdue assignments and returns how many
// were actually expired. Version conflicts are skipped silently: the
// snapshot was stale and the provider won.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	batch, err := s.store.ListExpirable(ctx, repository.ExpirableFilter{
		PendingBefore: now.Add(-s.cfg.GetPendingTTL()),
		ViewedBefore:  now.Add(-s.cfg.GetViewedTTL()),
		QuotedBefore:  now,
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var expired atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, assignment := range batch {
		a := assignment
		g.Go(func() error {
			reason := domain.ReasonTTLExceeded
			if a.Status == domain.StatusQuoted {
				reason = domain.ReasonQuoteExpired
			}
			err := s.expirer.Expire(gctx, a, reason)
			switch {
			case err == nil:
				expired.Add(1)
				return nil
			case errors.Is(err, domain.ErrVersionConflict):
				// Provider acted between snapshot and expiry.
				return nil
			case errors.Is(err, domain.ErrIllegalTransition):
				// Already terminal; a concurrent sweep got there first.
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return int(expired.Load()), err
	}
	return int(expired.Load()), nil
}
