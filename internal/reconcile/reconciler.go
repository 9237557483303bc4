// Package reconcile removes pending markers left behind by a previous process.
//
// Pending markers are only meaningful while the process that wrote them is
// alive. Run must complete before the dispatcher accepts work, otherwise a key
// whose task died with the old process would report WAIT forever.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/metrics"
	"github.com/JakeFAU/my-github-review/internal/profile"
)

// Store is the subset of profile.Store the reconciler needs.
type Store interface {
	ListOrphanedPending(ctx context.Context) ([]profile.JobKey, error)
	DeletePending(ctx context.Context, key profile.JobKey) error
}

// Reconciler deletes every pending marker without a completed context.
type Reconciler struct {
	store  Store
	logger *zap.Logger
}

// New builds a Reconciler.
func New(store Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// Run removes orphaned markers and returns how many were deleted. Any
// delete failure is returned after the remaining keys have been attempted.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	orphans, err := r.store.ListOrphanedPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orphaned pending markers: %w", err)
	}

	removed := 0
	var errs []error
	for _, key := range orphans {
		if err := r.store.DeletePending(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete pending %s: %w", key, err))
			continue
		}
		removed++
		r.logger.Info("removed orphaned pending marker",
			zap.String("username", key.Username),
			zap.Int("year", key.Year),
		)
	}
	metrics.ObserveOrphansRemoved(removed)
	r.logger.Info("orphan reconciliation finished",
		zap.Int("found", len(orphans)),
		zap.Int("removed", removed),
	)
	return removed, errors.Join(errs...)
}
