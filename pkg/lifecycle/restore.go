package lifecycle

import (
	"context"
	"errors"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/listing"
	"github.com/3leaps/coldvault/pkg/provider"
)

// ErrAlreadyRestored marks a restore request for an object that already has a
// readable copy. It is reported with batch.Skipped.
var ErrAlreadyRestored = errors.New("already restored")

// Restore requests restoration of every object in set with the configured
// tier and retention. Only accepted requests count as succeeded.
func (e *Engine) Restore(ctx context.Context, set *listing.ObjectSet) *Summary {
	describe := func(o provider.ObjectSummary) (string, int64) { return set.Pair.Display(o.Key), o.Size }
	return run(ctx, e, OpRestore, set.Objects(), set.TotalSize, describe, func(ctx context.Context, obj provider.ObjectSummary) (batch.Outcome, error) {
		return e.restoreOne(ctx, obj.Key, set.Pair.Display(obj.Key))
	})
}

func (e *Engine) restoreOne(ctx context.Context, key, display string) (batch.Outcome, error) {
	status, err := e.gw.RestoreObject(ctx, key, provider.RestoreOptions{Tier: e.cfg.RestoreTier, Days: e.cfg.RestoreDays})
	switch {
	case err == nil && status == provider.RestoreAccepted:
		return batch.Succeeded, nil
	case err == nil:
		return batch.Skipped, ErrAlreadyRestored
	case provider.IsRestoreInProgress(err):
		return batch.Skipped, provider.ErrRestoreInProgress
	default:
		return batch.Failed, &ItemError{Op: OpRestore, Key: display, Err: err}
	}
}
