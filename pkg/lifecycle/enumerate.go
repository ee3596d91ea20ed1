package lifecycle

import (
	"context"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/listing"
	"github.com/3leaps/coldvault/pkg/provider"
	"github.com/3leaps/coldvault/pkg/restorestate"
)

// RemoteObject describes one listed object for display.
type RemoteObject struct {
	Key          string             `json:"key" yaml:"key"`
	Size         int64              `json:"size" yaml:"size"`
	StorageClass string             `json:"storage_class" yaml:"storage_class"`
	State        restorestate.State `json:"state" yaml:"state"`
}

// StateFromStorageClass answers archived-versus-other without a head probe.
func StateFromStorageClass(class string) restorestate.State {
	if provider.NormalizeStorageClass(class) == provider.StorageClassDeepArchive {
		return restorestate.Archived
	}
	return restorestate.RestorationComplete
}

// Enumerate reduces the keys of set to the distinct folders ("a/") and files
// directly below the listed prefix, sorted. It makes no remote calls.
func Enumerate(set *listing.ObjectSet) []string {
	return keys.ReduceAll(set.Pair.Full, set.Keys())
}

// Inspect probes every object in set and classifies its restoration state.
// This costs one head request per object. When a probe fails, the state is
// derived from the listed storage class and the item counts as failed.
func (e *Engine) Inspect(ctx context.Context, set *listing.ObjectSet) ([]RemoteObject, *Summary) {
	objects := set.Objects()
	out := make([]RemoteObject, len(objects))
	indexes := make([]int, len(objects))
	for i, obj := range objects {
		indexes[i] = i
		out[i] = RemoteObject{
			Key:          set.Pair.Display(obj.Key),
			Size:         obj.Size,
			StorageClass: provider.NormalizeStorageClass(obj.StorageClass),
			State:        StateFromStorageClass(obj.StorageClass),
		}
	}

	describe := func(i int) (string, int64) { return out[i].Key, out[i].Size }
	summary := run(ctx, e, OpInspect, indexes, set.TotalSize, describe, func(ctx context.Context, i int) (batch.Outcome, error) {
		meta, err := e.gw.Head(ctx, objects[i].Key)
		if err != nil {
			return batch.Failed, &ItemError{Op: OpInspect, Key: out[i].Key, Err: err}
		}
		// Each index belongs to exactly one batch, so this write is unshared.
		out[i].StorageClass = provider.NormalizeStorageClass(meta.StorageClass)
		out[i].State = classify(meta)
		return batch.Succeeded, nil
	})
	return out, summary
}

// classify reads the restore header of cold objects. Objects outside the cold
// tier are always readable.
func classify(meta *provider.ObjectMeta) restorestate.State {
	if provider.NormalizeStorageClass(meta.StorageClass) != provider.StorageClassDeepArchive {
		return restorestate.RestorationComplete
	}
	return restorestate.Classify(meta.Restore)
}
