package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/localfs"
	"github.com/3leaps/coldvault/pkg/provider"
)

// Archive uploads every file of set into the cold storage class. Files whose
// key already exists are skipped, which makes repeated runs idempotent.
func (e *Engine) Archive(ctx context.Context, set *localfs.FileSet) *Summary {
	describe := func(f localfs.File) (string, int64) { return keys.Sanitize(f.RelPath), f.Size }
	return run(ctx, e, OpArchive, set.Files, set.TotalSize, describe, e.archiveOne)
}

func (e *Engine) archiveOne(ctx context.Context, f localfs.File) (batch.Outcome, error) {
	key := keys.ObjectKey(e.cfg.UserID, f.RelPath)
	display := keys.Sanitize(f.RelPath)

	exists, err := e.exists(ctx, key)
	if err != nil {
		// Ambiguous probe: assume the object exists rather than risk a
		// duplicate upload.
		return batch.Skipped, &AmbiguousProbeError{Key: display, Err: err}
	}
	if exists {
		return batch.Skipped, nil
	}

	file, err := os.Open(f.AbsPath)
	if err != nil {
		return batch.Failed, &ItemError{Op: OpArchive, Key: display, Err: err}
	}
	defer func() { _ = file.Close() }()

	st, err := file.Stat()
	if err != nil {
		return batch.Failed, &ItemError{Op: OpArchive, Key: display, Err: err}
	}
	if st.Size() != f.Size {
		return batch.Failed, &ItemError{Op: OpArchive, Key: display, Err: fmt.Errorf("file changed size since enumeration (%d -> %d bytes)", f.Size, st.Size())}
	}

	if err := e.gw.PutObject(ctx, key, file, st.Size(), provider.PutOptions{StorageClass: e.cfg.StorageClass}); err != nil {
		return batch.Failed, &ItemError{Op: OpArchive, Key: display, Err: err}
	}
	return batch.Succeeded, nil
}

// exists probes key. A not-found answer is (false, nil); any other failure is
// returned so the caller can apply its own policy.
func (e *Engine) exists(ctx context.Context, key string) (bool, error) {
	_, err := e.gw.Head(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case provider.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
