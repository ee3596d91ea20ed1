package lifecycle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/listing"
	"github.com/3leaps/coldvault/pkg/provider"
)

// Download streams every object in set into dest, at the object's key with
// the set's internal prefix stripped. dest is created if needed.
//
// Objects that are not restored yet are skipped with a NotYetRestorableError;
// neither they nor failed items leave an empty file behind.
func (e *Engine) Download(ctx context.Context, set *listing.ObjectSet, dest string) (*Summary, error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve download dir: %w", err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	describe := func(o provider.ObjectSummary) (string, int64) { return set.Pair.Display(o.Key), o.Size }
	fn := func(ctx context.Context, obj provider.ObjectSummary) (batch.Outcome, error) {
		return e.downloadOne(ctx, absDest, obj.Key, set.Pair.Display(obj.Key))
	}
	return run(ctx, e, OpDownload, set.Objects(), set.TotalSize, describe, fn), nil
}

func (e *Engine) downloadOne(ctx context.Context, dest, key, display string) (batch.Outcome, error) {
	if strings.HasSuffix(key, keys.Separator) {
		// Folder marker objects carry no content.
		return batch.Skipped, nil
	}

	local, err := localPath(dest, display)
	if err != nil {
		return batch.Failed, &ItemError{Op: OpDownload, Key: display, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return batch.Failed, &ItemError{Op: OpDownload, Key: display, Err: err}
	}

	// Create the destination up front without truncating an existing copy;
	// it is only truncated once the body is available.
	f, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return batch.Failed, &ItemError{Op: OpDownload, Key: display, Err: err}
	}

	body, _, err := e.gw.GetObject(ctx, key)
	if err != nil {
		cleanup := multierr.Append(f.Close(), removeIfEmpty(local))
		if provider.IsNotRestorable(err) {
			return batch.Skipped, multierr.Append(&NotYetRestorableError{Key: display, Err: err}, cleanup)
		}
		return batch.Failed, multierr.Append(&ItemError{Op: OpDownload, Key: display, Err: err}, cleanup)
	}
	defer func() { _ = body.Close() }()

	if err := f.Truncate(0); err != nil {
		return batch.Failed, multierr.Append(&ItemError{Op: OpDownload, Key: display, Err: err}, discard(f, local))
	}
	if _, err := io.Copy(f, body); err != nil {
		return batch.Failed, multierr.Append(&ItemError{Op: OpDownload, Key: display, Err: err}, discard(f, local))
	}
	if err := f.Close(); err != nil {
		return batch.Failed, multierr.Append(&ItemError{Op: OpDownload, Key: display, Err: err}, os.Remove(local))
	}
	return batch.Succeeded, nil
}

// localPath joins rel onto dest and rejects results outside dest.
func localPath(dest, rel string) (string, error) {
	path := filepath.Join(dest, filepath.FromSlash(rel))
	inside, err := filepath.Rel(dest, path)
	if err != nil || inside == "." || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes download directory", rel)
	}
	return path, nil
}

// removeIfEmpty deletes a placeholder that never received content.
func removeIfEmpty(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if st.Size() != 0 {
		return nil
	}
	return os.Remove(path)
}

// discard closes and removes a partially written file.
func discard(f *os.File, path string) error {
	return multierr.Append(f.Close(), os.Remove(path))
}
