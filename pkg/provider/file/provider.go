// Package file implements a local-directory object store that emulates
// storage tiers and restoration.
//
// Objects live as plain files under BaseDir. Tier state is kept in JSON
// sidecars under BaseDir/.coldvault so that cold objects behave like the real
// thing: reads fail with ErrNotRestorable until a restore request has
// completed, which takes RestoreDelay.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/coldvault/pkg/provider"
)

// MetaDir is the directory under BaseDir holding tier sidecars.
const MetaDir = ".coldvault"

// Provider implements provider.Gateway for local filesystem paths.
//
// Keys are treated as relative paths under BaseDir.
type Provider struct {
	baseDir      string
	restoreDelay time.Duration
	now          func() time.Time

	// mu serializes sidecar read-modify-write cycles.
	mu sync.Mutex
}

// Ensure Provider implements provider capability interfaces.
var _ provider.Gateway = (*Provider)(nil)

type Config struct {
	BaseDir string

	// RestoreDelay is how long a restore request stays in progress.
	// Zero completes restorations immediately.
	RestoreDelay time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	if c.RestoreDelay < 0 {
		return fmt.Errorf("restore delay must be >= 0")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: err}
	}
	return &Provider{baseDir: base, restoreDelay: cfg.RestoreDelay, now: time.Now}, nil
}

func (p *Provider) Close() error { return nil }

// tierState is the sidecar content for one object.
type tierState struct {
	StorageClass string    `json:"storage_class"`
	RestoredAt   time.Time `json:"restore_requested_at,omitempty"`
	RestoreDays  int       `json:"restore_days,omitempty"`
}

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	_ = ctx
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	keys, err := p.collectKeys(prefix)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}
	sort.Strings(keys)

	start := 0
	if opts.ContinuationToken != "" {
		// Start strictly after the last returned key.
		idx := sort.SearchStrings(keys, opts.ContinuationToken)
		for idx < len(keys) && keys[idx] <= opts.ContinuationToken {
			idx++
		}
		start = idx
	}

	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	objects := make([]provider.ObjectSummary, 0, end-start)
	for _, k := range keys[start:end] {
		full, err := p.fullPath(k)
		if err != nil {
			continue
		}
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		state := p.readState(k)
		objects = append(objects, provider.ObjectSummary{
			Key:          k,
			Size:         st.Size(),
			LastModified: st.ModTime(),
			StorageClass: provider.NormalizeStorageClass(state.StorageClass),
		})
	}

	res := &provider.ListResult{Objects: objects}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
	}

	state := p.readState(key)
	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          strings.TrimPrefix(key, "/"),
			Size:         st.Size(),
			LastModified: st.ModTime(),
			StorageClass: provider.NormalizeStorageClass(state.StorageClass),
		},
		Restore: p.restoreHeader(state),
	}, nil
}

func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	if _, err := os.Stat(full); err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	if !p.readable(p.readState(key)) {
		return nil, 0, &provider.ProviderError{Op: "GetObject", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotRestorable}
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	return f, st.Size(), nil
}

func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	_ = ctx
	_ = contentLength
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), "coldvault-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writeState(key, tierState{StorageClass: provider.NormalizeStorageClass(opts.StorageClass)}); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return p.wrapError("DeleteObject", key, err)
	}
	if metaPath, err := p.metaPath(key); err == nil {
		_ = os.Remove(metaPath)
	}
	return nil
}

// RestoreObject records a restore request for a cold object.
//
// Requests against objects in the standard tier, or whose restored copy is
// still valid, report RestoreAlreadyRestored like S3 does.
func (p *Provider) RestoreObject(ctx context.Context, key string, opts provider.RestoreOptions) (provider.RestoreStatus, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return 0, p.wrapError("RestoreObject", key, err)
	}
	if _, err := os.Stat(full); err != nil {
		return 0, p.wrapError("RestoreObject", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.readState(key)
	if provider.NormalizeStorageClass(state.StorageClass) == provider.StorageClassStandard {
		return provider.RestoreAlreadyRestored, nil
	}
	if !state.RestoredAt.IsZero() {
		switch {
		case p.ongoing(state):
			return 0, &provider.ProviderError{Op: "RestoreObject", Provider: provider.ProviderFile, Key: key, Err: provider.ErrRestoreInProgress}
		case p.readable(state):
			return provider.RestoreAlreadyRestored, nil
		}
	}

	state.RestoredAt = p.now()
	state.RestoreDays = opts.Days
	if err := p.writeState(key, state); err != nil {
		return 0, p.wrapError("RestoreObject", key, err)
	}
	return provider.RestoreAccepted, nil
}

func (p *Provider) ongoing(state tierState) bool {
	return !state.RestoredAt.IsZero() && p.now().Before(state.RestoredAt.Add(p.restoreDelay))
}

func (p *Provider) expiry(state tierState) time.Time {
	return state.RestoredAt.Add(p.restoreDelay).Add(time.Duration(state.RestoreDays) * 24 * time.Hour)
}

// readable reports whether the object body can be fetched right now.
func (p *Provider) readable(state tierState) bool {
	if provider.NormalizeStorageClass(state.StorageClass) != provider.StorageClassDeepArchive {
		return true
	}
	if state.RestoredAt.IsZero() || p.ongoing(state) {
		return false
	}
	return p.now().Before(p.expiry(state))
}

// restoreHeader renders the state the way S3 reports it in x-amz-restore.
func (p *Provider) restoreHeader(state tierState) string {
	if state.RestoredAt.IsZero() {
		return ""
	}
	if p.ongoing(state) {
		return `ongoing-request="true"`
	}
	return fmt.Sprintf(`ongoing-request="false", expiry-date="%s"`, p.expiry(state).UTC().Format(time.RFC1123))
}

func (p *Provider) readState(key string) tierState {
	var state tierState
	metaPath, err := p.metaPath(key)
	if err != nil {
		return state
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return state
	}
	_ = json.Unmarshal(data, &state)
	return state
}

func (p *Provider) writeState(key string, state tierState) error {
	metaPath, err := p.metaPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, data, 0o644)
}

func (p *Provider) metaPath(key string) (string, error) {
	full, err := p.fullPath(key)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(p.baseDir, full)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.baseDir, MetaDir, rel+".json"), nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	if clean == MetaDir || strings.HasPrefix(clean, MetaDir+"/") {
		return "", fmt.Errorf("reserved key path")
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

// collectKeys returns every object key starting with prefix.
//
// The walk starts at the deepest directory fully named by prefix, so a
// partial last segment ("logs/app-") still matches like a store prefix.
func (p *Provider) collectKeys(prefix string) ([]string, error) {
	dir := prefix
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}
	root := p.baseDir
	if dir != "" {
		var err error
		root, err = p.fullPath(dir)
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	metaRoot := filepath.Join(p.baseDir, MetaDir)
	var keys []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == metaRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "coldvault-put-") {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	return keys, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to provider sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = provider.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
