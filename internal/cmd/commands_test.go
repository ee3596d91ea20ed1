package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/coldvault/pkg/output"
)

// env is an isolated archive root and file-backed store.
type env struct {
	root  string
	store string
	extra []string
}

func newEnv(t *testing.T, files map[string]string) *env {
	t.Helper()
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("HOME", cfgHome)

	e := &env{root: t.TempDir(), store: t.TempDir()}
	t.Setenv("COLDVAULT_STORE_PATH", e.store)
	for rel, content := range files {
		path := filepath.Join(e.root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return e
}

// inPlace writes a config file that keeps restored copies in place.
func (e *env) inPlace(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coldvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("restored:\n  segment: \"\"\n"), 0o600))
	e.extra = append(e.extra, "--config", path)
}

// resetFlags restores every flag of every command to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with stdin as confirmation input.
func (e *env) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	appConfig = nil
	stdin = strings.NewReader(input)
	defer func() { stdin = os.Stdin }()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	full := append([]string{"--user", "alice", "--provider", "file", "--root", e.root, "--log-level", "error"}, e.extra...)
	rootCmd.SetArgs(append(full, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, code, ee.Code)
}

func TestArchiveData_IsIdempotent(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "photos/b.jpg": "bravo"})

	out, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "archive root: 2 objects")
	assert.Contains(t, out, "archive: 2/2 succeeded (0 skipped, 0 failed")
	assert.FileExists(t, filepath.Join(e.store, "alice", "a.txt"))
	assert.FileExists(t, filepath.Join(e.store, "alice", "photos", "b.jpg"))

	out, err = e.run(t, "", "archive_data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "archive: 0/2 succeeded (2 skipped, 0 failed")
}

func TestArchiveData_Prefix(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "photos/b.jpg": "bravo"})

	out, err := e.run(t, "", "archive-data", "photos/", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "archive: 1/1 succeeded")
	assert.FileExists(t, filepath.Join(e.store, "alice", "photos", "b.jpg"))
	assert.NoFileExists(t, filepath.Join(e.store, "alice", "a.txt"))
}

func TestArchiveData_Confirmation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		uploaded bool
	}{
		{name: "Y proceeds", input: "Y\n", uploaded: true},
		{name: "lowercase declines", input: "y\n", uploaded: false},
		{name: "no input declines", input: "", uploaded: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, map[string]string{"a.txt": "alpha"})
			_, err := e.run(t, tt.input, "archive-data", "root")
			require.NoError(t, err)
			_, statErr := os.Stat(filepath.Join(e.store, "alice", "a.txt"))
			assert.Equal(t, tt.uploaded, statErr == nil)
		})
	}
}

func TestCommands_RejectInvalidPrefix(t *testing.T) {
	e := newEnv(t, nil)
	for _, command := range []string{"archive-data", "list-archive", "list-restored", "restore-data", "download-data"} {
		t.Run(command, func(t *testing.T) {
			_, err := e.run(t, "", command, "photos", "--yes")
			requireExitCode(t, err, foundry.ExitInvalidArgument)
		})
	}
}

func TestArchiveData_MissingTarget(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.run(t, "", "archive-data", "missing/", "--yes")
	requireExitCode(t, err, foundry.ExitInvalidArgument)
}

func TestListArchive(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "photos/b.jpg": "bravo", "photos/c.jpg": "charlie"})
	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	out, err := e.run(t, "", "list-archive", "root")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nphotos/\nlist-archive root: 2 entries from 3 objects\n", out)

	out, err = e.run(t, "", "list_archive", "photos/")
	require.NoError(t, err)
	assert.Equal(t, "b.jpg\nc.jpg\nlist-archive photos/: 2 entries from 2 objects\n", out)
}

func TestListArchive_DetailYAML(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha"})
	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	out, err := e.run(t, "", "list-archive", "root", "--detail", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "prefix: root")
	assert.Contains(t, out, "key: a.txt")
	assert.Contains(t, out, "storage_class: DEEP_ARCHIVE")
	assert.Contains(t, out, "state: ARCHIVED")
}

func TestListArchive_InvalidFormat(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.run(t, "", "list-archive", "root", "--format", "xml")
	requireExitCode(t, err, foundry.ExitInvalidArgument)
}

func TestRestoreThenDownload_InPlace(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "photos/b.jpg": "bravo"})
	e.inPlace(t)

	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	// Nothing is readable before a restore.
	out, err := e.run(t, "", "download-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "download: 0/2 succeeded (2 skipped, 0 failed")
	assert.NoFileExists(t, filepath.Join(e.root, "downloads", "a.txt"))

	out, err = e.run(t, "", "restore-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "restore: 2/2 succeeded")

	out, err = e.run(t, "", "list-restored", "root", "--detail")
	require.NoError(t, err)
	assert.Contains(t, out, "RESTORATION_COMPLETE")

	out, err = e.run(t, "", "download-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "download: 2/2 succeeded")

	got, err := os.ReadFile(filepath.Join(e.root, "downloads", "photos", "b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))

	// A second restore request finds the objects already restored.
	out, err = e.run(t, "", "restore-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "restore: 0/2 succeeded (2 skipped, 0 failed")
}

func TestListRestored_SeparateNamespaceIsEmpty(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha"})
	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	out, err := e.run(t, "", "list-restored", "root")
	require.NoError(t, err)
	assert.Equal(t, "list-restored root: 0 entries from 0 objects\n", out)

	out, err = e.run(t, "", "download-data", "root", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "download root: 0 objects")
}

func TestArchiveData_JSONL(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})

	out, err := e.run(t, "", "archive-data", "root", "--yes", "--output", "jsonl")
	require.NoError(t, err)

	var types []string
	var jobIDs = map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, "file", rec.Provider)
		types = append(types, rec.Type)
		jobIDs[rec.JobID] = true
	}
	require.Len(t, types, 4)
	assert.Equal(t, output.TypePlan, types[0])
	assert.Equal(t, output.TypeItem, types[1])
	assert.Equal(t, output.TypeItem, types[2])
	assert.Equal(t, output.TypeSummary, types[3])
	assert.Len(t, jobIDs, 1)
}

func TestListArchive_JSONLListingRecord(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha", "photos/b.jpg": "bravo"})
	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	out, err := e.run(t, "", "list-archive", "root", "--output", "jsonl")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	var rec output.Record
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, output.TypeListing, rec.Type)

	var listing output.ListingRecord
	require.NoError(t, json.Unmarshal(rec.Data, &listing))
	assert.Equal(t, output.ListingRecord{Op: "list-archive", Prefix: "root", Entries: 2, Objects: 2, BytesTotal: 10}, listing)
}

func TestArchiveData_WritesMetricsTextfile(t *testing.T) {
	e := newEnv(t, map[string]string{"a.txt": "alpha"})
	path := filepath.Join(t.TempDir(), "coldvault.prom")
	t.Setenv("COLDVAULT_METRICS_TEXTFILE", path)

	_, err := e.run(t, "", "archive-data", "root", "--yes")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `coldvault_items_total{op="archive",outcome="succeeded"} 1`)
}

func TestCommands_RequireUser(t *testing.T) {
	e := newEnv(t, nil)
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--provider", "file", "--root", e.root, "list-archive", "root"})
	defer rootCmd.SetArgs(nil)
	rootCmd.SetOut(&bytes.Buffer{})
	defer rootCmd.SetOut(nil)

	err := rootCmd.ExecuteContext(context.Background())
	requireExitCode(t, err, foundry.ExitInvalidArgument)
}

func TestVersion(t *testing.T) {
	e := newEnv(t, nil)
	SetVersionInfo("1.2.3", "abc123", "2026-01-02")
	defer SetVersionInfo("dev", "HEAD", "unknown")

	out, err := e.run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "coldvault 1.2.3 (commit abc123, built 2026-01-02"), out)
}
