package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/listing"
	"github.com/3leaps/coldvault/pkg/output"
	"github.com/3leaps/coldvault/pkg/provider"
)

var (
	listDetail bool
	listFormat string
)

var listArchiveCmd = &cobra.Command{
	Use:     "list-archive <prefix|root>",
	Aliases: []string{"list_archive"},
	Short:   "List archived folders and files",
	Long: `List the folders and files directly below a prefix of the archive.

With --detail every object is probed for its restoration state, which costs
one request per object.

Examples:
  coldvault list-archive root
  coldvault list-archive photos/ --detail --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args[0], false)
	},
}

var listRestoredCmd = &cobra.Command{
	Use:     "list-restored <prefix|root>",
	Aliases: []string{"list_restored"},
	Short:   "List restored folders and files ready for download",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args[0], true)
	},
}

func init() {
	for _, c := range []*cobra.Command{listArchiveCmd, listRestoredCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVar(&listDetail, "detail", false, "Probe every object and show its restoration state")
		c.Flags().StringVar(&listFormat, "format", "", "Export format (yaml); default follows --output")
	}
}

func runList(cmd *cobra.Command, prefix string, restored bool) error {
	ctx := cmd.Context()

	if err := keys.ValidatePrefix(prefix); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid prefix", err)
	}
	if listFormat != "" && listFormat != "yaml" {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", fmt.Errorf("unsupported format %q", listFormat))
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	pair, class, err := s.namespace(prefix, restored)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid prefix", err)
	}
	set, err := s.collect(ctx, pair, class)
	if err != nil {
		return err
	}

	if listDetail {
		objects, sum := s.engine(ctx).Inspect(ctx, set)
		records := make([]output.ObjectRecord, len(objects))
		for i, o := range objects {
			records[i] = output.ObjectRecord{Key: o.Key, Size: o.Size, StorageClass: o.StorageClass, State: o.State.String()}
		}
		if listFormat == "yaml" {
			if err := output.WriteYAML(s.stdout, &output.Listing{Prefix: prefix, Objects: records}); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write listing", err)
			}
			return nil
		}
		for i := range records {
			if err := s.writer.WriteObject(ctx, &records[i]); err != nil {
				return exitError(foundry.ExitFileWriteError, "Failed to write listing", err)
			}
		}
		return s.finish(ctx, sum)
	}

	entries := lifecycle.Enumerate(set)
	if listFormat == "yaml" {
		if err := output.WriteYAML(s.stdout, &output.Listing{Prefix: prefix, Entries: entries}); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write listing", err)
		}
		return nil
	}
	for _, name := range entries {
		if err := s.writer.WriteEntry(ctx, &output.EntryRecord{Scope: prefix, Name: name}); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write listing", err)
		}
	}
	listingRec := &output.ListingRecord{
		Op:         cmd.Name(),
		Prefix:     prefix,
		Entries:    len(entries),
		Objects:    set.Count,
		BytesTotal: set.TotalSize,
	}
	if err := s.writer.WriteListing(ctx, listingRec); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write listing", err)
	}
	s.logger.Debug("Listed prefix",
		zap.String("prefix", pair.Full),
		zap.Int("objects", set.Count),
		zap.Int("entries", len(entries)))
	return nil
}

// namespace resolves prefix into the archive or restored namespace and the
// storage class its objects are filtered on.
func (s *session) namespace(prefix string, restored bool) (keys.PrefixPair, string, error) {
	if !restored {
		pair, err := keys.ArchivePrefix(s.cfg.User.ID, prefix)
		return pair, provider.StorageClassDeepArchive, err
	}
	pair, err := keys.RestoredPrefix(s.cfg.User.ID, s.cfg.Restored.Segment, prefix)
	if s.cfg.Restored.Segment == "" {
		// Restored in place: the class stays cold, readiness shows at read time.
		return pair, "", err
	}
	return pair, provider.StorageClassStandard, err
}

// collect lists pair and maps listing failures onto exit codes.
func (s *session) collect(ctx context.Context, pair keys.PrefixPair, class string) (*listing.ObjectSet, error) {
	set, err := listing.Collect(ctx, s.gw, pair, listing.Options{StorageClass: class, PageSize: s.cfg.Store.PageSize})
	if err == nil {
		return set, nil
	}

	s.reportError(ctx, err, pair.Full)
	if ctx.Err() != nil {
		return nil, exitError(foundry.ExitSignalInt, "Listing cancelled", err)
	}
	var le *listing.ListError
	if errors.As(err, &le) {
		s.logger.Error("Failed to list objects", zap.String("prefix", le.Prefix), zap.Int("page", le.Page), zap.Error(le.Err))
	}
	return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to list objects", err)
}
