package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/config"
	"github.com/3leaps/coldvault/internal/observability"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/output"
)

var downloadCmd = &cobra.Command{
	Use:     "download-data <prefix|root>",
	Aliases: []string{"download_data"},
	Short:   "Download restored objects",
	Long: `Download every restored object under a prefix into
{archive.root}/{download.folder}, keeping the folder structure.

Objects whose restoration has not completed are skipped and can be fetched
by running the command again later.

Examples:
  coldvault download-data photos/2023/
  coldvault download-data root --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	prefix := args[0]

	if err := keys.ValidatePrefix(prefix); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid prefix", err)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	dest, err := downloadDir(s.cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid download directory", err)
	}

	pair, class, err := s.namespace(prefix, true)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid prefix", err)
	}
	set, err := s.collect(ctx, pair, class)
	if err != nil {
		return err
	}

	plan := &output.PlanRecord{
		Op:          lifecycle.OpDownload,
		Prefix:      prefix,
		Count:       set.Count,
		BytesTotal:  set.TotalSize,
		SizeGB:      set.TotalSizeGB(),
		Destination: dest,
	}
	if err := s.writer.WritePlan(ctx, plan); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write plan", err)
	}
	if set.Count == 0 {
		observability.CLILogger.Info("Nothing to download", zap.String("prefix", prefix))
		return nil
	}

	ok, err := s.confirm(fmt.Sprintf("Download %d objects (%s) into %s?",
		set.Count, humanize.IBytes(uint64(set.TotalSize)), dest))
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read confirmation", err)
	}
	if !ok {
		observability.CLILogger.Info("Download cancelled by user")
		return nil
	}

	s.logger.Info("Starting download",
		zap.String("prefix", pair.Full),
		zap.String("destination", dest),
		zap.Int("objects", set.Count))

	sum, err := s.engine(ctx).Download(ctx, set, dest)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to prepare download directory", err)
	}
	return s.finish(ctx, sum)
}

// downloadDir resolves download.folder, relative to archive.root unless
// absolute.
func downloadDir(cfg *config.Config) (string, error) {
	if filepath.IsAbs(cfg.Download.Folder) {
		return filepath.Clean(cfg.Download.Folder), nil
	}
	root, err := filepath.Abs(cfg.Archive.Root)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, cfg.Download.Folder), nil
}
