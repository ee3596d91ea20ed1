package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/observability"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/localfs"
	"github.com/3leaps/coldvault/pkg/output"
)

var archiveCmd = &cobra.Command{
	Use:     "archive-data <prefix|root>",
	Aliases: []string{"archive_data"},
	Short:   "Upload local files into the deep-archive tier",
	Long: `Upload every file under {archive.root}/{prefix} into the user's archive
namespace with the configured cold storage class.

Files whose key already exists are skipped, so the command can be re-run
after an interruption. A cost estimate is shown before confirmation.

Examples:
  coldvault archive-data root
  coldvault archive-data photos/2023/ --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
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

	root, err := filepath.Abs(s.cfg.Archive.Root)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid archive root", err)
	}
	set, err := localfs.Enumerate(root, localTarget(root, prefix), localfs.Options{
		Include: s.cfg.Archive.Include,
		Exclude: s.cfg.Archive.Exclude,
	})
	if err != nil {
		var rootErr *localfs.InvalidRootError
		if errors.As(err, &rootErr) {
			return exitError(foundry.ExitInvalidArgument, "Invalid archive directory", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to enumerate local files", err)
	}

	plan := &output.PlanRecord{
		Op:             lifecycle.OpArchive,
		Prefix:         prefix,
		Count:          set.Count,
		BytesTotal:     set.TotalSize,
		SizeGB:         set.TotalSizeGB(),
		MonthlyCostUSD: monthlyCost(set.TotalSizeGB(), s.cfg.Archive.PricePerGBMonth),
	}
	if err := s.writer.WritePlan(ctx, plan); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write plan", err)
	}
	if set.Count == 0 {
		observability.CLILogger.Info("Nothing to archive", zap.String("prefix", prefix))
		return nil
	}

	ok, err := s.confirm(fmt.Sprintf("Archive %d files (%s) for about $%.4f per month?",
		set.Count, humanize.IBytes(uint64(set.TotalSize)), plan.MonthlyCostUSD))
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read confirmation", err)
	}
	if !ok {
		observability.CLILogger.Info("Archive cancelled by user")
		return nil
	}

	s.logger.Info("Starting archive",
		zap.String("root", root),
		zap.String("prefix", prefix),
		zap.Int("files", set.Count),
		zap.Int("workers", s.cfg.Workers))

	return s.finish(ctx, s.engine(ctx).Archive(ctx, set))
}

// localTarget resolves prefix below the archive root.
func localTarget(root, prefix string) string {
	if prefix == keys.Root {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(prefix))
}

// monthlyCost estimates the storage cost of sizeGB at pricePerGB per month.
func monthlyCost(sizeGB, pricePerGB float64) float64 {
	return sizeGB * pricePerGB
}
