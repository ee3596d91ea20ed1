package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/observability"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/output"
)

var restoreCmd = &cobra.Command{
	Use:     "restore-data <prefix|root>",
	Aliases: []string{"restore_data"},
	Short:   "Request restoration of archived objects",
	Long: `Request a temporary readable copy of every DEEP_ARCHIVE object under a
prefix. Restorations take hours with the Bulk tier; objects already restored
or with a pending request are skipped.

Examples:
  coldvault restore-data photos/2023/
  coldvault restore-data root --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
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

	pair, class, err := s.namespace(prefix, false)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid prefix", err)
	}
	set, err := s.collect(ctx, pair, class)
	if err != nil {
		return err
	}

	plan := &output.PlanRecord{
		Op:         lifecycle.OpRestore,
		Prefix:     prefix,
		Count:      set.Count,
		BytesTotal: set.TotalSize,
		SizeGB:     set.TotalSizeGB(),
	}
	if err := s.writer.WritePlan(ctx, plan); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write plan", err)
	}
	if set.Count == 0 {
		observability.CLILogger.Info("Nothing to restore", zap.String("prefix", prefix))
		return nil
	}

	ok, err := s.confirm(fmt.Sprintf("Restore %d objects (%s) with the %s tier for %d days?",
		set.Count, humanize.IBytes(uint64(set.TotalSize)), s.cfg.Restore.Tier, s.cfg.Restore.Days))
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read confirmation", err)
	}
	if !ok {
		observability.CLILogger.Info("Restore cancelled by user")
		return nil
	}

	s.logger.Info("Starting restore",
		zap.String("prefix", pair.Full),
		zap.Int("objects", set.Count),
		zap.String("tier", s.cfg.Restore.Tier))

	return s.finish(ctx, s.engine(ctx).Restore(ctx, set))
}
