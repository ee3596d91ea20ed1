// Package cmd implements the coldvault command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/config"
	"github.com/3leaps/coldvault/internal/observability"
)

// versionInfo is stamped by the entry point from ldflags.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Persistent flags.
var (
	flagConfigFile string
	flagUser       string
	flagProvider   string
	flagBucket     string
	flagRoot       string
	flagWorkers    int
	flagLogLevel   string
	flagLogFormat  string
	flagOutput     string
	flagYes        bool
)

// Process-wide state set up by PersistentPreRunE.
var (
	appConfig *config.Config
	stdin     io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "coldvault",
	Short: "Archive, restore and download files in deep-archive object storage",
	Long: `coldvault keeps a per-user archive of local files in a cold storage tier.

Files under the archive root are uploaded with the DEEP_ARCHIVE storage class,
restored on request into a readable copy, and downloaded back once the
restoration completed. Every operation works on a prefix: the literal "root"
or a folder path ending in "/".

Examples:
  coldvault archive-data photos/2023/
  coldvault list-archive root
  coldvault restore-data photos/2023/ --yes
  coldvault download-data photos/2023/`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigFile, "config", "", "Config file (default $XDG_CONFIG_HOME/coldvault/config.yaml)")
	pf.StringVarP(&flagUser, "user", "u", "", "User id owning the archive namespace")
	pf.StringVar(&flagProvider, "provider", "", "Store provider (s3, minio, file)")
	pf.StringVarP(&flagBucket, "bucket", "b", "", "Bucket name")
	pf.StringVar(&flagRoot, "root", "", "Local archive root directory")
	pf.IntVarP(&flagWorkers, "workers", "w", 0, "Number of parallel batches")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (console, json)")
	pf.StringVarP(&flagOutput, "output", "o", "", "Record output format (text, jsonl)")
	pf.BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt")
}

// setup loads configuration and initializes the logger.
func setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadWithOptions(ctx, config.Options{
		File:      flagConfigFile,
		Overrides: []map[string]any{flagOverrides(cmd)},
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	appConfig = cfg
	return nil
}

// flagOverrides maps explicitly set persistent flags onto config keys.
func flagOverrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	flags := cmd.Flags()
	set := func(name, key string, val any) {
		if flags.Changed(name) {
			out[key] = val
		}
	}
	set("user", "user.id", flagUser)
	set("provider", "store.provider", flagProvider)
	set("bucket", "store.bucket", flagBucket)
	set("root", "archive.root", flagRoot)
	set("workers", "workers", flagWorkers)
	set("log-level", "logging.level", flagLogLevel)
	set("log-format", "logging.format", flagLogFormat)
	set("output", "output.format", flagOutput)
	return out
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	code := 1
	var ee *ExitError
	if errors.As(err, &ee) {
		code = ee.Code
	}
	observability.CLILogger.Error("Command failed", zap.Int("exit_code", code), zap.Error(err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return code
}
