package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/config"
	"github.com/3leaps/coldvault/internal/observability"
	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/provider"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check the configuration, the archive root, credentials and store access,
and suggest fixes for common issues.

Examples:
  coldvault doctor
  coldvault doctor --provider minio`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one diagnostic step. It returns a short detail for the
// success line.
type doctorCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (string, error)
}

func doctorChecks() []doctorCheck {
	return []doctorCheck{
		{name: "Go version", run: func(context.Context, *config.Config) (string, error) { return runtime.Version(), nil }},
		{name: "configuration", run: checkConfig},
		{name: "archive root", run: checkArchiveRoot},
		{name: "credentials", run: checkCredentials},
		{name: "store access", run: checkStoreAccess},
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := appConfig
	log := observability.CLILogger

	log.Info("=== coldvault doctor ===")
	checks := doctorChecks()
	failed := 0
	for i, c := range checks {
		detail, err := c.run(ctx, cfg)
		label := fmt.Sprintf("[%d/%d] Checking %s...", i+1, len(checks), c.name)
		if err != nil {
			failed++
			log.Error(label+" ❌ "+err.Error(), zap.String("check", c.name))
			if c.name == "credentials" {
				printCredentialsHelp(cfg.Store.Provider)
			}
			continue
		}
		log.Info(label+" ✅ "+detail, zap.String("check", c.name))
	}

	if failed > 0 {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed", fmt.Errorf("%d of %d checks failed", failed, len(checks)))
	}
	log.Info("✅ All checks passed!")
	return nil
}

func checkConfig(_ context.Context, cfg *config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("user %s on %s", cfg.User.ID, cfg.Store.Provider), nil
}

func checkArchiveRoot(_ context.Context, cfg *config.Config) (string, error) {
	root, err := filepath.Abs(cfg.Archive.Root)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

func checkCredentials(ctx context.Context, cfg *config.Config) (string, error) {
	switch cfg.Store.Provider {
	case config.ProviderFile:
		return "not required", nil
	case config.ProviderMinio:
		if cfg.Store.AccessKeyID == "" || cfg.Store.SecretAccessKey == "" {
			return "", fmt.Errorf("store.access_key_id and store.secret_access_key are required")
		}
		return maskAccessKey(cfg.Store.AccessKeyID), nil
	}

	if cfg.Store.AccessKeyID != "" {
		return maskAccessKey(cfg.Store.AccessKeyID) + " (config)", nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Store.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Store.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("cannot load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot retrieve credentials: %w", err)
	}
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s (%s)", maskAccessKey(creds.AccessKeyID), source), nil
}

func checkStoreAccess(ctx context.Context, cfg *config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("skipped: %w", err)
	}
	gw, _, err := newGateway(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = gw.Close() }()

	prefix := cfg.User.ID + keys.Separator
	res, err := gw.List(ctx, provider.ListOptions{Prefix: prefix, MaxKeys: 1})
	if err != nil {
		return "", err
	}
	if len(res.Objects) == 0 {
		return fmt.Sprintf("listed %s (empty)", prefix), nil
	}
	return fmt.Sprintf("listed %s", prefix), nil
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printCredentialsHelp prints help for configuring store credentials.
func printCredentialsHelp(providerName string) {
	log := observability.CLILogger
	log.Info("")
	if providerName == config.ProviderMinio {
		log.Info("To configure S3-compatible credentials, set store.access_key_id and")
		log.Info("store.secret_access_key in the config file, or COLDVAULT_STORE_ACCESS_KEY_ID")
		log.Info("and COLDVAULT_STORE_SECRET_ACCESS_KEY.")
		log.Info("")
		return
	}
	log.Info("To configure AWS credentials:")
	log.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	log.Info("  2. Run 'aws configure' and set store.profile, or")
	log.Info("  3. Use IAM role when running on AWS infrastructure")
	log.Info("")
}
