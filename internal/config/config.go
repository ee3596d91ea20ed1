// Package config loads coldvault settings from defaults, an optional YAML
// file, COLDVAULT_* environment variables and runtime overrides, in rising
// order of precedence.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Provider names accepted in store.provider.
const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
	ProviderFile  = "file"
)

// Output formats accepted in output.format.
const (
	OutputText  = "text"
	OutputJSONL = "jsonl"
)

// Config is the complete application configuration.
type Config struct {
	User     UserConfig     `mapstructure:"user"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Restore  RestoreConfig  `mapstructure:"restore"`
	Restored RestoredConfig `mapstructure:"restored"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	Workers        int           `mapstructure:"workers"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// UserConfig identifies whose namespace is used.
type UserConfig struct {
	ID string `mapstructure:"id"`
}

// StoreConfig selects and configures the remote store.
type StoreConfig struct {
	Provider        string `mapstructure:"provider"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PageSize        int    `mapstructure:"page_size"`

	// Path is the base directory of the file provider.
	Path string `mapstructure:"path"`

	// RestoreDelay is how long the file provider keeps restorations in
	// progress.
	RestoreDelay time.Duration `mapstructure:"restore_delay"`
}

// ArchiveConfig configures local enumeration and uploads.
type ArchiveConfig struct {
	Root            string   `mapstructure:"root"`
	StorageClass    string   `mapstructure:"storage_class"`
	Include         string   `mapstructure:"include"`
	Exclude         []string `mapstructure:"exclude"`
	PricePerGBMonth float64  `mapstructure:"price_per_gb_month"`
}

// RestoreConfig parameterizes restore requests.
type RestoreConfig struct {
	Tier string `mapstructure:"tier"`
	Days int    `mapstructure:"days"`
}

// RestoredConfig locates the restored namespace.
type RestoredConfig struct {
	// Segment is inserted after the user id. Empty means restored copies
	// live in place under the archive namespace.
	Segment string `mapstructure:"segment"`
}

// DownloadConfig configures downloads.
type DownloadConfig struct {
	// Folder is joined onto archive.root unless absolute.
	Folder string `mapstructure:"folder"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus textfile after each command.
	Textfile string `mapstructure:"textfile"`
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

var restoreTiers = []string{"Bulk", "Standard", "Expedited"}

// Validate checks the settings every store-touching command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.User.ID) == "" {
		return &ValidationError{Key: "user.id", Message: "is required"}
	}
	if strings.ContainsAny(c.User.ID, "/\\") {
		return &ValidationError{Key: "user.id", Message: "must not contain path separators"}
	}

	switch c.Store.Provider {
	case ProviderS3, ProviderMinio:
		if c.Store.Bucket == "" {
			return &ValidationError{Key: "store.bucket", Message: "is required"}
		}
	case ProviderFile:
		if c.Store.Path == "" {
			return &ValidationError{Key: "store.path", Message: "is required for the file provider"}
		}
		if c.Store.RestoreDelay < 0 {
			return &ValidationError{Key: "store.restore_delay", Message: "must not be negative"}
		}
	default:
		return &ValidationError{Key: "store.provider", Message: fmt.Sprintf("unsupported provider %q", c.Store.Provider)}
	}
	if c.Store.PageSize < 1 || c.Store.PageSize > 1000 {
		return &ValidationError{Key: "store.page_size", Message: "must be between 1 and 1000"}
	}

	if c.Archive.StorageClass == "" {
		return &ValidationError{Key: "archive.storage_class", Message: "is required"}
	}
	if c.Archive.PricePerGBMonth < 0 {
		return &ValidationError{Key: "archive.price_per_gb_month", Message: "must not be negative"}
	}
	if !slices.Contains(restoreTiers, c.Restore.Tier) {
		return &ValidationError{Key: "restore.tier", Message: fmt.Sprintf("must be one of %s", strings.Join(restoreTiers, ", "))}
	}
	if c.Restore.Days < 1 {
		return &ValidationError{Key: "restore.days", Message: "must be at least 1"}
	}
	if strings.Contains(c.Restored.Segment, "/") {
		return &ValidationError{Key: "restored.segment", Message: "must be a single path segment"}
	}
	if c.Download.Folder == "" {
		return &ValidationError{Key: "download.folder", Message: "is required"}
	}

	if c.Workers < 1 {
		return &ValidationError{Key: "workers", Message: "must be at least 1"}
	}
	if c.RateLimit < 0 {
		return &ValidationError{Key: "rate_limit", Message: "must not be negative"}
	}
	if c.RequestTimeout < 0 {
		return &ValidationError{Key: "request_timeout", Message: "must not be negative"}
	}
	switch c.Output.Format {
	case OutputText, OutputJSONL:
	default:
		return &ValidationError{Key: "output.format", Message: fmt.Sprintf("unsupported format %q", c.Output.Format)}
	}
	return nil
}
