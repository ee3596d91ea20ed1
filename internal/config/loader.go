package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "COLDVAULT"

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// EnvSpec maps an environment variable onto a config path.
type EnvSpec struct {
	Name string
	Path string
}

// getEnvSpecs lists the short environment aliases. Every key is also
// reachable as COLDVAULT_<KEY> with dots replaced by underscores.
func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "_USER", Path: "user.id"},
		{Name: EnvPrefix + "_PROVIDER", Path: "store.provider"},
		{Name: EnvPrefix + "_BUCKET", Path: "store.bucket"},
		{Name: EnvPrefix + "_REGION", Path: "store.region"},
		{Name: EnvPrefix + "_ENDPOINT", Path: "store.endpoint"},
		{Name: EnvPrefix + "_ROOT", Path: "archive.root"},
		{Name: EnvPrefix + "_LOG_LEVEL", Path: "logging.level"},
		{Name: EnvPrefix + "_LOG_FORMAT", Path: "logging.format"},
		{Name: EnvPrefix + "_OUTPUT", Path: "output.format"},
	}
}

// SetDefaults installs the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user.id", "")

	v.SetDefault("store.provider", ProviderS3)
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.profile", "")
	v.SetDefault("store.access_key_id", "")
	v.SetDefault("store.secret_access_key", "")
	v.SetDefault("store.session_token", "")
	v.SetDefault("store.force_path_style", false)
	v.SetDefault("store.page_size", 1000)
	v.SetDefault("store.path", "")
	v.SetDefault("store.restore_delay", "0s")

	v.SetDefault("archive.root", ".")
	v.SetDefault("archive.storage_class", "DEEP_ARCHIVE")
	v.SetDefault("archive.include", "**/*.*")
	v.SetDefault("archive.exclude", []string{})
	v.SetDefault("archive.price_per_gb_month", 0.00099)

	v.SetDefault("restore.tier", "Bulk")
	v.SetDefault("restore.days", 10)
	v.SetDefault("restored.segment", "restored")
	v.SetDefault("download.folder", "downloads")

	v.SetDefault("workers", 8)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("request_timeout", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("output.format", OutputText)
	v.SetDefault("metrics.textfile", "")
}

// getUserConfigPaths returns the default config file locations, most
// specific first.
func getUserConfigPaths() []string {
	var paths []string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "coldvault", "config.yaml"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "coldvault", "config.yaml")
		if len(paths) == 0 || paths[0] != p {
			paths = append(paths, p)
		}
	}
	return paths
}

// Options controls Load.
type Options struct {
	// File is an explicit config file. It must exist when set.
	File string

	// Overrides are applied last, as nested maps or dotted keys.
	Overrides []map[string]any
}

// Load builds the configuration from defaults, the default config file if
// present, the environment and overrides.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadWithOptions(ctx, Options{Overrides: overrides})
}

// LoadWithOptions is Load with an explicit config file.
func LoadWithOptions(ctx context.Context, opts Options) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	if err := readConfigFile(v, opts.File); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(spec.Path, ".", "_")), spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range opts.Overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Archive.Exclude = compact(cfg.Archive.Exclude)

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the configuration of the last successful Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", explicit, err)
		}
		return nil
	}
	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
