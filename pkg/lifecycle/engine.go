// Package lifecycle runs the archive, restore, download and enumerate
// operations on top of the batch worker pool.
//
// Every operation follows the same shape: build the item list (local files or
// a retained listing), run a per-item executor through batch.Run, and return a
// Summary. Item failures are absorbed, logged and reported through the
// Observer; only precondition and listing failures surface as errors, and
// those happen before the engine is called.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/progress"
	"github.com/3leaps/coldvault/pkg/provider"
)

// Operation names used in events, logs and summaries.
const (
	OpArchive  = "archive"
	OpRestore  = "restore"
	OpDownload = "download"
	OpInspect  = "inspect"
)

// Defaults for Config.
const (
	DefaultRestoreTier = "Bulk"
	DefaultRestoreDays = 10
)

// Config configures an Engine.
type Config struct {
	// UserID owns every key the engine touches.
	UserID string

	// StorageClass is the class archive uploads are tagged with.
	StorageClass string

	// RestoreTier and RestoreDays parameterize restore requests.
	RestoreTier string
	RestoreDays int

	// Batch configures the worker pool.
	Batch batch.Config

	// Observer, when set, receives every finished item. It is called from
	// worker goroutines and must be safe for concurrent use.
	Observer func(ItemEvent)
}

func (c Config) withDefaults() Config {
	if c.StorageClass == "" {
		c.StorageClass = provider.StorageClassDeepArchive
	}
	if c.RestoreTier == "" {
		c.RestoreTier = DefaultRestoreTier
	}
	if c.RestoreDays <= 0 {
		c.RestoreDays = DefaultRestoreDays
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = batch.DefaultWorkers
	}
	return c
}

// ItemEvent describes one finished item.
type ItemEvent struct {
	Op string

	// Key is the user-facing key (internal prefix stripped).
	Key string

	Size     int64
	Outcome  batch.Outcome
	Err      error
	Progress progress.Snapshot
}

// Summary aggregates one operation.
type Summary struct {
	Op    string
	Total int
	batch.Result

	// Bytes is the total size of the items the operation was given.
	Bytes    int64
	Started  time.Time
	Duration time.Duration
}

// Engine executes lifecycle operations against one gateway.
type Engine struct {
	gw     provider.Gateway
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates an engine. A nil logger disables logging.
func New(gw provider.Gateway, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gw: gw, cfg: cfg.withDefaults(), logger: logger, now: time.Now}
}

// run drives items through the worker pool, logging and publishing each
// finished item.
func run[T any](ctx context.Context, e *Engine, op string, items []T, bytes int64,
	describe func(T) (string, int64), fn batch.ItemFunc[T]) *Summary {
	started := e.now()
	log := e.logger.With(zap.String("op", op))

	result := batch.Run(ctx, items, e.cfg.Batch, fn, func(item T, outcome batch.Outcome, err error, snap progress.Snapshot) {
		key, size := describe(item)
		fields := []zap.Field{
			zap.String("key", key),
			zap.Float64("percent", snap.Percent),
			zap.String("outcome", outcome.String()),
		}
		switch {
		case outcome == batch.Failed:
			log.Warn("item failed", append(fields, zap.Error(err))...)
		case err != nil:
			log.Info("item skipped", append(fields, zap.Error(err))...)
		default:
			log.Debug("item done", fields...)
		}

		if e.cfg.Observer != nil {
			e.cfg.Observer(ItemEvent{Op: op, Key: key, Size: size, Outcome: outcome, Err: err, Progress: snap})
		}
	})

	return &Summary{
		Op:       op,
		Total:    len(items),
		Result:   result,
		Bytes:    bytes,
		Started:  started,
		Duration: e.now().Sub(started),
	}
}
