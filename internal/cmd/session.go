package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/coldvault/internal/config"
	"github.com/3leaps/coldvault/internal/observability"
	"github.com/3leaps/coldvault/pkg/batch"
	"github.com/3leaps/coldvault/pkg/lifecycle"
	"github.com/3leaps/coldvault/pkg/output"
	"github.com/3leaps/coldvault/pkg/provider"
)

// session holds everything one store-touching command invocation uses.
type session struct {
	cfg     *config.Config
	jobID   string
	gw      provider.Gateway
	prov    provider.ProviderType
	writer  output.Writer
	metrics *observability.Metrics
	logger  *zap.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// newSession validates the configuration and connects to the store. No
// remote call is made here.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg := appConfig
	if cfg == nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Configuration not loaded", fmt.Errorf("setup did not run"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	jobID := uuid.New().String()
	logger := observability.CLILogger.With(zap.String("job_id", jobID))

	gw, prov, err := newGateway(cmd.Context(), cfg)
	if err != nil {
		logger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}

	s := &session{
		cfg:     cfg,
		jobID:   jobID,
		gw:      gw,
		prov:    prov,
		metrics: observability.NewMetrics(),
		logger:  logger,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}
	if cfg.Output.Format == config.OutputJSONL {
		s.writer = output.NewJSONLWriter(s.stdout, jobID, prov.String())
	} else {
		s.writer = output.NewTextWriter(s.stdout)
	}
	return s, nil
}

func (s *session) close() {
	_ = s.writer.Close()
	if err := s.gw.Close(); err != nil {
		s.logger.Debug("Failed to close provider", zap.Error(err))
	}
}

// engine builds a lifecycle engine reporting every item to the writer and
// the metrics.
func (s *session) engine(ctx context.Context) *lifecycle.Engine {
	return lifecycle.New(s.gw, lifecycle.Config{
		UserID:       s.cfg.User.ID,
		StorageClass: s.cfg.Archive.StorageClass,
		RestoreTier:  s.cfg.Restore.Tier,
		RestoreDays:  s.cfg.Restore.Days,
		Batch: batch.Config{
			Workers:   s.cfg.Workers,
			RateLimit: s.cfg.RateLimit,
		},
		Observer: func(ev lifecycle.ItemEvent) { s.observe(ctx, ev) },
	}, s.logger)
}

func (s *session) observe(ctx context.Context, ev lifecycle.ItemEvent) {
	s.metrics.ObserveItem(ev.Op, ev.Outcome.String(), ev.Size)
	rec := &output.ItemRecord{
		Op:        ev.Op,
		Key:       ev.Key,
		Size:      ev.Size,
		Outcome:   ev.Outcome.String(),
		Percent:   ev.Progress.Percent,
		Processed: ev.Progress.Processed,
		Total:     ev.Progress.Total,
		Error:     output.NewErrorRecord(ev.Err, ev.Key),
	}
	// The command context may already be canceled; the record still belongs
	// in the output.
	if err := s.writer.WriteItem(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Debug("Failed to write item record", zap.Error(err))
	}
}

// finish reports a summary and exports metrics.
func (s *session) finish(ctx context.Context, sum *lifecycle.Summary) error {
	rec := &output.SummaryRecord{
		Op:            sum.Op,
		Total:         sum.Total,
		Processed:     sum.Processed,
		Succeeded:     sum.Succeeded,
		Skipped:       sum.Skipped,
		Failed:        sum.Failed,
		BytesTotal:    sum.Bytes,
		SizeGB:        gigabytes(sum.Bytes),
		Duration:      sum.Duration,
		DurationHuman: sum.Duration.Round(time.Millisecond).String(),
	}
	if err := s.writer.WriteSummary(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("Failed to write summary", zap.Error(err))
	}

	s.metrics.ObserveRun(sum.Op, sum.Duration, sum.Started.Add(sum.Duration))
	s.exportMetrics()

	s.logger.Info("Operation completed",
		zap.String("op", sum.Op),
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", sum.Duration))

	if err := ctx.Err(); err != nil {
		return exitError(foundry.ExitSignalInt, sum.Op+" cancelled", err)
	}
	return nil
}

func (s *session) exportMetrics() {
	path := s.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := s.metrics.WriteTextfile(path); err != nil {
		s.logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}

// reportError writes an error record for a command-level failure.
func (s *session) reportError(ctx context.Context, err error, prefix string) {
	rec := output.NewErrorRecord(err, "")
	rec.Prefix = prefix
	if werr := s.writer.WriteError(context.WithoutCancel(ctx), rec); werr != nil {
		s.logger.Debug("Failed to write error record", zap.Error(werr))
	}
}

// confirm asks on stderr and reads one line from stdin. Only "Y" proceeds.
func (s *session) confirm(question string) (bool, error) {
	if flagYes {
		return true, nil
	}
	return confirm(stdin, s.stderr, question)
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s Type Y to continue: ", question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.TrimSpace(line) == "Y", nil
}

const bytesPerGB = 1 << 30

func gigabytes(n int64) float64 {
	return float64(n) / bytesPerGB
}
