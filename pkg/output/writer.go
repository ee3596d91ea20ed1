package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Writer outputs the records of one command invocation.
//
// Implementations must be safe for concurrent use from multiple
// goroutines; item records arrive from the batch workers.
type Writer interface {
	// WritePlan emits the plan shown before confirmation.
	WritePlan(ctx context.Context, plan *PlanRecord) error

	// WriteItem emits the result of one item.
	WriteItem(ctx context.Context, item *ItemRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// WriteEntry emits one entry of a reduced listing.
	WriteEntry(ctx context.Context, entry *EntryRecord) error

	// WriteListing emits the closing summary of a reduced listing.
	WriteListing(ctx context.Context, listing *ListingRecord) error

	// WriteObject emits one object of a detailed listing.
	WriteObject(ctx context.Context, obj *ObjectRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string
	mu       sync.Mutex
	closed   bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this command invocation
//   - provider: Storage provider identifier (e.g., "s3")
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		jobID:    jobID,
		provider: provider,
	}
}

// WritePlan emits a plan record.
func (jw *JSONLWriter) WritePlan(ctx context.Context, plan *PlanRecord) error {
	return jw.writeRecord(ctx, TypePlan, plan)
}

// WriteItem emits an item record.
func (jw *JSONLWriter) WriteItem(ctx context.Context, item *ItemRecord) error {
	return jw.writeRecord(ctx, TypeItem, item)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

func (jw *JSONLWriter) WriteEntry(ctx context.Context, entry *EntryRecord) error {
	return jw.writeRecord(ctx, TypeEntry, entry)
}

func (jw *JSONLWriter) WriteListing(ctx context.Context, listing *ListingRecord) error {
	return jw.writeRecord(ctx, TypeListing, listing)
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return jw.writeRecord(ctx, TypeObject, obj)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the payload outside the lock.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:     recordType,
		TS:       time.Now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// TextWriter prints records as console lines for people.
//
// Item lines carry the running percentage so long batches show progress;
// the summary line always reads "{op}: {succeeded}/{total} succeeded".
type TextWriter struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
}

// NewTextWriter creates a console writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (tw *TextWriter) WritePlan(ctx context.Context, plan *PlanRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d %s, %.3f GB (%s)", plan.Op, plan.Prefix, plan.Count, plural(plan.Count, "object", "objects"),
		plan.SizeGB, humanize.IBytes(uint64(max(plan.BytesTotal, 0))))
	if plan.MonthlyCostUSD > 0 {
		fmt.Fprintf(&b, ", estimated $%.4f per month", plan.MonthlyCostUSD)
	}
	if plan.Destination != "" {
		fmt.Fprintf(&b, ", into %s", plan.Destination)
	}
	return tw.writeLine(ctx, b.String())
}

func (tw *TextWriter) WriteItem(ctx context.Context, item *ItemRecord) error {
	line := fmt.Sprintf("[%7.3f%%] %s %s: %s", item.Percent, item.Op, item.Key, item.Outcome)
	if item.Error != nil {
		line += " (" + item.Error.Message + ")"
	}
	return tw.writeLine(ctx, line)
}

func (tw *TextWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	line := fmt.Sprintf("%s: %d/%d succeeded (%d skipped, %d failed, %s in %s)",
		sum.Op, sum.Succeeded, sum.Total, sum.Skipped, sum.Failed,
		humanize.IBytes(uint64(max(sum.BytesTotal, 0))), sum.Duration.Round(time.Millisecond))
	return tw.writeLine(ctx, line)
}

func (tw *TextWriter) WriteEntry(ctx context.Context, entry *EntryRecord) error {
	return tw.writeLine(ctx, entry.Name)
}

func (tw *TextWriter) WriteListing(ctx context.Context, listing *ListingRecord) error {
	return tw.writeLine(ctx, fmt.Sprintf("%s %s: %d %s from %d %s", listing.Op, listing.Prefix,
		listing.Entries, plural(listing.Entries, "entry", "entries"),
		listing.Objects, plural(listing.Objects, "object", "objects")))
}

func (tw *TextWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return tw.writeLine(ctx, fmt.Sprintf("%s\t%s\t%s\t%s", obj.Key, humanize.IBytes(uint64(max(obj.Size, 0))), obj.StorageClass, obj.State))
}

func (tw *TextWriter) WriteError(ctx context.Context, rec *ErrorRecord) error {
	line := "error " + rec.Code + ": " + rec.Message
	if rec.Key != "" {
		line += " [" + rec.Key + "]"
	}
	return tw.writeLine(ctx, line)
}

// Close marks the writer as closed. The underlying writer is left open.
func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.closed = true
	return nil
}

func (tw *TextWriter) writeLine(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return ErrWriterClosed
	}
	if err := writeAll(tw.w, []byte(line+"\n")); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// writeAll writes all bytes to w, handling short writes.
//
// io.Writer.Write may return n < len(p) with a nil error; a truncated line
// would corrupt JSONL output.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Compile-time checks.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = (*TextWriter)(nil)
)
