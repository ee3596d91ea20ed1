// Package output renders lifecycle results.
//
// Two writers share one interface: JSONLWriter emits typed record envelopes,
// one self-contained JSON object per line, for machines; TextWriter prints
// the per-item percentage lines and the final {succeeded}/{total} summary for
// people. Listings can also be exported as YAML.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/coldvault/pkg/provider"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: coldvault.<type>.v<version>
const (
	// TypePlan identifies the pre-confirmation plan of an operation.
	TypePlan = "coldvault.plan.v1"

	// TypeItem identifies per-item results.
	TypeItem = "coldvault.item.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "coldvault.summary.v1"

	// TypeEntry identifies folder/file entries of a listing.
	TypeEntry = "coldvault.entry.v1"

	// TypeListing identifies the closing summary of a listing.
	TypeListing = "coldvault.listing.v1"

	// TypeObject identifies detailed object listings.
	TypeObject = "coldvault.object.v1"

	// TypeError identifies error records.
	TypeError = "coldvault.error.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "coldvault.item.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID correlates all records of one command invocation.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "minio").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// PlanRecord describes what an operation is about to do.
type PlanRecord struct {
	Op     string `json:"op"`
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`

	BytesTotal int64   `json:"bytes_total"`
	SizeGB     float64 `json:"size_gb"`

	// MonthlyCostUSD is the storage cost estimate for archive plans.
	MonthlyCostUSD float64 `json:"monthly_cost_usd,omitempty"`

	// Destination is the local directory for download plans.
	Destination string `json:"destination,omitempty"`
}

// ItemRecord is the result of one item.
type ItemRecord struct {
	Op      string  `json:"op"`
	Key     string  `json:"key"`
	Size    int64   `json:"size"`
	Outcome string  `json:"outcome"`
	Percent float64 `json:"percent"`

	Processed int `json:"processed"`
	Total     int `json:"total"`

	// Error is set for skipped items with a reason and for failed items.
	Error *ErrorRecord `json:"error,omitempty"`
}

// SummaryRecord aggregates one operation.
type SummaryRecord struct {
	Op        string `json:"op"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`

	BytesTotal int64   `json:"bytes_total"`
	SizeGB     float64 `json:"size_gb"`

	// Duration is the batch phase duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// EntryRecord is one folder ("photos/") or file ("a.txt") of a listing.
type EntryRecord struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

// ListingRecord closes a listing: how many entries the listed objects
// reduced to.
type ListingRecord struct {
	Op         string `json:"op"`
	Prefix     string `json:"prefix"`
	Entries    int    `json:"entries"`
	Objects    int    `json:"objects"`
	BytesTotal int64  `json:"bytes_total"`
}

// ObjectRecord is one object of a detailed listing.
type ObjectRecord struct {
	Key          string `json:"key" yaml:"key"`
	Size         int64  `json:"size" yaml:"size"`
	StorageClass string `json:"storage_class" yaml:"storage_class"`
	State        string `json:"state" yaml:"state"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeThrottled         = "THROTTLED"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeCredentials       = "INVALID_CREDENTIALS"
	ErrCodeNotRestored       = "NOT_RESTORED"
	ErrCodeRestoreInProgress = "RESTORE_IN_PROGRESS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeInternal          = "INTERNAL"
)

// ErrorCode maps an error onto an ErrorRecord code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case provider.IsNotRestorable(err):
		return ErrCodeNotRestored
	case provider.IsRestoreInProgress(err):
		return ErrCodeRestoreInProgress
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return ErrCodeNotFound
	case provider.IsAccessDenied(err):
		return ErrCodeAccessDenied
	case provider.IsInvalidCredentials(err):
		return ErrCodeCredentials
	case provider.IsThrottled(err):
		return ErrCodeThrottled
	case provider.IsProviderUnavailable(err):
		return ErrCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}

// NewErrorRecord builds an ErrorRecord for err, or nil when err is nil.
func NewErrorRecord(err error, key string) *ErrorRecord {
	if err == nil {
		return nil
	}
	return &ErrorRecord{Code: ErrorCode(err), Message: err.Error(), Key: key}
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
