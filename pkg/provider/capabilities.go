package provider

import (
	"context"
	"io"
)

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains intentionally small; Gateway composes them for
// the lifecycle engine.

// PutOptions configures an upload.
type PutOptions struct {
	// StorageClass is the storage tier hint for the new object.
	// Empty uses the bucket default.
	StorageClass string

	// ContentType is stored with the object when set.
	ContentType string
}

// ObjectPutter can create/overwrite objects.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts PutOptions) error
}

// ObjectDeleter can delete objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// ObjectGetter can download objects as a stream.
//
// Returns ErrNotRestorable when the object sits in a cold tier and has no
// completed restoration.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (body io.ReadCloser, contentLength int64, err error)
}

// RestoreOptions configures a restoration request.
type RestoreOptions struct {
	// Tier is the retrieval speed/cost tier (Bulk, Standard, Expedited).
	Tier string

	// Days is how long the restored copy stays retrievable.
	Days int
}

// RestoreStatus is the non-error outcome of a restoration request.
type RestoreStatus int

const (
	// RestoreAccepted means a new restoration was started (HTTP 202).
	RestoreAccepted RestoreStatus = iota

	// RestoreAlreadyRestored means a restored copy already exists (HTTP 200).
	RestoreAlreadyRestored
)

// String returns a short name for the status.
func (s RestoreStatus) String() string {
	switch s {
	case RestoreAccepted:
		return "accepted"
	case RestoreAlreadyRestored:
		return "already_restored"
	default:
		return "unknown"
	}
}

// ObjectRestorer can request restoration of cold objects.
//
// An ongoing restoration is reported as ErrRestoreInProgress.
type ObjectRestorer interface {
	RestoreObject(ctx context.Context, key string, opts RestoreOptions) (RestoreStatus, error)
}
