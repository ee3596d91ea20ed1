// Package restorestate classifies cold objects from their restore header.
//
// The header is the value S3 returns as x-amz-restore, for example:
//
//	ongoing-request="true"
//	ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"
package restorestate

import (
	"strings"
	"time"
)

// State is the restoration state of one object.
type State int

const (
	// Archived means no restoration was ever requested.
	Archived State = iota

	// RestorationInProgress means a request is pending.
	RestorationInProgress

	// RestorationComplete means a restored copy is readable.
	RestorationComplete
)

func (s State) String() string {
	switch s {
	case Archived:
		return "ARCHIVED"
	case RestorationInProgress:
		return "RESTORATION_IN_PROGRESS"
	case RestorationComplete:
		return "RESTORATION_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Info is a parsed restore header.
type Info struct {
	State State

	// Expiry is when the restored copy goes away. Zero when unknown.
	Expiry time.Time
}

// Classify maps a restore header onto a State.
func Classify(header string) State {
	return Parse(header).State
}

// Parse decodes a restore header. Unknown attributes are ignored.
func Parse(header string) Info {
	header = strings.TrimSpace(header)
	if header == "" {
		return Info{State: Archived}
	}

	attrs := attributes(header)
	if strings.EqualFold(attrs["ongoing-request"], "true") {
		return Info{State: RestorationInProgress}
	}

	info := Info{State: RestorationComplete}
	if raw, ok := attrs["expiry-date"]; ok {
		if t, err := time.Parse(time.RFC1123, raw); err == nil {
			info.Expiry = t
		}
	}
	return info
}

// attributes splits `k1="v1", k2="v2"` into a map. Values may contain commas
// (dates do), so the split follows the quotes rather than the commas.
func attributes(header string) map[string]string {
	out := make(map[string]string)
	rest := header
	for {
		eq := strings.Index(rest, "=")
		if eq < 0 {
			return out
		}
		key := strings.ToLower(strings.Trim(rest[:eq], " ,"))
		rest = strings.TrimLeft(rest[eq+1:], " ")

		var val string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				out[key] = rest[1:]
				return out
			}
			val, rest = rest[1:end+1], rest[end+2:]
		} else {
			end := strings.Index(rest, ",")
			if end < 0 {
				end = len(rest)
			}
			val, rest = strings.TrimSpace(rest[:end]), rest[end:]
		}
		out[key] = val
	}
}
