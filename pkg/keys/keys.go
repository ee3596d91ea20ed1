// Package keys builds and interprets the remote keys of one user's namespace.
//
// Every object a user owns lives under "{userID}/". Restored copies live under
// an additional segment, "{userID}/{segment}/". A PrefixPair carries both the
// fully-qualified prefix used for remote calls and the internal prefix that is
// stripped before a key is shown to the user or mapped onto local disk.
package keys

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Root is the literal prefix argument that selects a user's whole namespace.
const Root = "root"

// Separator is the remote key path separator.
const Separator = "/"

// InvalidPrefixError reports a prefix argument that is neither Root nor ends
// with Separator.
type InvalidPrefixError struct {
	Prefix string
}

func (e *InvalidPrefixError) Error() string {
	return fmt.Sprintf("invalid prefix %q: use %q or a path ending in %q", e.Prefix, Root, Separator)
}

// ValidatePrefix checks the prefix argument contract.
func ValidatePrefix(prefix string) error {
	if prefix == Root || (prefix != Separator && strings.HasSuffix(prefix, Separator) && !strings.HasPrefix(prefix, Separator)) {
		return nil
	}
	return &InvalidPrefixError{Prefix: prefix}
}

// PrefixPair scopes remote operations to one namespace.
type PrefixPair struct {
	// Full is the fully-qualified key prefix passed to the store.
	Full string

	// Internal is the part of every key hidden from the user.
	Internal string
}

// Display strips the internal prefix from key.
func (p PrefixPair) Display(key string) string {
	return strings.TrimPrefix(key, p.Internal)
}

// ArchivePrefix resolves a prefix argument inside the user's namespace.
//
//	ArchivePrefix("alice", "root")    -> {Full: "alice/",        Internal: "alice/"}
//	ArchivePrefix("alice", "photos/") -> {Full: "alice/photos/", Internal: "alice/"}
func ArchivePrefix(userID, prefix string) (PrefixPair, error) {
	return scoped(userID, "", prefix)
}

// RestoredPrefix resolves a prefix argument inside the user's restored
// namespace. An empty segment means restored copies live in place and the
// result equals ArchivePrefix.
//
//	RestoredPrefix("alice", "restored", "photos/") -> {Full: "alice/restored/photos/", Internal: "alice/restored/"}
func RestoredPrefix(userID, segment, prefix string) (PrefixPair, error) {
	return scoped(userID, segment, prefix)
}

func scoped(userID, segment, prefix string) (PrefixPair, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return PrefixPair{}, err
	}
	userID = strings.Trim(userID, Separator)
	if userID == "" {
		return PrefixPair{}, fmt.Errorf("user id is required")
	}

	internal := userID + Separator
	if segment = strings.Trim(segment, Separator); segment != "" {
		internal += segment + Separator
	}

	full := internal
	if prefix != Root {
		full += prefix
	}
	return PrefixPair{Full: full, Internal: internal}, nil
}

// ObjectKey builds the remote key for a file at relPath (slash separated,
// relative to the archive root).
func ObjectKey(userID, relPath string) string {
	return strings.Trim(userID, Separator) + Separator + Sanitize(relPath)
}

// Sanitize converts a relative path into a key-safe form: spaces become
// underscores, the path is decomposed (NFKD) and anything outside printable
// ASCII is dropped. "Résumé final.pdf" becomes "Resume_final.pdf".
func Sanitize(relPath string) string {
	relPath = strings.ReplaceAll(relPath, " ", "_")
	relPath = strings.ReplaceAll(relPath, "\\", Separator)

	var b strings.Builder
	b.Grow(len(relPath))
	for _, r := range norm.NFKD.String(relPath) {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), Separator)
}

// Reduce maps key to its first path segment below scope. Nested keys yield
// the segment plus Separator (a folder), direct children yield the bare name
// (a file). Keys outside scope, and scope itself, yield "".
//
//	Reduce("u/", "u/a/b.txt") -> "a/"
//	Reduce("u/", "u/d.txt")   -> "d.txt"
func Reduce(scope, key string) string {
	if !strings.HasPrefix(key, scope) {
		return ""
	}
	rest := key[len(scope):]
	if i := strings.Index(rest, Separator); i >= 0 {
		return rest[:i+1]
	}
	return rest
}

// ReduceAll reduces every key and returns the distinct results sorted.
func ReduceAll(scope string, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if r := Reduce(scope, k); r != "" {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
