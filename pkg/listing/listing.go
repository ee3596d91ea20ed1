// Package listing pages through a prefix of the remote store.
//
// Pages yields raw listing pages lazily; Collect drains them into an ObjectSet
// whose pages are kept as immutable snapshots so a later pass (after the user
// confirms) does not need to list again.
package listing

import (
	"context"
	"fmt"
	"iter"

	"github.com/3leaps/coldvault/pkg/keys"
	"github.com/3leaps/coldvault/pkg/provider"
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 1000

// Page is one listing response.
type Page struct {
	// Number is the 1-based position of the page in the sequence.
	Number int

	// Objects may be empty.
	Objects []provider.ObjectSummary
}

// ListError reports a failed page fetch. It ends the enumeration.
type ListError struct {
	Prefix string
	Page   int
	Err    error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %q (page %d): %v", e.Prefix, e.Page, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// Pages returns a lazy, finite, single-pass sequence of listing pages under
// prefix. A failed fetch yields (nil, *ListError) and ends the sequence.
// There is no retry.
func Pages(ctx context.Context, p provider.Provider, prefix string, pageSize int) iter.Seq2[*Page, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(*Page, error) bool) {
		var token string
		for n := 1; ; n++ {
			if err := ctx.Err(); err != nil {
				yield(nil, &ListError{Prefix: prefix, Page: n, Err: err})
				return
			}

			result, err := p.List(ctx, provider.ListOptions{
				Prefix:            prefix,
				ContinuationToken: token,
				MaxKeys:           pageSize,
			})
			if err != nil {
				yield(nil, &ListError{Prefix: prefix, Page: n, Err: err})
				return
			}

			if !yield(&Page{Number: n, Objects: result.Objects}, nil) {
				return
			}

			if !result.IsTruncated || result.ContinuationToken == "" {
				return
			}
			token = result.ContinuationToken
		}
	}
}

// ObjectSet is the materialized result of a listing pass.
type ObjectSet struct {
	// Pair is the namespace that was listed.
	Pair keys.PrefixPair

	// StorageClass is the filter that was applied ("" keeps everything).
	StorageClass string

	// Count and TotalSize aggregate the kept objects.
	Count     int
	TotalSize int64

	// Pages holds the kept objects page by page. Never mutated after Collect.
	Pages []Page
}

// TotalSizeGB returns the aggregated size in gigabytes.
func (s *ObjectSet) TotalSizeGB() float64 {
	return float64(s.TotalSize) / (1 << 30)
}

// Objects flattens the retained pages in page order.
func (s *ObjectSet) Objects() []provider.ObjectSummary {
	out := make([]provider.ObjectSummary, 0, s.Count)
	for _, page := range s.Pages {
		out = append(out, page.Objects...)
	}
	return out
}

// Keys returns the keys of Objects.
func (s *ObjectSet) Keys() []string {
	out := make([]string, 0, s.Count)
	for _, page := range s.Pages {
		for _, obj := range page.Objects {
			out = append(out, obj.Key)
		}
	}
	return out
}

// Options configures Collect.
type Options struct {
	// StorageClass keeps only objects in this class. Empty keeps all.
	StorageClass string

	// PageSize is the requested page size.
	PageSize int
}

// Collect lists pair.Full and materializes the objects that pass the filter.
func Collect(ctx context.Context, p provider.Provider, pair keys.PrefixPair, opts Options) (*ObjectSet, error) {
	set := &ObjectSet{Pair: pair, StorageClass: opts.StorageClass}

	for page, err := range Pages(ctx, p, pair.Full, opts.PageSize) {
		if err != nil {
			return nil, err
		}
		kept := make([]provider.ObjectSummary, 0, len(page.Objects))
		for _, obj := range page.Objects {
			if opts.StorageClass != "" && provider.NormalizeStorageClass(obj.StorageClass) != opts.StorageClass {
				continue
			}
			kept = append(kept, obj)
			set.TotalSize += obj.Size
		}
		set.Count += len(kept)
		set.Pages = append(set.Pages, Page{Number: page.Number, Objects: kept})
	}

	return set, nil
}
