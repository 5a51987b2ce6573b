// Package upstream is the boundary to the remote repository: listing the
// upstream documentation tree and resolving the commit in effect for a path
// at a given instant.
package upstream

import (
	"context"
	"time"

	"github.com/hctt-w/transcheck/internal/cache"
)

// DateLayout is the human-readable commit date format recorded in the cache.
const DateLayout = "2006-01-02 15:04:05"

// Source answers metadata questions about the upstream repository.
type Source interface {
	// ListTree returns every non-directory path under root, breadth first.
	// Directories whose full path is listed in excludeDirs are pruned. The
	// result order is traversal order and not guaranteed stable across calls.
	ListTree(ctx context.Context, root string, excludeDirs []string) ([]string, error)

	// CommitAsOf finds the most recent commit touching path authored at or
	// before until, together with its author date. Any lookup failure yields
	// the null pair; it is logged and never surfaces as an error.
	CommitAsOf(ctx context.Context, path string, until time.Time) cache.CommitRef
}
