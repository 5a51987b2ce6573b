// Package audit answers the two questions about a documentation mirror:
// which upstream files are not yet collected, and which collected files are
// stale relative to the upstream commit recorded at collection time.
package audit

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/hctt-w/transcheck/internal/cache"
	"github.com/hctt-w/transcheck/internal/config"
	"github.com/hctt-w/transcheck/internal/frontmatter"
	"github.com/hctt-w/transcheck/internal/fsutil"
	"github.com/hctt-w/transcheck/internal/logger"
	"github.com/hctt-w/transcheck/internal/pathmap"
	"github.com/hctt-w/transcheck/internal/upstream"
)

// Status is the staleness verdict for one collected file.
type Status string

const (
	// StatusCurrent means collected and latest commit match.
	StatusCurrent Status = "current"
	// StatusStale means the upstream file changed after collection.
	StatusStale Status = "stale"
	// StatusUnknown means at least one commit lookup failed, so staleness
	// cannot be determined. Distinct from current: two failed lookups are
	// not evidence that a file is up to date.
	StatusUnknown Status = "unknown"
)

// FileStatus pairs a local path with its verdict and the underlying commits.
type FileStatus struct {
	Path   string
	Status Status
	Record cache.CommitRecord
}

// UpdateResult is the outcome of the update check, in scan order.
type UpdateResult struct {
	Files []FileStatus
	// Errors holds per-file front-matter failures when running lenient.
	Errors []error
}

// Stale returns the stale paths in scan order.
func (r UpdateResult) Stale() []string { return r.withStatus(StatusStale) }

// Unknown returns the undeterminable paths in scan order.
func (r UpdateResult) Unknown() []string { return r.withStatus(StatusUnknown) }

// CurrentCount returns how many files are up to date.
func (r UpdateResult) CurrentCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == StatusCurrent {
			n++
		}
	}
	return n
}

func (r UpdateResult) withStatus(s Status) []string {
	var paths []string
	for _, f := range r.Files {
		if f.Status == s {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Classify derives the verdict from a commit record.
func Classify(rec cache.CommitRecord) Status {
	switch {
	case rec.Collected.SHA == nil || rec.Latest.SHA == nil:
		return StatusUnknown
	case *rec.Collected.SHA != *rec.Latest.SHA:
		return StatusStale
	default:
		return StatusCurrent
	}
}

// Checker runs both audits through an explicit cache store and source; it
// holds no state of its own between files.
type Checker struct {
	cfg    config.Config
	store  *cache.Store
	source upstream.Source
	mapper pathmap.Mapper
	ttl    time.Duration

	// KeepGoing collects per-file front-matter errors instead of aborting
	// on the first one.
	KeepGoing bool

	now func() time.Time
}

// New wires a checker. The store and source are owned by the caller.
func New(cfg config.Config, store *cache.Store, source upstream.Source) (*Checker, error) {
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}
	return &Checker{
		cfg:    cfg,
		store:  store,
		source: source,
		mapper: pathmap.New(cfg.LocalRoot, cfg.UpstreamRoot),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// CheckCollection lists the upstream tree (through the cache) and reports
// every upstream file with no local counterpart whose extension is not in the
// no-collection allow-list, in listing traversal order.
func (c *Checker) CheckCollection(ctx context.Context) ([]string, error) {
	key := listingKey(c.cfg.UpstreamRoot, c.cfg.ExcludeDirs)
	listing, err := c.store.Listing(key, c.ttl, func() ([]string, error) {
		return c.source.ListTree(ctx, c.cfg.UpstreamRoot, c.cfg.ExcludeDirs)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[+] Check Collection: checking %d files from upstream repo (ignore %v)",
		len(listing), c.cfg.NoCollect)
	var uncollected []string
	for _, upstreamPath := range listing {
		localPath := c.mapper.ToLocal(upstreamPath)
		fullPath := filepath.Join(c.cfg.ProjectRoot, filepath.FromSlash(localPath))
		if fsutil.Exists(fullPath) {
			continue
		}
		if fsutil.HasSuffix(upstreamPath, c.cfg.NoCollect) {
			continue
		}
		logger.Info("File %s not collected in %s", localPath, c.cfg.ProjectRoot)
		uncollected = append(uncollected, upstreamPath)
	}
	return uncollected, nil
}

// CheckUpdate scans the local tree and classifies each collected file by
// comparing its collection-time commit against the current upstream commit,
// both resolved through the cache.
func (c *Checker) CheckUpdate(ctx context.Context) (UpdateResult, error) {
	files, err := fsutil.ListFiles(c.cfg.ProjectRoot, c.cfg.LocalRoot, c.cfg.Suffixes, c.cfg.IgnoreGlobs)
	if err != nil {
		return UpdateResult{}, err
	}

	logger.Info("[+] Check Update: checking %d local files (endswith %v)", len(files), c.cfg.Suffixes)
	var res UpdateResult
	for _, path := range files {
		rec, err := c.store.Commits(path, c.ttl, func() (cache.CommitRecord, error) {
			return c.resolve(ctx, path)
		})
		if err != nil {
			if !c.KeepGoing {
				return res, err
			}
			logger.Error("%v", err)
			res.Errors = append(res.Errors, err)
			continue
		}

		status := Classify(rec)
		res.Files = append(res.Files, FileStatus{Path: path, Status: status, Record: rec})
		switch status {
		case StatusStale:
			logger.Info("File %s is not up to date with upstream: collected_commit %s, latest_commit %s",
				path, refDate(rec.Collected), refDate(rec.Latest))
		case StatusUnknown:
			logger.Info("File %s staleness is undeterminable (commit lookup failed)", path)
		}
	}
	return res, nil
}

// resolve derives a fresh commit record for one local file. A front-matter
// failure aborts the record; commit lookup failures do not, they become the
// null pair inside the record.
func (c *Checker) resolve(ctx context.Context, localPath string) (cache.CommitRecord, error) {
	fm, err := frontmatter.Read(filepath.Join(c.cfg.ProjectRoot, filepath.FromSlash(localPath)))
	if err != nil {
		return cache.CommitRecord{}, err
	}
	upstreamPath := c.mapper.ToUpstream(localPath)
	return cache.CommitRecord{
		Collected: c.source.CommitAsOf(ctx, upstreamPath, fm.CollectedDate),
		Latest:    c.source.CommitAsOf(ctx, upstreamPath, c.now()),
	}, nil
}

// listingKey identifies one listing request: the root plus its exclusions.
func listingKey(root string, excludeDirs []string) string {
	return strings.Join(append([]string{root}, excludeDirs...), "|")
}

func refDate(ref cache.CommitRef) string {
	if ref.Date == nil {
		return "<unknown>"
	}
	return *ref.Date
}
