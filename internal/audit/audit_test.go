package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hctt-w/transcheck/internal/cache"
	"github.com/hctt-w/transcheck/internal/config"
	"github.com/hctt-w/transcheck/internal/frontmatter"
)

// fakeSource serves canned trees and commit refs. Lookups with an until date
// before 2025 count as collection-time lookups, later ones as "now".
type fakeSource struct {
	tree        []string
	listErr     error
	listCalls   int
	commitCalls int
	collected   map[string]cache.CommitRef
	latest      map[string]cache.CommitRef
}

func (f *fakeSource) ListTree(ctx context.Context, root string, excludeDirs []string) ([]string, error) {
	f.listCalls++
	return f.tree, f.listErr
}

func (f *fakeSource) CommitAsOf(ctx context.Context, path string, until time.Time) cache.CommitRef {
	f.commitCalls++
	if until.Before(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		return f.collected[path]
	}
	return f.latest[path]
}

func newChecker(t *testing.T, src *fakeSource) (*Checker, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.ProjectRoot = root

	store := cache.Open(filepath.Join(t.TempDir(), "cache.json"))
	c, err := New(cfg, store, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, root
}

func writeCollected(t *testing.T, root, rel, date string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\ncollected_date: " + date + "\n---\nbody\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckCollection(t *testing.T) {
	src := &fakeSource{tree: []string{
		"docs/present.md",
		"docs/missing.md",
		"docs/run.sh",
		"docs/missing.txt",
	}}
	c, root := newChecker(t, src)
	writeCollected(t, root, "sources/syzkaller/present.md", "20240315")

	got, err := c.CheckCollection(context.Background())
	if err != nil {
		t.Fatalf("CheckCollection: %v", err)
	}
	// run.sh is missing locally but its extension never needs collecting.
	want := []string{"docs/missing.md", "docs/missing.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("uncollected = %v, want %v", got, want)
	}
}

func TestCheckCollectionUsesCache(t *testing.T) {
	src := &fakeSource{tree: []string{"docs/missing.md"}}
	c, _ := newChecker(t, src)

	for i := 0; i < 2; i++ {
		if _, err := c.CheckCollection(context.Background()); err != nil {
			t.Fatalf("CheckCollection #%d: %v", i+1, err)
		}
	}
	if src.listCalls != 1 {
		t.Errorf("ListTree called %d times, want 1", src.listCalls)
	}
}

func TestCheckCollectionListingErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	src := &fakeSource{listErr: boom}
	c, _ := newChecker(t, src)

	if _, err := c.CheckCollection(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected listing error, got %v", err)
	}
}

func TestCheckUpdateClassification(t *testing.T) {
	src := &fakeSource{
		collected: map[string]cache.CommitRef{
			"docs/stale.md":   cache.Ref("abc123", "2024-03-01 00:00:00"),
			"docs/current.md": cache.Ref("abc123", "2024-03-01 00:00:00"),
		},
		latest: map[string]cache.CommitRef{
			"docs/stale.md":   cache.Ref("def456", "2026-05-01 00:00:00"),
			"docs/current.md": cache.Ref("abc123", "2024-03-01 00:00:00"),
			// docs/unknown.md: both lookups fail, null pairs all around.
		},
	}
	c, root := newChecker(t, src)
	writeCollected(t, root, "sources/syzkaller/current.md", "20240315")
	writeCollected(t, root, "sources/syzkaller/stale.md", "20240315")
	writeCollected(t, root, "sources/syzkaller/unknown.md", "20240315")

	res, err := c.CheckUpdate(context.Background())
	if err != nil {
		t.Fatalf("CheckUpdate: %v", err)
	}
	if got := res.Stale(); !reflect.DeepEqual(got, []string{"sources/syzkaller/stale.md"}) {
		t.Errorf("Stale = %v", got)
	}
	if got := res.Unknown(); !reflect.DeepEqual(got, []string{"sources/syzkaller/unknown.md"}) {
		t.Errorf("Unknown = %v", got)
	}
	if res.CurrentCount() != 1 {
		t.Errorf("CurrentCount = %d", res.CurrentCount())
	}
}

func TestCheckUpdateStrictAbortsOnFirstBadFile(t *testing.T) {
	src := &fakeSource{}
	c, root := newChecker(t, src)
	// Lexical scan order: bad.md first, then good.md.
	path := filepath.Join(root, "sources", "syzkaller", "bad.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("no front matter\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeCollected(t, root, "sources/syzkaller/good.md", "20240315")

	res, err := c.CheckUpdate(context.Background())
	var fmErr *frontmatter.Error
	if !errors.As(err, &fmErr) {
		t.Fatalf("expected front-matter error, got %v", err)
	}
	if len(res.Files) != 0 {
		t.Errorf("no results should be recorded after the abort, got %v", res.Files)
	}
	if src.commitCalls != 0 {
		t.Errorf("commit lookups after fatal file: %d", src.commitCalls)
	}
}

func TestCheckUpdateKeepGoingCollectsErrors(t *testing.T) {
	src := &fakeSource{
		collected: map[string]cache.CommitRef{"docs/good.md": cache.Ref("abc", "2024-03-01 00:00:00")},
		latest:    map[string]cache.CommitRef{"docs/good.md": cache.Ref("abc", "2024-03-01 00:00:00")},
	}
	c, root := newChecker(t, src)
	c.KeepGoing = true
	path := filepath.Join(root, "sources", "syzkaller", "bad.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("no front matter\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeCollected(t, root, "sources/syzkaller/good.md", "20240315")

	res, err := c.CheckUpdate(context.Background())
	if err != nil {
		t.Fatalf("CheckUpdate: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v", res.Errors)
	}
	if len(res.Files) != 1 || res.Files[0].Path != "sources/syzkaller/good.md" {
		t.Errorf("Files = %v", res.Files)
	}
}

func TestCheckUpdateCachesCommitRecords(t *testing.T) {
	src := &fakeSource{
		collected: map[string]cache.CommitRef{"docs/a.md": cache.Ref("abc", "2024-03-01 00:00:00")},
		latest:    map[string]cache.CommitRef{"docs/a.md": cache.Ref("abc", "2024-03-01 00:00:00")},
	}
	c, root := newChecker(t, src)
	writeCollected(t, root, "sources/syzkaller/a.md", "20240315")

	for i := 0; i < 2; i++ {
		if _, err := c.CheckUpdate(context.Background()); err != nil {
			t.Fatalf("CheckUpdate #%d: %v", i+1, err)
		}
	}
	// Two lookups (collected, latest) on the first pass only.
	if src.commitCalls != 2 {
		t.Errorf("commit lookups = %d, want 2", src.commitCalls)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		rec  cache.CommitRecord
		want Status
	}{
		{"differing shas", cache.CommitRecord{
			Collected: cache.Ref("abc123", "2024-01-01 00:00:00"),
			Latest:    cache.Ref("def456", "2024-06-01 00:00:00"),
		}, StatusStale},
		{"matching shas", cache.CommitRecord{
			Collected: cache.Ref("abc123", "2024-01-01 00:00:00"),
			Latest:    cache.Ref("abc123", "2024-01-01 00:00:00"),
		}, StatusCurrent},
		{"collected lookup failed", cache.CommitRecord{
			Latest: cache.Ref("abc123", "2024-01-01 00:00:00"),
		}, StatusUnknown},
		{"both lookups failed", cache.CommitRecord{}, StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.rec); got != tc.want {
				t.Errorf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}
