package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hctt-w/transcheck/internal/audit"
	"github.com/hctt-w/transcheck/internal/cache"
)

func sampleResult() audit.UpdateResult {
	return audit.UpdateResult{
		Files: []audit.FileStatus{
			{Path: "sources/syzkaller/stale.md", Status: audit.StatusStale, Record: cache.CommitRecord{
				Collected: cache.Ref("abc", "2024-01-01 00:00:00"),
				Latest:    cache.Ref("def", "2024-06-01 00:00:00"),
			}},
			{Path: "sources/syzkaller/ok.md", Status: audit.StatusCurrent},
			{Path: "sources/syzkaller/odd.md", Status: audit.StatusUnknown},
		},
	}
}

func TestNew(t *testing.T) {
	r := New("google/syzkaller", time.Now(), []string{"docs/missing.md"}, sampleResult())

	if r.RunID == "" {
		t.Error("RunID empty")
	}
	if len(r.Stale) != 1 || r.Stale[0] != "sources/syzkaller/stale.md" {
		t.Errorf("Stale = %v", r.Stale)
	}
	if len(r.Unknown) != 1 || r.CurrentCount != 1 {
		t.Errorf("Unknown = %v, CurrentCount = %d", r.Unknown, r.CurrentCount)
	}
	if r.Uncollected[0] != "docs/missing.md" {
		t.Errorf("Uncollected = %v", r.Uncollected)
	}
}

func TestWriteValidatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := New("google/syzkaller", time.Now(), nil, sampleResult())

	if err := Write(path, r); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("written report is not valid JSON: %v", err)
	}
	if back.Kind != "transcheck/report" || back.RunID != r.RunID {
		t.Errorf("round trip = %+v", back)
	}
	// nil slices must serialize as [], not null, to satisfy the schema.
	if back.Uncollected == nil {
		t.Error("uncollected serialized as null")
	}
}

func TestWriteRejectsInvalidReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := New("google/syzkaller", time.Now(), nil, audit.UpdateResult{})
	r.Repo = "not-a-repo-path"

	if err := Write(path, r); err == nil {
		t.Fatal("expected schema validation failure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid report was written anyway")
	}
}
