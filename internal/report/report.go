// Package report writes the check run artifact: a validated JSON summary of
// both audits.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hctt-w/transcheck/internal/audit"
	"github.com/hctt-w/transcheck/internal/schemas"
)

const schemaVersion = "1.0.0"

// Provenance records who produced the artifact and when.
type Provenance struct {
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

// Report is the serialized outcome of one check run.
type Report struct {
	SchemaVersion string     `json:"schemaVersion"`
	Kind          string     `json:"kind"`
	RunID         string     `json:"runId"`
	Repo          string     `json:"repo"`
	StartedAt     string     `json:"startedAt"`
	CompletedAt   string     `json:"completedAt"`
	Uncollected   []string   `json:"uncollected"`
	Stale         []string   `json:"stale"`
	Unknown       []string   `json:"unknown"`
	CurrentCount  int        `json:"currentCount"`
	Errors        []string   `json:"errors"`
	Provenance    Provenance `json:"provenance"`
}

// New assembles a report from the audit outcomes.
func New(repo string, startedAt time.Time, uncollected []string, res audit.UpdateResult) Report {
	now := time.Now().UTC()
	r := Report{
		SchemaVersion: schemaVersion,
		Kind:          "transcheck/report",
		RunID:         uuid.NewString(),
		Repo:          repo,
		StartedAt:     startedAt.UTC().Format(time.RFC3339),
		CompletedAt:   now.Format(time.RFC3339),
		Uncollected:   emptyIfNil(uncollected),
		Stale:         emptyIfNil(res.Stale()),
		Unknown:       emptyIfNil(res.Unknown()),
		CurrentCount:  res.CurrentCount(),
		Errors:        []string{},
		Provenance: Provenance{
			CreatedBy: "transcheck check",
			CreatedAt: now.Format(time.RFC3339),
		},
	}
	for _, err := range res.Errors {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

// Write marshals the report, checks it against its schema and writes it to
// path. A report that fails its own schema is a bug, not a user error.
func Write(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := validate(data); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func validate(data []byte) error {
	schema, err := schemas.Compile(schemas.Report)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("report invalid: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
