// Package frontmatter reads the YAML metadata block embedded at the top of
// collected files.
package frontmatter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// DateLayout is the required format of the collected_date field.
const DateLayout = "20060102"

// Record is the parsed metadata of one collected file.
type Record struct {
	// CollectedDate is the parsed collected_date field.
	CollectedDate time.Time
	// Fields holds every key of the block, including collected_date as written.
	Fields map[string]any
}

// Error describes why a file's front matter could not be used. Callers decide
// whether it aborts the run or is collected and reported.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("front matter of %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("front matter of %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Read extracts and parses the front-matter block of path. The block must
// start on the first line, be delimited by lines containing only "---", and
// carry a collected_date field in YYYYMMDD form; anything else is an *Error.
func Read(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, &Error{Path: path, Reason: "read file", Err: err}
	}
	block, ok := extractBlock(string(data))
	if !ok {
		return Record{}, &Error{Path: path, Reason: "no front-matter block"}
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &fields); err != nil {
		return Record{}, &Error{Path: path, Reason: "parse YAML", Err: err}
	}
	raw, ok := fields["collected_date"]
	if !ok {
		return Record{}, &Error{Path: path, Reason: "missing collected_date"}
	}
	// YAML parses 20240101 as an integer, quoted values as strings.
	date, err := time.Parse(DateLayout, fmt.Sprintf("%v", raw))
	if err != nil {
		return Record{}, &Error{Path: path, Reason: fmt.Sprintf("collected_date %v not in YYYYMMDD form", raw), Err: err}
	}
	return Record{CollectedDate: date, Fields: fields}, nil
}

// extractBlock returns the YAML content between the opening delimiter on the
// first line and the next delimiter line.
func extractBlock(content string) (string, bool) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r\n") != delimiter {
		return "", false
	}
	var body strings.Builder
	for _, line := range lines[1:] {
		if strings.TrimRight(line, " \t\r\n") == delimiter {
			return body.String(), true
		}
		body.WriteString(line)
	}
	return "", false
}
