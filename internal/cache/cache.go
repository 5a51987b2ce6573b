// Package cache implements the persistent, TTL-bounded metadata cache that
// backs every remote lookup. The whole document lives in a single JSON file,
// is loaded once at construction and rewritten eagerly after every mutation.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hctt-w/transcheck/internal/logger"
	"github.com/hctt-w/transcheck/internal/schemas"
)

// DefaultTTL bounds how long listings and commit records are served without
// consulting the upstream repository again.
const DefaultTTL = 72 * time.Hour

// CommitRef is a nullable (sha, date) pair. It persists as a two-element
// JSON array so the on-disk shape stays `[sha|null, date|null]`.
type CommitRef struct {
	SHA  *string
	Date *string
}

// Ref builds a CommitRef from concrete values.
func Ref(sha, date string) CommitRef {
	return CommitRef{SHA: &sha, Date: &date}
}

func (r CommitRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*string{r.SHA, r.Date})
}

func (r *CommitRef) UnmarshalJSON(data []byte) error {
	var pair [2]*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.SHA, r.Date = pair[0], pair[1]
	return nil
}

// CommitRecord holds both commit lookups for one local file: the commit in
// effect at its recorded collection date and the commit in effect now.
type CommitRecord struct {
	Collected CommitRef `json:"collected"`
	Latest    CommitRef `json:"latest"`
}

// namespace is one TTL scope of the document. cache_time is shared by every
// entry: no entry in the namespace was refreshed after it was set, so a single
// expired key re-derives that key only, while any write advances the clock
// for the whole namespace.
type namespace[T any] struct {
	CacheTime int64        `json:"cache_time"`
	Entries   map[string]T `json:"entries,omitempty"`
}

// document is the whole persisted state, one typed namespace per payload shape.
type document struct {
	Files   namespace[[]string]     `json:"files"`
	Commits namespace[CommitRecord] `json:"commits"`
}

// Store owns the cache document and its expiry decisions. It is always
// passed explicitly to the components that read through it; the design
// assumes a single invocation per cache file (last writer wins).
type Store struct {
	path string
	now  func() time.Time
	doc  document
}

// Open loads the document at path, or starts empty when the file is absent,
// unreadable, or fails validation. Those conditions are logged, never fatal.
func Open(path string) *Store {
	s := &Store{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s
	}
	if err != nil {
		logger.Error("load cache %s: %v", path, err)
		return s
	}
	if err := decodeDocument(data, &s.doc); err != nil {
		logger.Error("load cache %s: %v (starting with an empty cache)", path, err)
		s.doc = document{}
		return s
	}
	logger.Info("Load cache from %s successfully", path)
	return s
}

// decodeDocument validates data against the cache schema before unmarshalling
// so a legacy or partially-matching file fails one explicit step instead of a
// deferred lookup.
func decodeDocument(data []byte, doc *document) error {
	schema, err := schemas.Compile(schemas.Cache)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return json.Unmarshal(data, doc)
}

// Listing returns the cached directory listing for key, invoking fetch only
// on a miss or after the files namespace expired.
func (s *Store) Listing(key string, ttl time.Duration, fetch func() ([]string, error)) ([]string, error) {
	return lookup(s, &s.doc.Files, key, ttl, fetch)
}

// Commits returns the cached commit record for key, invoking fetch only on a
// miss or after the commits namespace expired.
func (s *Store) Commits(key string, ttl time.Duration, fetch func() (CommitRecord, error)) (CommitRecord, error) {
	return lookup(s, &s.doc.Commits, key, ttl, fetch)
}

func lookup[T any](s *Store, ns *namespace[T], key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if value, ok := ns.Entries[key]; ok && s.fresh(ns.CacheTime, ttl) {
		return value, nil
	}
	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	if ns.Entries == nil {
		ns.Entries = make(map[string]T)
	}
	ns.Entries[key] = value
	ns.CacheTime = s.now().Unix()
	s.save()
	return value, nil
}

func (s *Store) fresh(cacheTime int64, ttl time.Duration) bool {
	return s.now().Unix()-cacheTime < int64(ttl.Seconds())
}

// save persists the whole document. Failures are logged and swallowed: the
// in-memory state stays valid for the rest of the process.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		logger.Error("encode cache: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		logger.Error("save cache %s: %v", s.path, err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		logger.Error("save cache %s: %v", s.path, err)
		return
	}
	logger.Debug("Save cache to %s successfully", s.path)
}

// NamespaceStatus summarizes one namespace for `transcheck cache status`.
type NamespaceStatus struct {
	Name      string
	CacheTime time.Time
	Entries   int
}

// Status reports the age and size of each namespace.
func (s *Store) Status() []NamespaceStatus {
	return []NamespaceStatus{
		{Name: "files", CacheTime: time.Unix(s.doc.Files.CacheTime, 0), Entries: len(s.doc.Files.Entries)},
		{Name: "commits", CacheTime: time.Unix(s.doc.Commits.CacheTime, 0), Entries: len(s.doc.Commits.Entries)},
	}
}

// Clear resets the in-memory document and removes the cache file.
func (s *Store) Clear() error {
	s.doc = document{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the location of the persisted document.
func (s *Store) Path() string { return s.path }
