// Package config resolves the checking convention: which upstream repository
// is mirrored, where the local collection lives, and how long cached metadata
// stays valid.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"github.com/hctt-w/transcheck/internal/cache"
)

// FileName is the optional workspace configuration file.
const FileName = "transcheck.jsonc"

// TokenEnv is consulted when no token is given explicitly.
const TokenEnv = "GITHUB_TOKEN"

// Config is the fully resolved checking convention.
type Config struct {
	// Repo is the upstream repository in owner/name form.
	Repo string `json:"repo"`
	// UpstreamRoot is the upstream directory whose files are mirrored.
	UpstreamRoot string `json:"upstreamRoot"`
	// ExcludeDirs are upstream directory paths pruned from the listing.
	ExcludeDirs []string `json:"excludeDirs"`
	// LocalRoot is the directory holding the collected copies.
	LocalRoot string `json:"localRoot"`
	// Suffixes are the translatable file suffixes scanned locally.
	Suffixes []string `json:"suffixes"`
	// NoCollect are upstream extensions that never need collecting.
	NoCollect []string `json:"noCollect"`
	// IgnoreGlobs prune the local scan.
	IgnoreGlobs []string `json:"ignoreGlobs,omitempty"`
	// TTL is the cache validity window, as a Go duration string.
	TTL string `json:"ttl,omitempty"`

	// Token authenticates upstream reads. A flag or the environment usually
	// supplies it, but a workspace config may carry one too.
	Token string `json:"token,omitempty"`
	// ProjectRoot anchors LocalRoot and relative local paths.
	ProjectRoot string `json:"-"`
}

// Default returns the convention of the syzkaller docs mirror.
func Default() Config {
	return Config{
		Repo:         "google/syzkaller",
		UpstreamRoot: "docs/",
		ExcludeDirs:  []string{"docs/translations"},
		LocalRoot:    "sources/syzkaller",
		Suffixes:     []string{".md", ".txt"},
		NoCollect:    []string{".drawio", ".patch", ".sh", ".py"},
		ProjectRoot:  ".",
	}
}

// Load merges transcheck.jsonc under root into the defaults. A missing file
// is not an error; a malformed one is.
func Load(root string) (Config, error) {
	cfg := Default()
	cfg.ProjectRoot = root

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !strings.Contains(c.Repo, "/") {
		return fmt.Errorf("repo %q must be owner/name", c.Repo)
	}
	if c.UpstreamRoot == "" || c.LocalRoot == "" {
		return fmt.Errorf("upstreamRoot and localRoot must not be empty")
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// CacheTTL parses the configured TTL, defaulting to cache.DefaultTTL.
func (c Config) CacheTTL() (time.Duration, error) {
	if c.TTL == "" {
		return cache.DefaultTTL, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// ResolveToken picks the token: explicit flag, then config, then environment.
func (c *Config) ResolveToken(flagToken string) {
	if flagToken != "" {
		c.Token = flagToken
		return
	}
	if c.Token != "" {
		return
	}
	c.Token = os.Getenv(TokenEnv)
}

// Layout is the per-user state directory holding the cache, reports and the
// run history.
type Layout struct {
	Dir string
}

// EnsureLayout creates ~/.transcheck and its subdirectories.
func EnsureLayout() (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("locate home directory: %w", err)
	}
	return EnsureLayoutAt(filepath.Join(home, ".transcheck"))
}

// EnsureLayoutAt creates the state directory at an explicit location.
func EnsureLayoutAt(dir string) (Layout, error) {
	for _, d := range []string{dir, filepath.Join(dir, "reports")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return Layout{Dir: dir}, nil
}

// CachePath is the persisted cache document.
func (l Layout) CachePath() string { return filepath.Join(l.Dir, "cache.json") }

// HistoryPath is the sqlite run-history database.
func (l Layout) HistoryPath() string { return filepath.Join(l.Dir, "history.db") }

// ReportsDir holds written report artifacts.
func (l Layout) ReportsDir() string { return filepath.Join(l.Dir, "reports") }
