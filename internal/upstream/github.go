package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/hctt-w/transcheck/internal/cache"
	"github.com/hctt-w/transcheck/internal/logger"
)

// GitHub implements Source against the GitHub REST API. All reads are
// read-only; no retries or backoff, the TTL cache in front of this type is
// what keeps call volume down.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub builds a source for an owner/name repository path. An empty token
// means anonymous access with its much lower rate limit.
func NewGitHub(repoPath, token string) (*GitHub, error) {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return NewGitHubWithClient(client, repoPath)
}

// NewGitHubWithClient wires an explicit client, used by tests to point at a
// stub server.
func NewGitHubWithClient(client *github.Client, repoPath string) (*GitHub, error) {
	owner, repo, ok := strings.Cut(repoPath, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository %q must be owner/name", repoPath)
	}
	return &GitHub{client: client, owner: owner, repo: repo}, nil
}

// ListTree walks the contents API breadth first from root.
func (g *GitHub) ListTree(ctx context.Context, root string, excludeDirs []string) ([]string, error) {
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[strings.TrimSuffix(d, "/")] = true
	}

	queue := []string{strings.TrimSuffix(root, "/")}
	var files []string
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		file, entries, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, dir, nil)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s contents at %s: %w", g.owner, g.repo, dir, err)
		}
		if file != nil {
			files = append(files, file.GetPath())
			continue
		}
		for _, entry := range entries {
			if entry.GetType() == "dir" {
				if excluded[entry.GetPath()] {
					continue
				}
				queue = append(queue, entry.GetPath())
				continue
			}
			files = append(files, entry.GetPath())
		}
	}
	logger.Info("Get %d files from %s/%s/%s successfully", len(files), g.owner, g.repo, root)
	return files, nil
}

// CommitAsOf resolves the commit active for path as of until. Failures,
// including "no commits found", are logged and collapse to the null pair.
func (g *GitHub) CommitAsOf(ctx context.Context, path string, until time.Time) cache.CommitRef {
	ref, err := g.commitAsOf(ctx, path, until)
	if err != nil {
		logger.Error("Failed to get %s commit sha or date with until %s: %v",
			path, until.Format(DateLayout), err)
		return cache.CommitRef{}
	}
	return ref
}

func (g *GitHub) commitAsOf(ctx context.Context, path string, until time.Time) (cache.CommitRef, error) {
	commits, _, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, &github.CommitsListOptions{
		Path:        path,
		Until:       until,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return cache.CommitRef{}, err
	}
	if len(commits) == 0 {
		return cache.CommitRef{}, fmt.Errorf("no commits touching %s until %s", path, until.Format(DateLayout))
	}

	latest := commits[0]
	ref := cache.CommitRef{}
	sha := latest.GetSHA()
	ref.SHA = &sha
	if date := latest.GetCommit().GetAuthor().GetDate(); !date.Time.IsZero() {
		formatted := date.Time.Format(DateLayout)
		ref.Date = &formatted
	}
	logger.Debug("[GET] File %s until %s commit sha: %s", path, until.Format(DateLayout), sha)
	return ref, nil
}
