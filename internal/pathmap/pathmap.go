// Package pathmap translates between local collection paths and their
// upstream repository equivalents.
package pathmap

import "strings"

// Mapper holds the directory convention joining the local mirror to the
// upstream tree. LocalRoot and UpstreamRoot are slash-terminated prefixes,
// e.g. "sources/syzkaller/" and "docs/".
type Mapper struct {
	LocalRoot    string
	UpstreamRoot string
}

// New normalizes both roots to end with a single slash.
func New(localRoot, upstreamRoot string) Mapper {
	return Mapper{
		LocalRoot:    ensureSlash(localRoot),
		UpstreamRoot: ensureSlash(upstreamRoot),
	}
}

// ToUpstream maps a local collected-file path to its upstream path.
// A leading "./" is stripped first. Paths that do not contain the local
// root prefix pass through unchanged.
func (m Mapper) ToUpstream(path string) string {
	path = strings.TrimPrefix(path, "./")
	return strings.Replace(path, m.LocalRoot, m.UpstreamRoot, 1)
}

// ToLocal maps an upstream path to the expected local path. Paths that do
// not contain the upstream root prefix pass through unchanged.
func (m Mapper) ToLocal(path string) string {
	return strings.Replace(path, m.UpstreamRoot, m.LocalRoot, 1)
}

func ensureSlash(p string) string {
	return strings.TrimSuffix(p, "/") + "/"
}
