// Package git provides the engine's narrow, read-only view of git: status
// and commit-history queries used by Dismiss (§4.6) and the bulldoze
// continuation's "no new commits" hard stop (§4.4). The engine never
// mutates a worker's repository.
package git

import "context"

// Executor is the read-only git surface the engine depends on. Implementations
// must honor ctx cancellation/deadline.
type Executor interface {
	// StatusPorcelain runs `git status --porcelain` in dir and returns its
	// trimmed stdout. An empty result means a clean working tree.
	StatusPorcelain(ctx context.Context, dir string) (string, error)

	// LogSince runs `git log --since=<since> --format=%s` in dir and
	// returns one subject line per commit, newest first.
	LogSince(ctx context.Context, dir string, since string) ([]string, error)
}
