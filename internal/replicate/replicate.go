// Package replicate abstracts the checkpoint-and-replicate capability
// behind swappable backends: a version-control repository, an archive
// snapshot uploaded to object storage, or an in-memory recorder for
// tests.
package replicate

import "context"

// Status describes the replication backend's current state.
type Status struct {
	HasChanges bool   `json:"has_changes"`
	LastCommit string `json:"last_commit"`
	Branch     string `json:"branch"`
}

// Replicator persists accumulated artifact changes (Stage + Commit)
// and propagates them to a remote copy (Push). Commit with nothing to
// commit is not an error.
type Replicator interface {
	Stage(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
}
