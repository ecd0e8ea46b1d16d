// Package memory provides a recording replicator for tests.
package memory

import (
	"context"
	"sync"

	"github.com/F8ai/formulation-pubmed/internal/replicate"
)

// Replicator records Stage/Commit/Push calls and can be primed to
// fail any of them.
type Replicator struct {
	mu sync.Mutex

	StageErr  error
	CommitErr error
	PushErr   error

	stages   int
	pushes   int
	messages []string
}

// New creates an empty recording replicator.
func New() *Replicator {
	return &Replicator{}
}

func (r *Replicator) Stage(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StageErr != nil {
		return r.StageErr
	}
	r.stages++
	return nil
}

func (r *Replicator) Commit(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitErr != nil {
		return r.CommitErr
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *Replicator) Push(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PushErr != nil {
		return r.PushErr
	}
	r.pushes++
	return nil
}

func (r *Replicator) Status(context.Context) (replicate.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := replicate.Status{Branch: "main"}
	if len(r.messages) > 0 {
		status.LastCommit = r.messages[len(r.messages)-1]
	}
	return status, nil
}

// Commits returns the recorded commit messages.
func (r *Replicator) Commits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Pushes returns the number of successful pushes.
func (r *Replicator) Pushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushes
}

// Stages returns the number of successful stage calls.
func (r *Replicator) Stages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages
}
