// Package archive replicates the artifact tree as tar.gz snapshots
// uploaded to a secondary object store. Commit captures the tree,
// Push uploads the pending snapshot.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
	"github.com/F8ai/formulation-pubmed/internal/replicate"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

// SnapshotPrefix is the key prefix for uploaded snapshots.
const SnapshotPrefix = "snapshots"

// Replicator implements replicate.Replicator by archiving a local
// directory tree and uploading it to a remote store.
type Replicator struct {
	baseDir string
	remote  store.Store
	clock   pubmed.Clock
	logger  *zap.Logger

	mu       sync.Mutex
	pending  []byte
	pendName string
	lastDesc string
}

// New creates an archive replicator over baseDir, uploading to remote.
func New(baseDir string, remote store.Store, clock pubmed.Clock, logger *zap.Logger) (*Replicator, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replicator{baseDir: baseDir, remote: remote, clock: clock, logger: logger}, nil
}

// Stage is a no-op: the tree is captured atomically at Commit time.
func (r *Replicator) Stage(context.Context) error { return nil }

// Commit archives the current tree as the pending snapshot. An empty
// tree is a no-op.
func (r *Replicator) Commit(_ context.Context, message string) error {
	data, count, err := r.pack()
	if err != nil {
		return fmt.Errorf("pack snapshot: %w", err)
	}
	if count == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now().UTC()
	r.pending = data
	r.pendName = fmt.Sprintf("%s/%s.tar.gz", SnapshotPrefix, now.Format("20060102T150405Z"))
	r.lastDesc = firstLine(message)
	r.logger.Debug("snapshot packed",
		zap.Int("files", count),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Push uploads the pending snapshot. Nothing pending is success.
func (r *Replicator) Push(ctx context.Context) error {
	r.mu.Lock()
	data, name := r.pending, r.pendName
	r.mu.Unlock()
	if data == nil {
		return nil
	}
	if err := r.remote.Write(ctx, name, data); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	r.mu.Lock()
	if r.pendName == name {
		r.pending, r.pendName = nil, ""
	}
	r.mu.Unlock()
	r.logger.Info("snapshot uploaded", zap.String("key", name))
	return nil
}

// Status reports whether a snapshot is awaiting upload.
func (r *Replicator) Status(context.Context) (replicate.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return replicate.Status{
		HasChanges: r.pending != nil,
		LastCommit: r.lastDesc,
	}, nil
}

// pack builds a tar.gz of the base directory, excluding anything under
// the snapshot prefix itself.
func (r *Replicator) pack() ([]byte, int, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	count := 0
	walkErr := filepath.WalkDir(r.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(r.baseDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, SnapshotPrefix+"/") || strings.HasPrefix(rel, ".git/") {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		header := &tar.Header{
			Name:    rel,
			Mode:    0o600,
			Size:    info.Size(),
			ModTime: info.ModTime().Truncate(time.Second),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		return nil, 0, walkErr
	}
	if err := tw.Close(); err != nil {
		return nil, 0, err
	}
	if err := gz.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), count, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
