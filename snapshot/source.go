// Package snapshot provides page snapshot sources for the deployer. The page
// cache itself lives elsewhere; these adapters read what it produced.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/goliatone/go-deployer/core"
)

// FileSource reads snapshots laid out as <site_id>/<page>/index.html, the
// same layout the deploy bundle uses. Missing files are empty snapshots.
type FileSource struct {
	fsys fs.FS
}

func NewFileSource(root string) (*FileSource, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("snapshot: root directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot: root %q is not a directory", root)
	}
	return &FileSource{fsys: os.DirFS(root)}, nil
}

func NewFSSource(fsys fs.FS) *FileSource {
	return &FileSource{fsys: fsys}
}

func (s *FileSource) Get(ctx context.Context, uri core.SiteURI) ([]byte, error) {
	if s == nil || s.fsys == nil {
		return nil, fmt.Errorf("snapshot: file source is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := uri.Validate(); err != nil {
		return nil, err
	}
	name := SnapshotPath(uri)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("snapshot: invalid snapshot path %q", name)
	}
	content, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	return content, nil
}

// SnapshotPath is the slash separated file name of a page snapshot.
func SnapshotPath(uri core.SiteURI) string {
	return path.Join(strings.TrimSpace(uri.SiteID), core.BundleEntryName(uri.Path))
}

// MemorySource keeps snapshots in memory.
type MemorySource struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

func NewMemorySource() *MemorySource {
	return &MemorySource{pages: map[string][]byte{}}
}

func (s *MemorySource) Put(uri core.SiteURI, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[SnapshotPath(uri)] = append([]byte(nil), content...)
}

func (s *MemorySource) Delete(uri core.SiteURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, SnapshotPath(uri))
}

func (s *MemorySource) Get(_ context.Context, uri core.SiteURI) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("snapshot: memory source is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.pages[SnapshotPath(uri)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), content...), nil
}

var (
	_ core.SnapshotSource = (*FileSource)(nil)
	_ core.SnapshotSource = (*MemorySource)(nil)
)
