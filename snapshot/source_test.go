package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-deployer/core"
)

func TestFileSource_ReadsBundleLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "1", "about"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "1", "index.html"), []byte("home"), 0o644); err != nil {
		t.Fatalf("write home: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "1", "about", "index.html"), []byte("about"), 0o644); err != nil {
		t.Fatalf("write about: %v", err)
	}

	source, err := NewFileSource(root)
	if err != nil {
		t.Fatalf("new file source: %v", err)
	}
	ctx := context.Background()

	home, err := source.Get(ctx, core.SiteURI{SiteID: "1", Path: "/"})
	if err != nil || string(home) != "home" {
		t.Fatalf("expected home snapshot, got %q (%v)", home, err)
	}
	about, err := source.Get(ctx, core.SiteURI{SiteID: "1", Path: "/about/"})
	if err != nil || string(about) != "about" {
		t.Fatalf("expected about snapshot, got %q (%v)", about, err)
	}
	missing, err := source.Get(ctx, core.SiteURI{SiteID: "1", Path: "/missing"})
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected missing page to be empty, got %q (%v)", missing, err)
	}
}

func TestFileSource_RejectsInvalidInput(t *testing.T) {
	if _, err := NewFileSource(""); err == nil {
		t.Fatalf("expected empty root to fail")
	}
	file := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(file, []byte("x"), 0o644)
	if _, err := NewFileSource(file); err == nil {
		t.Fatalf("expected non-directory root to fail")
	}

	source := NewFSSource(fstest.MapFS{})
	if _, err := source.Get(context.Background(), core.SiteURI{Path: "/"}); err == nil {
		t.Fatalf("expected uri without site id to fail")
	}
}

func TestFileSource_PathTraversalStaysInsideSite(t *testing.T) {
	source := NewFSSource(fstest.MapFS{
		"1/etc/passwd/index.html": {Data: []byte("inside")},
	})
	content, err := source.Get(context.Background(), core.SiteURI{SiteID: "1", Path: "/../../etc/passwd"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(content) != "inside" {
		t.Fatalf("expected cleaned path to resolve inside the site, got %q", content)
	}
}

func TestMemorySource_PutGetDelete(t *testing.T) {
	source := NewMemorySource()
	uri := core.SiteURI{SiteID: "2", Path: "/blog"}
	payload := []byte("blog")
	source.Put(uri, payload)
	payload[0] = 'X'

	content, err := source.Get(context.Background(), uri)
	if err != nil || string(content) != "blog" {
		t.Fatalf("expected stored copy, got %q (%v)", content, err)
	}
	source.Delete(uri)
	content, err = source.Get(context.Background(), uri)
	if err != nil || content != nil {
		t.Fatalf("expected deleted snapshot to be empty, got %q (%v)", content, err)
	}
}

func TestSnapshotPath(t *testing.T) {
	if got := SnapshotPath(core.SiteURI{SiteID: "1", Path: "/"}); got != "1/index.html" {
		t.Fatalf("unexpected root path %q", got)
	}
	if got := SnapshotPath(core.SiteURI{SiteID: "1", Path: "about"}); got != "1/about/index.html" {
		t.Fatalf("unexpected page path %q", got)
	}
}
