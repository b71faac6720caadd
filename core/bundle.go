package core

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const bundleIndexFile = "index.html"

// BundleBuilder stages snapshot content on disk and packs it into one zip
// archive per batch.
type BundleBuilder struct {
	root   string
	source SnapshotSource
	logger Logger
}

func NewBundleBuilder(root string, source SnapshotSource, logger Logger) *BundleBuilder {
	return &BundleBuilder{root: root, source: source, logger: logger}
}

// Materialize advances the tracker once per SiteURI, before fetching it.
// Empty snapshots, fetch failures, write failures and URIs whose archive
// entry was already written skip the item and the batch carries on. The
// returned error is only set when the staging area or archive could not be
// prepared; every URI is still counted in that case.
func (b *BundleBuilder) Materialize(ctx context.Context, batch DeployBatch, tracker *ProgressTracker) (Bundle, error) {
	bundle := Bundle{
		TargetSiteID: batch.TargetSiteID,
		Files:        make([]string, 0, len(batch.SiteURIs)),
		Skips:        make([]SkippedItem, 0),
	}
	if b == nil || b.source == nil {
		err := fmt.Errorf("core: snapshot source is not configured")
		b.skipAll(batch, tracker, &bundle, SkipReasonSnapshotFailed, err)
		return bundle, err
	}

	stagingDir, archive, writer, err := b.prepare(batch.TargetSiteID)
	if err != nil {
		writeErr := NewFileWriteError(err, stagingDir)
		b.skipAll(batch, tracker, &bundle, SkipReasonFileWriteFailed, writeErr)
		return bundle, writeErr
	}
	bundle.StagingDir = stagingDir
	bundle.ArchivePath = archive.Name()

	written := make(map[string]SiteURI, len(batch.SiteURIs))
	for _, uri := range batch.SiteURIs {
		tracker.Advance()

		entry := BundleEntryName(uri.Path)
		if first, ok := written[entry]; ok {
			b.logWarn(ctx, "duplicate archive entry skipped", "site_uri", uri.String(), "path", entry, "written_by", first.String())
			bundle.Skips = append(bundle.Skips, SkippedItem{
				TargetSiteID: batch.TargetSiteID,
				SiteURI:      uri,
				Reason:       SkipReasonDuplicatePath,
			})
			continue
		}

		content, err := b.source.Get(ctx, uri)
		if err != nil {
			b.logError(ctx, "snapshot fetch failed", "site_uri", uri.String(), "error", err)
			bundle.Skips = append(bundle.Skips, SkippedItem{
				TargetSiteID: batch.TargetSiteID,
				SiteURI:      uri,
				Reason:       SkipReasonSnapshotFailed,
				Err:          err,
			})
			continue
		}
		if len(content) == 0 {
			bundle.Skips = append(bundle.Skips, SkippedItem{
				TargetSiteID: batch.TargetSiteID,
				SiteURI:      uri,
				Reason:       SkipReasonEmptySnapshot,
			})
			continue
		}

		if err := writeBundleEntry(stagingDir, entry, content, writer); err != nil {
			writeErr := NewFileWriteError(err, entry)
			b.logError(ctx, "staging file write failed", "site_uri", uri.String(), "path", entry, "error", err)
			bundle.Skips = append(bundle.Skips, SkippedItem{
				TargetSiteID: batch.TargetSiteID,
				SiteURI:      uri,
				Reason:       SkipReasonFileWriteFailed,
				Err:          writeErr,
			})
			continue
		}
		written[entry] = uri
		bundle.Files = append(bundle.Files, entry)
	}

	if err := writer.Close(); err != nil {
		_ = archive.Close()
		return bundle, NewFileWriteError(err, bundle.ArchivePath)
	}
	if err := archive.Close(); err != nil {
		return bundle, NewFileWriteError(err, bundle.ArchivePath)
	}
	return bundle, nil
}

func (b *BundleBuilder) prepare(targetSiteID string) (string, *os.File, *zip.Writer, error) {
	root := strings.TrimSpace(b.root)
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return root, nil, nil, err
	}
	stagingDir := filepath.Join(root, safeSegment(targetSiteID))
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return stagingDir, nil, nil, err
	}
	archive, err := os.Create(stagingDir + ".zip")
	if err != nil {
		return stagingDir, nil, nil, err
	}
	return stagingDir, archive, zip.NewWriter(archive), nil
}

func (b *BundleBuilder) skipAll(batch DeployBatch, tracker *ProgressTracker, bundle *Bundle, reason SkipReason, err error) {
	for _, uri := range batch.SiteURIs {
		tracker.Advance()
		bundle.Skips = append(bundle.Skips, SkippedItem{
			TargetSiteID: batch.TargetSiteID,
			SiteURI:      uri,
			Reason:       reason,
			Err:          err,
		})
	}
}

func (b *BundleBuilder) logWarn(ctx context.Context, message string, args ...any) {
	if b == nil || b.logger == nil {
		return
	}
	b.logger.WithContext(ctx).Warn(message, args...)
}

func (b *BundleBuilder) logError(ctx context.Context, message string, args ...any) {
	if b == nil || b.logger == nil {
		return
	}
	b.logger.WithContext(ctx).Error(message, args...)
}

// BundleEntryName maps a page path to its archive entry: "/" becomes
// "index.html" and "/about" becomes "about/index.html".
func BundleEntryName(pagePath string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(pagePath)), "/")
	if cleaned == "" {
		return bundleIndexFile
	}
	return cleaned + "/" + bundleIndexFile
}

func writeBundleEntry(stagingDir string, entry string, content []byte, writer *zip.Writer) error {
	target := filepath.Join(stagingDir, filepath.FromSlash(entry))
	rel, err := filepath.Rel(stagingDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("core: path %q escapes staging directory", entry)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return err
	}
	w, err := writer.Create(entry)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func safeSegment(value string) string {
	value = strings.TrimSpace(value)
	value = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(value)
	if value == "" {
		return "_"
	}
	return value
}
