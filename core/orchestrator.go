package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Orchestrator runs one deploy: group SiteURIs into batches, stage each batch
// and upload it. Batches run sequentially and a failed batch never stops the
// ones after it.
type Orchestrator struct {
	Table         SiteMappingTable
	Source        SnapshotSource
	Client        DeployClient
	Titles        TitleRenderer
	DeployMessage string
	ProgressLabel string
	StagingRoot   string
	Logger        Logger
}

// Run uploads every non-empty batch with token. The returned error joins the
// per-batch failures also listed in the report.
func (o *Orchestrator) Run(ctx context.Context, runID string, token AccessToken, siteURIs []SiteURI, progress ProgressFunc) (RunReport, error) {
	if o == nil {
		return RunReport{}, fmt.Errorf("core: orchestrator is not configured")
	}
	batches := BuildBatches(siteURIs, o.Table)
	report := RunReport{
		RunID:   runID,
		Total:   batches.Total,
		Deploys: make([]DeployResult, 0, len(batches.Items)),
		Skips:   make([]SkippedItem, 0),
		Errors:  make([]error, 0),
	}
	fail := func(batch DeployBatch, err error) {
		report.Failed = append(report.Failed, batch)
		report.Errors = append(report.Errors, err)
	}
	for _, dropped := range DroppedSiteURIs(siteURIs, o.Table) {
		report.Skips = append(report.Skips, SkippedItem{SiteURI: dropped, Reason: SkipReasonUnmappedSite})
	}

	tracker := NewProgressTracker(progress, o.ProgressLabel, batches.Total)
	tracker.Start()
	if len(batches.Items) == 0 {
		return report, nil
	}

	builder := NewBundleBuilder(o.stagingRoot(runID), o.Source, o.Logger)

	for _, batch := range batches.Items {
		bundle, err := builder.Materialize(ctx, batch, tracker)
		report.Processed += len(batch.SiteURIs)
		report.Written += len(bundle.Files)
		report.Skips = append(report.Skips, bundle.Skips...)
		if err != nil {
			fail(batch, err)
			o.log(ctx, "error", "bundle staging failed", "target_site_id", batch.TargetSiteID, "error", err)
			continue
		}
		if bundle.Empty() {
			report.Skips = append(report.Skips, SkippedItem{
				TargetSiteID: batch.TargetSiteID,
				Reason:       SkipReasonEmptyBundle,
			})
			continue
		}

		if o.Client == nil {
			fail(batch, NewDeployError(fmt.Errorf("core: deploy client is not configured"), batch.TargetSiteID))
			continue
		}
		title, err := o.title(ctx)
		if err != nil {
			fail(batch, NewDeployError(err, batch.TargetSiteID))
			continue
		}
		record, err := o.Client.Deploy(ctx, UploadRequest{
			ArchivePath:  bundle.ArchivePath,
			TargetSiteID: batch.TargetSiteID,
			Title:        title,
			Token:        token,
		})
		if err != nil {
			if !IsDeployError(err) {
				err = NewDeployError(err, batch.TargetSiteID)
			}
			fail(batch, err)
			o.log(ctx, "error", "deploy upload failed", "target_site_id", batch.TargetSiteID, "error", err)
			continue
		}
		report.Deploys = append(report.Deploys, DeployResult{
			TargetSiteID: batch.TargetSiteID,
			Files:        len(bundle.Files),
			Record:       record,
		})
		o.log(ctx, "info", "deploy uploaded", "target_site_id", batch.TargetSiteID, "files", len(bundle.Files), "deploy_id", record.ID)
	}
	return report, report.Err()
}

func (o *Orchestrator) title(ctx context.Context) (string, error) {
	message := strings.TrimSpace(o.DeployMessage)
	if message == "" {
		message = DefaultDeployMessage
	}
	if o.Titles == nil {
		return message, nil
	}
	return o.Titles.Render(ctx, message)
}

// stagingRoot falls back to a fixed per-run path when a temp dir cannot be
// created; the builder then reports the failure per batch.
func (o *Orchestrator) stagingRoot(runID string) string {
	base := strings.TrimSpace(o.StagingRoot)
	if base == "" {
		base = os.TempDir()
	}
	prefix := "deploy-" + safeSegment(runID) + "-"
	if err := os.MkdirAll(base, 0o755); err == nil {
		if dir, err := os.MkdirTemp(base, prefix); err == nil {
			return dir
		}
	}
	return filepath.Join(base, prefix+"staging")
}

func (o *Orchestrator) log(ctx context.Context, level string, message string, args ...any) {
	if o.Logger == nil {
		return
	}
	logger := o.Logger.WithContext(ctx)
	switch level {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}
