package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

const (
	statusSuccess = "success"
	statusPartial = "partial"
	statusFailure = "failure"
)

type logLevel string

const (
	levelInfo  logLevel = "info"
	levelWarn  logLevel = "warn"
	levelError logLevel = "error"
)

// opEvent is one finished deployer call as it is logged and measured.
type opEvent struct {
	name    string
	status  string
	elapsed time.Duration
	err     error
	fields  map[string]any
}

func (d *Deployer) observeOperation(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if d == nil {
		return
	}
	d.emit(ctx, d.newOpEvent(startedAt, operation, err, nil, fields))
}

// observeRun records a deploy call together with its report. A run that
// uploaded some batches and failed others is reported as partial.
func (d *Deployer) observeRun(ctx context.Context, startedAt time.Time, report RunReport, err error, fields map[string]any) {
	if d == nil {
		return
	}
	merged := cloneFields(fields)
	for key, value := range runFields(report) {
		merged[key] = value
	}
	d.emit(ctx, d.newOpEvent(startedAt, "deploy", err, &report, merged))
	d.countRun(ctx, report)
}

func (d *Deployer) newOpEvent(startedAt time.Time, operation string, err error, report *RunReport, fields map[string]any) opEvent {
	name := normalizeOperation(operation)
	if name == "" {
		name = "unknown"
	}
	var elapsed time.Duration
	if d.now != nil && !startedAt.IsZero() {
		elapsed = d.now().Sub(startedAt)
	}
	return opEvent{
		name:    name,
		status:  runStatus(err, report),
		elapsed: elapsed,
		err:     err,
		fields:  fields,
	}
}

func runStatus(err error, report *RunReport) string {
	switch {
	case err == nil:
		return statusSuccess
	case report != nil && len(report.Deploys) > 0 && len(report.Failed) > 0:
		return statusPartial
	default:
		return statusFailure
	}
}

func (d *Deployer) emit(ctx context.Context, event opEvent) {
	entry := cloneFields(event.fields)
	entry["event_type"] = event.name
	entry["status"] = event.status
	entry["duration_ms"] = event.elapsed.Milliseconds()
	entry["driver"] = d.config.DriverName
	if event.err != nil {
		entry["error"] = event.err.Error()
		if code := TextCode(event.err); code != "" {
			entry["error_code"] = code
		}
	}

	// run_id stays off the tags; it is unique per call.
	tags := map[string]string{
		"operation": event.name,
		"status":    event.status,
		"driver":    d.config.DriverName,
	}
	d.count(ctx, "deployer."+event.name+".total", 1, tags)
	d.measure(ctx, "deployer."+event.name+".duration_ms", float64(event.elapsed.Milliseconds()), tags)

	switch event.status {
	case statusSuccess:
		d.log(ctx, levelInfo, event.name+" succeeded", entry)
	case statusPartial:
		d.log(ctx, levelWarn, event.name+" partially failed", entry)
	default:
		d.log(ctx, levelError, event.name+" failed", entry)
	}
}

// countRun emits per-run batch, file and skip counters. Zero counts are
// not sent.
func (d *Deployer) countRun(ctx context.Context, report RunReport) {
	withTag := func(key, value string) map[string]string {
		return map[string]string{"driver": d.config.DriverName, key: value}
	}
	d.count(ctx, "deployer.deploy.batches", int64(len(report.Deploys)), withTag("outcome", "uploaded"))
	d.count(ctx, "deployer.deploy.batches", int64(len(report.Failed)), withTag("outcome", "failed"))

	files := 0
	for _, deploy := range report.Deploys {
		files += deploy.Files
	}
	d.count(ctx, "deployer.deploy.files", int64(files), withTag("outcome", "uploaded"))

	skips := map[SkipReason]int{}
	for _, skip := range report.Skips {
		skips[skip.Reason]++
	}
	for reason, total := range skips {
		d.count(ctx, "deployer.deploy.skips", int64(total), withTag("reason", string(reason)))
	}
}

func runFields(report RunReport) map[string]any {
	fields := map[string]any{
		"total":          report.Total,
		"processed":      report.Processed,
		"written":        report.Written,
		"deploys":        len(report.Deploys),
		"failed_batches": len(report.Failed),
		"skips":          len(report.Skips),
	}
	if len(report.Deploys) > 0 {
		targets := make([]string, 0, len(report.Deploys))
		for _, deploy := range report.Deploys {
			targets = append(targets, deploy.TargetSiteID)
		}
		fields["targets"] = strings.Join(targets, ",")
	}
	if len(report.Failed) > 0 {
		failed := make([]string, 0, len(report.Failed))
		for _, batch := range report.Failed {
			failed = append(failed, batch.TargetSiteID)
		}
		fields["failed_targets"] = strings.Join(failed, ",")
	}
	return fields
}

func (d *Deployer) logWarn(ctx context.Context, message string, fields map[string]any) {
	d.log(ctx, levelWarn, message, fields)
}

func (d *Deployer) log(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if d == nil || d.logger == nil {
		return
	}
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	fields = RedactSensitiveMap(fields)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (d *Deployer) count(ctx context.Context, name string, value int64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil || value == 0 {
		return
	}
	d.metricsRecorder.IncCounter(ctx, name, value, cloneTags(tags))
}

func (d *Deployer) measure(ctx context.Context, name string, value float64, tags map[string]string) {
	if d == nil || d.metricsRecorder == nil {
		return
	}
	d.metricsRecorder.ObserveHistogram(ctx, name, value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
}
