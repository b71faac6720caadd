package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func TestDeployerObservability_DeploySuccess(t *testing.T) {
	store := NewMemoryCredentialStore()
	_ = store.Save(context.Background(), AccessToken{AccessToken: "tok"})
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	deployer := newTestDeployer(t, authorizedConfig(),
		WithCredentialStore(store),
		WithDeployClient(newRecordingDeployClient()),
		WithSnapshotSource(newStubSnapshotSource().put("1", "/", "home")),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	report, err := deployer.Deploy(context.Background(), DeployRequest{SiteURIs: []SiteURI{{SiteID: "1", Path: "/"}}})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !hasCounter(metrics.counters, "deployer.deploy.total", "success") {
		t.Fatalf("expected deployer.deploy.total success counter")
	}
	if !hasHistogram(metrics.histograms, "deployer.deploy.duration_ms", "success") {
		t.Fatalf("expected deployer.deploy.duration_ms histogram")
	}
	records := logger.snapshot()
	if !hasLog(records, "info", "deploy succeeded", "deploy") {
		t.Fatalf("expected deploy succeeded structured log")
	}
	for _, record := range records {
		if record.msg == "deploy succeeded" && record.fields["run_id"] != report.RunID {
			t.Fatalf("expected run id on deploy log, got %#v", record.fields["run_id"])
		}
	}
}

func TestDeployerObservability_FailureCarriesErrorCode(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	deployer := newTestDeployer(t, authorizedConfig(),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	if _, err := deployer.Deploy(context.Background(), DeployRequest{}); err == nil {
		t.Fatalf("expected unauthorized deploy to fail")
	}
	if !hasCounter(metrics.counters, "deployer.deploy.total", "failure") {
		t.Fatalf("expected deploy failure counter")
	}
	records := logger.snapshot()
	if !hasLog(records, "error", "deploy failed", "deploy") {
		t.Fatalf("expected deploy failure log")
	}
	last := records[len(records)-1]
	if last.fields["error_code"] != ErrorNotAuthorized {
		t.Fatalf("expected error_code %q, got %#v", ErrorNotAuthorized, last.fields["error_code"])
	}
}

func TestDeployerObservability_PartialRunCountsBatches(t *testing.T) {
	store := NewMemoryCredentialStore()
	_ = store.Save(context.Background(), AccessToken{AccessToken: "tok"})
	client := newRecordingDeployClient()
	client.failures["abc"] = errors.New("provider returned 500")
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	deployer := newTestDeployer(t, authorizedConfig(),
		WithCredentialStore(store),
		WithDeployClient(client),
		WithSnapshotSource(newStubSnapshotSource().put("1", "/", "a").put("2", "/", "b")),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
	)

	_, err := deployer.Deploy(context.Background(), DeployRequest{SiteURIs: []SiteURI{
		{SiteID: "1", Path: "/"},
		{SiteID: "2", Path: "/"},
		{SiteID: "3", Path: "/"},
	}})
	if err == nil {
		t.Fatalf("expected partial deploy error")
	}
	if !hasCounter(metrics.counters, "deployer.deploy.total", "partial") {
		t.Fatalf("expected partial deploy counter, got %+v", metrics.counters)
	}
	if got := counterValue(metrics.counters, "deployer.deploy.batches", "outcome", "uploaded"); got != 1 {
		t.Fatalf("expected 1 uploaded batch, got %d", got)
	}
	if got := counterValue(metrics.counters, "deployer.deploy.batches", "outcome", "failed"); got != 1 {
		t.Fatalf("expected 1 failed batch, got %d", got)
	}
	if got := counterValue(metrics.counters, "deployer.deploy.files", "outcome", "uploaded"); got != 1 {
		t.Fatalf("expected 1 uploaded file, got %d", got)
	}
	if got := counterValue(metrics.counters, "deployer.deploy.skips", "reason", string(SkipReasonUnmappedSite)); got != 1 {
		t.Fatalf("expected 1 unmapped skip, got %d", got)
	}

	records := logger.snapshot()
	if !hasLog(records, "warn", "deploy partially failed", "deploy") {
		t.Fatalf("expected partial deploy warning, got %+v", records)
	}
	for _, record := range records {
		if record.msg != "deploy partially failed" {
			continue
		}
		if record.fields["targets"] != "def" || record.fields["failed_targets"] != "abc" {
			t.Fatalf("unexpected run targets: %#v", record.fields)
		}
		if record.fields["failed_batches"] != 1 {
			t.Fatalf("expected failed_batches 1, got %#v", record.fields["failed_batches"])
		}
	}
}

func counterValue(items []capturedCounter, name string, tag string, value string) int64 {
	var total int64
	for _, item := range items {
		if item.name == name && item.tags[tag] == value {
			total += item.value
		}
	}
	return total
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
