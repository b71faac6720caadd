package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-deployer/core"
)

func TestLoadConfigFile_SplitsCLIKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployer.yaml")
	content := `
database:
  driver: postgres
  dsn: postgres://localhost/blitz
  ping_timeout: 3s
cipher_key: secret
snapshots: /var/cache/blitz
credential_cache_ttl: 1m
driver_name: netlify
oauth:
  client_id: ${NETLIFY_CLIENT_ID}
sites:
  - site_id: "1"
    target_site_id: abc
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	parsed, raw, err := loadConfigFile(path, true)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if parsed.Database.Driver != "postgres" || parsed.Database.PingTimeout != 3*time.Second {
		t.Fatalf("unexpected database config %+v", parsed.Database)
	}
	if parsed.CipherKey != "secret" || parsed.Snapshots != "/var/cache/blitz" || parsed.CredentialCacheTTL != time.Minute {
		t.Fatalf("unexpected cli config %+v", parsed)
	}
	for _, key := range cliOnlyKeys {
		if _, ok := raw[key]; ok {
			t.Fatalf("expected %s to be removed from the deployer config", key)
		}
	}
	if raw["driver_name"] != "netlify" || raw["sites"] == nil {
		t.Fatalf("unexpected raw config %#v", raw)
	}
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, raw, err := loadConfigFile(path, false); err != nil || len(raw) != 0 {
		t.Fatalf("expected missing default config to be ignored, got %v %v", raw, err)
	}
	if _, _, err := loadConfigFile(path, true); err == nil {
		t.Fatalf("expected missing explicit config to fail")
	}
}

func TestParseSiteURIArgs(t *testing.T) {
	uris, err := parseSiteURIArgs([]string{"1:/about", "2", " 3:/docs/intro "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expected := []core.SiteURI{{SiteID: "1", Path: "/about"}, {SiteID: "2", Path: "/"}, {SiteID: "3", Path: "/docs/intro"}}
	if len(uris) != len(expected) {
		t.Fatalf("unexpected uris %+v", uris)
	}
	for i := range expected {
		if uris[i] != expected[i] {
			t.Fatalf("uri %d: expected %+v, got %+v", i, expected[i], uris[i])
		}
	}
	if _, err := parseSiteURIArgs([]string{":/about"}); err == nil {
		t.Fatalf("expected missing site id to fail")
	}
}

func TestCLILogger_HonorsDebug(t *testing.T) {
	var out bytes.Buffer
	logger := newCLILogger(&out, false)
	logger.Debug("hidden")
	logger.Info("deploy finished", "run_id", "run_1", "dangling")
	logger.WithContext(context.Background()).Warn("slow")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", out.String())
	}
	if !strings.Contains(lines[0], "INFO  deploy finished run_id=run_1 !extra=dangling") {
		t.Fatalf("unexpected info line %q", lines[0])
	}
	if !strings.Contains(lines[1], "WARN  slow") {
		t.Fatalf("unexpected warn line %q", lines[1])
	}
}

func TestCallbackURL(t *testing.T) {
	if got := callbackURL("", "127.0.0.1:8788"); got != "http://127.0.0.1:8788/oauth/callback" {
		t.Fatalf("unexpected local callback %q", got)
	}
	if got := callbackURL(" https://blitz.test/cb ", "ignored"); got != "https://blitz.test/cb" {
		t.Fatalf("unexpected configured callback %q", got)
	}
}

func TestPrintRunReport(t *testing.T) {
	var out bytes.Buffer
	printRunReport(&out, core.RunReport{
		RunID:     "run_1",
		Total:     2,
		Processed: 2,
		Written:   1,
		Deploys: []core.DeployResult{{
			TargetSiteID: "abc",
			Files:        1,
			Record:       core.DeployRecord{State: "uploaded", DeployURL: "https://dep.test"},
		}},
		Skips: []core.SkippedItem{{SiteURI: core.SiteURI{SiteID: "1", Path: "/gone"}, Reason: core.SkipReasonSnapshotFailed}},
	})
	text := out.String()
	if !strings.Contains(text, "run run_1: 2/2 pages processed, 1 written") ||
		!strings.Contains(text, "deployed 1 files to abc: uploaded https://dep.test") ||
		!strings.Contains(text, "skipped 1:/gone") {
		t.Fatalf("unexpected report output %q", text)
	}
}
