package deployer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	deployer "github.com/goliatone/go-deployer"
	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/snapshot"
	sqlstore "github.com/goliatone/go-deployer/store/sql"
)

func TestDownstreamComposition_AuthorizeThenDeployAgainstSQLStores(t *testing.T) {
	ctx := context.Background()
	api := newFakeNetlify(t)

	client, err := sqlstore.Open(ctx, sqlstore.PersistenceConfig{
		Driver: "sqlite3",
		DSN:    fmt.Sprintf("file:deployer-compose-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open persistence: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("repository factory: %v", err)
	}

	cfg := deployer.DefaultConfig()
	cfg.OAuth.ClientID = "client-123"
	cfg.OAuth.ClientSecret = "secret-456"
	cfg.OAuth.RedirectURL = "https://blitz.test/oauth/callback"
	cfg.Netlify.APIURL = api.server.URL + "/api/v1"
	cfg.Netlify.AuthURL = api.server.URL + "/authorize"
	cfg.Netlify.TokenURL = api.server.URL + "/oauth/token"
	cfg.Sites = deployer.SiteMappingTable{
		{SiteID: "1", TargetSiteID: "abc", Enabled: true},
		{SiteID: "2", TargetSiteID: "abc", Enabled: true},
		{SiteID: "3", TargetSiteID: "", Enabled: true},
	}

	netlifyOpts, err := deployer.NetlifyOptions(cfg, nil)
	if err != nil {
		t.Fatalf("netlify options: %v", err)
	}
	source := snapshot.NewMemorySource()
	source.Put(core.SiteURI{SiteID: "1", Path: "/"}, []byte("<h1>home</h1>"))
	source.Put(core.SiteURI{SiteID: "2", Path: "/docs"}, []byte("<h1>docs</h1>"))

	opts := append([]deployer.Option{}, factory.Options()...)
	opts = append(opts, netlifyOpts...)
	opts = append(opts, deployer.WithSnapshotSource(source))
	svc, err := deployer.Setup(cfg, opts...)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if svc.IsAuthorized() {
		t.Fatalf("expected a fresh deployer to be unauthorized")
	}

	begin, err := svc.BeginAuthorization(ctx, deployer.BeginAuthorizationRequest{SessionID: "sess_1"})
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	if !strings.HasPrefix(begin.URL, api.server.URL+"/authorize?") || !strings.Contains(begin.URL, "state="+begin.State) {
		t.Fatalf("unexpected authorize url %q", begin.URL)
	}
	if _, err := svc.CompleteAuthorization(ctx, deployer.CompleteAuthorizationRequest{
		SessionID: "sess_1",
		Code:      "code_1",
		State:     begin.State,
	}); err != nil {
		t.Fatalf("complete authorization: %v", err)
	}
	if !svc.IsAuthorized() {
		t.Fatalf("expected deployer to be authorized after callback")
	}

	reloaded, err := deployer.Setup(cfg, opts...)
	if err != nil {
		t.Fatalf("setup reloaded: %v", err)
	}
	if reloaded.Token().AccessToken != "tok_live" {
		t.Fatalf("expected token persisted in sql store, got %+v", reloaded.Token())
	}

	options, err := reloaded.SiteOptions(ctx)
	if err != nil {
		t.Fatalf("site options: %v", err)
	}
	if len(options) != 2 || options[1].Value != "abc" {
		t.Fatalf("unexpected site options %+v", options)
	}

	var steps int
	report, err := reloaded.Deploy(ctx, deployer.DeployRequest{
		SiteURIs: []deployer.SiteURI{
			{SiteID: "1", Path: "/"},
			{SiteID: "2", Path: "/docs"},
			{SiteID: "3", Path: "/"},
			{SiteID: "1", Path: "/missing"},
		},
		Progress: func(int, int, string) { steps++ },
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(report.Deploys) != 1 || report.Deploys[0].TargetSiteID != "abc" || report.Deploys[0].Files != 2 {
		t.Fatalf("expected one merged deploy of two files, got %+v", report.Deploys)
	}
	if report.Deploys[0].Record.ID != "dep_1" {
		t.Fatalf("unexpected deploy record %+v", report.Deploys[0].Record)
	}
	if len(report.Skips) != 2 {
		t.Fatalf("expected unmapped and missing pages to be skipped, got %+v", report.Skips)
	}
	if steps == 0 {
		t.Fatalf("expected progress updates")
	}

	files := api.uploadedFiles(t)
	if files["index.html"] != "<h1>home</h1>" || files["docs/index.html"] != "<h1>docs</h1>" {
		t.Fatalf("unexpected uploaded archive %v", files)
	}
}

type fakeNetlify struct {
	server *httptest.Server

	mu      sync.Mutex
	archive []byte
}

func newFakeNetlify(t *testing.T) *fakeNetlify {
	t.Helper()
	api := &fakeNetlify{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "code_1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok_live","token_type":"Bearer"}`)
	})
	mux.HandleFunc("/api/v1/sites", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok_live" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "abc", "name": "blog", "url": "https://blog.test"},
		})
	})
	mux.HandleFunc("/api/v1/sites/abc/deploys", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok_live" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.archive = body
		api.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "dep_1", "site_id": "abc", "state": "uploaded"})
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeNetlify) uploadedFiles(t *testing.T) map[string]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	reader, err := zip.NewReader(bytes.NewReader(f.archive), int64(len(f.archive)))
	if err != nil {
		t.Fatalf("open uploaded archive: %v", err)
	}
	files := map[string]string{}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", file.Name, err)
		}
		content, _ := io.ReadAll(rc)
		_ = rc.Close()
		files[file.Name] = string(content)
	}
	return files
}
