package core

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"testing"
)

type stubSnapshotSource struct {
	pages map[string][]byte
	errs  map[string]error
	calls []SiteURI
}

func newStubSnapshotSource() *stubSnapshotSource {
	return &stubSnapshotSource{pages: map[string][]byte{}, errs: map[string]error{}}
}

func (s *stubSnapshotSource) put(siteID string, path string, content string) *stubSnapshotSource {
	s.pages[SiteURI{SiteID: siteID, Path: path}.String()] = []byte(content)
	return s
}

func (s *stubSnapshotSource) Get(_ context.Context, uri SiteURI) ([]byte, error) {
	s.calls = append(s.calls, uri)
	if err, ok := s.errs[uri.String()]; ok {
		return nil, err
	}
	return s.pages[uri.String()], nil
}

type uploadedArchive struct {
	Request UploadRequest
	Entries map[string]string
}

type recordingDeployClient struct {
	mu       sync.Mutex
	uploads  []uploadedArchive
	failures map[string]error
	sites    []TargetSite
	listErr  error
}

func newRecordingDeployClient() *recordingDeployClient {
	return &recordingDeployClient{failures: map[string]error{}}
}

func (c *recordingDeployClient) Deploy(_ context.Context, req UploadRequest) (DeployRecord, error) {
	entries, err := readArchive(req.ArchivePath)
	if err != nil {
		return DeployRecord{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, uploadedArchive{Request: req, Entries: entries})
	if err := c.failures[req.TargetSiteID]; err != nil {
		return DeployRecord{}, err
	}
	return DeployRecord{
		ID:     fmt.Sprintf("deploy_%d", len(c.uploads)),
		SiteID: req.TargetSiteID,
		State:  "uploaded",
		Title:  req.Title,
	}, nil
}

func (c *recordingDeployClient) ListSites(context.Context, AccessToken) ([]TargetSite, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]TargetSite(nil), c.sites...), nil
}

func readArchive(path string) (map[string]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	entries := map[string]string{}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		buf, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return nil, readErr
		}
		entries[file.Name] = string(buf)
	}
	return entries, nil
}

func entryNames(entries map[string]string) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type stubOAuthProvider struct {
	token        AccessToken
	exchangeErr  error
	exchanges    []string
	lastRedirect string
}

func (p *stubOAuthProvider) AuthorizationURL(state string, redirectURI string) (string, error) {
	p.lastRedirect = redirectURI
	values := url.Values{}
	values.Set("client_id", "client_1")
	values.Set("response_type", "code")
	values.Set("state", state)
	if redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	return "https://app.netlify.test/authorize?" + values.Encode(), nil
}

func (p *stubOAuthProvider) Exchange(_ context.Context, code string, _ string) (AccessToken, error) {
	p.exchanges = append(p.exchanges, code)
	if p.exchangeErr != nil {
		return AccessToken{}, p.exchangeErr
	}
	return p.token, nil
}

type progressStep struct {
	Count   int
	Total   int
	Message string
}

type progressRecorder struct {
	steps []progressStep
}

func (r *progressRecorder) sink() ProgressFunc {
	return func(count int, total int, message string) {
		r.steps = append(r.steps, progressStep{Count: count, Total: total, Message: message})
	}
}

func testSiteTable() SiteMappingTable {
	return SiteMappingTable{
		{SiteID: "1", TargetSiteID: "abc", Enabled: true},
		{SiteID: "2", TargetSiteID: "def", Enabled: true},
		{SiteID: "3", TargetSiteID: "ghi", Enabled: false},
	}
}

func newTestDeployer(t *testing.T, cfg Config, opts ...Option) *Deployer {
	t.Helper()
	if cfg.StagingDir == "" {
		cfg.StagingDir = t.TempDir()
	}
	deployer, err := NewDeployer(cfg, opts...)
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}
	return deployer
}
