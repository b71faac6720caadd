package deployer

import (
	"context"
	"testing"

	deployercommand "github.com/goliatone/go-deployer/command"
	"github.com/goliatone/go-deployer/core"
	deployerquery "github.com/goliatone/go-deployer/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Deploy == nil || commands.BeginAuthorization == nil || commands.CompleteAuthorization == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.AuthorizationStatus == nil || queries.ListTargetSites == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	var progressCalls int
	facade, err := NewFacade(svc, WithDefaultProgress(func(int, int, string) { progressCalls++ }))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().Deploy.Execute(context.Background(), deployercommand.DeployMessage{
		SiteURIs: []core.SiteURI{{SiteID: "1", Path: "/"}},
	}); err != nil {
		t.Fatalf("execute deploy command: %v", err)
	}
	if len(svc.lastDeploy.SiteURIs) != 1 || progressCalls != 1 {
		t.Fatalf("unexpected deploy delegation %#v progress=%d", svc.lastDeploy, progressCalls)
	}

	status, err := facade.Queries().AuthorizationStatus.Query(context.Background(), deployerquery.AuthorizationStatusMessage{})
	if err != nil || status.State != core.AuthStateAuthenticated {
		t.Fatalf("unexpected status %#v (%v)", status, err)
	}
}

func TestFacade_SiteOptionsReaderOverride(t *testing.T) {
	override := &stubSiteOptionsReader{options: []core.SiteOption{{Label: "None"}, {Label: "cached", Value: "c1"}}}
	facade, err := NewFacade(&stubFacadeService{}, WithSiteOptionsReader(override))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	options, err := facade.Queries().ListTargetSites.Query(context.Background(), deployerquery.ListTargetSitesMessage{})
	if err != nil {
		t.Fatalf("query sites: %v", err)
	}
	if len(options) != 2 || options[1].Value != "c1" {
		t.Fatalf("expected override reader to serve sites, got %#v", options)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDeploy core.DeployRequest
}

func (s *stubFacadeService) Deploy(_ context.Context, req core.DeployRequest) (core.RunReport, error) {
	s.lastDeploy = req
	if req.Progress != nil {
		req.Progress(0, len(req.SiteURIs), "start")
	}
	return core.RunReport{RunID: "run_1"}, nil
}

func (s *stubFacadeService) BeginAuthorization(context.Context, core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error) {
	return core.BeginAuthorizationResponse{}, nil
}

func (s *stubFacadeService) CompleteAuthorization(context.Context, core.CompleteAuthorizationRequest) (core.AuthorizationResult, error) {
	return core.AuthorizationResult{}, nil
}

func (s *stubFacadeService) AuthorizationStatus() core.AuthorizationResult {
	return core.AuthorizationResult{State: core.AuthStateAuthenticated}
}

func (s *stubFacadeService) SiteOptions(context.Context) ([]core.SiteOption, error) {
	return []core.SiteOption{{Label: "None"}}, nil
}

type stubSiteOptionsReader struct {
	options []core.SiteOption
}

func (s *stubSiteOptionsReader) SiteOptions(context.Context) ([]core.SiteOption, error) {
	return s.options, nil
}
