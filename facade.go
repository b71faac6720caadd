package deployer

import (
	"fmt"

	deployercommand "github.com/goliatone/go-deployer/command"
	deployerquery "github.com/goliatone/go-deployer/query"
)

// CommandQueryService is the runtime behind the facade. *Deployer satisfies
// it.
type CommandQueryService interface {
	deployercommand.DeployService
	deployercommand.AuthorizationService
	deployerquery.AuthorizationStatusReader
	deployerquery.SiteOptionsReader
}

type Commands struct {
	Deploy                *deployercommand.DeployCommand
	BeginAuthorization    *deployercommand.BeginAuthorizationCommand
	CompleteAuthorization *deployercommand.CompleteAuthorizationCommand
}

type Queries struct {
	AuthorizationStatus *deployerquery.AuthorizationStatusQuery
	ListTargetSites     *deployerquery.ListTargetSitesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	progress    ProgressFunc
	siteOptions deployerquery.SiteOptionsReader
}

// WithDefaultProgress sets the sink used by deploy messages that carry none.
func WithDefaultProgress(progress ProgressFunc) FacadeOption {
	return func(options *facadeOptions) {
		options.progress = progress
	}
}

// WithSiteOptionsReader serves the target site query from reader instead of
// the service, e.g. a cached listing.
func WithSiteOptionsReader(reader deployerquery.SiteOptionsReader) FacadeOption {
	return func(options *facadeOptions) {
		options.siteOptions = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("deployer: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	siteOptions := cfg.siteOptions
	if siteOptions == nil {
		siteOptions = service
	}

	return &Facade{
		service: service,
		commands: Commands{
			Deploy:                deployercommand.NewDeployCommand(service, cfg.progress),
			BeginAuthorization:    deployercommand.NewBeginAuthorizationCommand(service),
			CompleteAuthorization: deployercommand.NewCompleteAuthorizationCommand(service),
		},
		queries: Queries{
			AuthorizationStatus: deployerquery.NewAuthorizationStatusQuery(service),
			ListTargetSites:     deployerquery.NewListTargetSitesQuery(siteOptions),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
