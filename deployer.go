// Package deployer publishes cached pages to Netlify. It re-exports the core
// types and options and assembles the command and query facade; storage,
// providers and transports live in subpackages.
package deployer

import "github.com/goliatone/go-deployer/core"

type Config = core.Config

type OAuthConfig = core.OAuthConfig

type NetlifyConfig = core.NetlifyConfig

type Option = core.Option

type Deployer = core.Deployer

type DeployerDependencies = core.DeployerDependencies

type (
	AccessToken      = core.AccessToken
	SiteURI          = core.SiteURI
	SiteMapping      = core.SiteMapping
	SiteMappingTable = core.SiteMappingTable
	SiteOption       = core.SiteOption
	RunReport        = core.RunReport
	ProgressFunc     = core.ProgressFunc
)

type (
	CredentialStore     = core.CredentialStore
	OAuthStateStore     = core.OAuthStateStore
	OAuthProvider       = core.OAuthProvider
	DeployClient        = core.DeployClient
	SnapshotSource      = core.SnapshotSource
	TitleRenderer       = core.TitleRenderer
	CallbackURLResolver = core.CallbackURLResolver
	BeforeDeployHook    = core.BeforeDeployHook
	AfterDeployHook     = core.AfterDeployHook
)

type BeginAuthorizationRequest = core.BeginAuthorizationRequest

type CompleteAuthorizationRequest = core.CompleteAuthorizationRequest

type DeployRequest = core.DeployRequest

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithCredentialStore  = core.WithCredentialStore
	WithOAuthStateStore  = core.WithOAuthStateStore
	WithOAuthProvider    = core.WithOAuthProvider
	WithDeployClient     = core.WithDeployClient
	WithSnapshotSource   = core.WithSnapshotSource
	WithTitleRenderer    = core.WithTitleRenderer
	WithBeforeDeployHook = core.WithBeforeDeployHook
	WithAfterDeployHook  = core.WithAfterDeployHook
	WithClock            = core.WithClock

	WithCallbackURLResolver = core.WithCallbackURLResolver
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewDeployer(cfg Config, opts ...Option) (*Deployer, error) {
	return core.NewDeployer(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Deployer, error) {
	return core.Setup(cfg, opts...)
}
