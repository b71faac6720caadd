package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-deployer/core"
)

var (
	_ gocmd.Querier[AuthorizationStatusMessage, core.AuthorizationResult] = (*AuthorizationStatusQuery)(nil)
	_ gocmd.Querier[ListTargetSitesMessage, []core.SiteOption]            = (*ListTargetSitesQuery)(nil)

	_ AuthorizationStatusReader = (*core.Deployer)(nil)
	_ SiteOptionsReader         = (*core.Deployer)(nil)
)
