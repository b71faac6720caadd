package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-deployer/core"
)

var (
	_ gocmd.Commander[DeployMessage]                = (*DeployCommand)(nil)
	_ gocmd.Commander[BeginAuthorizationMessage]    = (*BeginAuthorizationCommand)(nil)
	_ gocmd.Commander[CompleteAuthorizationMessage] = (*CompleteAuthorizationCommand)(nil)

	_ DeployService        = (*core.Deployer)(nil)
	_ AuthorizationService = (*core.Deployer)(nil)
)
