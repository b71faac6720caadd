package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-deployer/core"
)

type DeployService interface {
	Deploy(ctx context.Context, req core.DeployRequest) (core.RunReport, error)
}

type AuthorizationService interface {
	BeginAuthorization(ctx context.Context, req core.BeginAuthorizationRequest) (core.BeginAuthorizationResponse, error)
	CompleteAuthorization(ctx context.Context, req core.CompleteAuthorizationRequest) (core.AuthorizationResult, error)
}

type DeployCommand struct {
	service  DeployService
	progress core.ProgressFunc
}

// NewDeployCommand runs deploys; progress is used when a message carries no
// sink of its own.
func NewDeployCommand(service DeployService, progress core.ProgressFunc) *DeployCommand {
	return &DeployCommand{service: service, progress: progress}
}

func (c *DeployCommand) Execute(ctx context.Context, msg DeployMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: deploy service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	progress := msg.Progress
	if progress == nil {
		progress = c.progress
	}
	report, err := c.service.Deploy(ctx, core.DeployRequest{
		SiteURIs: msg.SiteURIs,
		Progress: progress,
	})
	storeResult(ctx, report)
	return err
}

type BeginAuthorizationCommand struct {
	service AuthorizationService
}

func NewBeginAuthorizationCommand(service AuthorizationService) *BeginAuthorizationCommand {
	return &BeginAuthorizationCommand{service: service}
}

func (c *BeginAuthorizationCommand) Execute(ctx context.Context, msg BeginAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorization service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.BeginAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteAuthorizationCommand struct {
	service AuthorizationService
}

func NewCompleteAuthorizationCommand(service AuthorizationService) *CompleteAuthorizationCommand {
	return &CompleteAuthorizationCommand{service: service}
}

func (c *CompleteAuthorizationCommand) Execute(ctx context.Context, msg CompleteAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorization service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CompleteAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
