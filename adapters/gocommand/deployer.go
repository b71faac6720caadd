package gocommand

import (
	"fmt"

	deployercommand "github.com/goliatone/go-deployer/command"
	"github.com/goliatone/go-deployer/core"
	deployerquery "github.com/goliatone/go-deployer/query"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// DeployerRuntime is what the deployer commands and queries dispatch to.
// *core.Deployer satisfies it.
type DeployerRuntime interface {
	deployercommand.DeployService
	deployercommand.AuthorizationService
	deployerquery.AuthorizationStatusReader
	deployerquery.SiteOptionsReader
}

// Subscriptions groups dispatcher subscriptions so they can be dropped
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			s[i].Unsubscribe()
		}
	}
}

// RegisterDeployer registers and subscribes every deployer command and
// query. progress is the sink used when a deploy message carries none.
func RegisterDeployer(
	adapter *RegistryAdapter,
	runtime DeployerRuntime,
	progress core.ProgressFunc,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if runtime == nil {
		return nil, fmt.Errorf("gocommand: deployer runtime is required")
	}
	var subs Subscriptions
	keep := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := keep(RegisterAndSubscribe[deployercommand.DeployMessage](adapter, deployercommand.NewDeployCommand(runtime, progress), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := keep(RegisterAndSubscribe[deployercommand.BeginAuthorizationMessage](adapter, deployercommand.NewBeginAuthorizationCommand(runtime), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := keep(RegisterAndSubscribe[deployercommand.CompleteAuthorizationMessage](adapter, deployercommand.NewCompleteAuthorizationCommand(runtime), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := keep(RegisterAndSubscribeQuery[deployerquery.AuthorizationStatusMessage, core.AuthorizationResult](adapter, deployerquery.NewAuthorizationStatusQuery(runtime), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := keep(RegisterAndSubscribeQuery[deployerquery.ListTargetSitesMessage, []core.SiteOption](adapter, deployerquery.NewListTargetSitesQuery(runtime), runnerOpts...)); err != nil {
		return nil, err
	}
	return subs, nil
}
