package deployer

import (
	"fmt"

	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/providers/netlify"
)

func NetlifyProvider(cfg netlify.Config) (*netlify.Provider, error) {
	return netlify.NewProvider(cfg)
}

func NetlifyClient(cfg netlify.Config) (*netlify.Client, error) {
	return netlify.NewClient(cfg)
}

// NetlifyOptions wires the Netlify OAuth provider and deploy client built
// from cfg. Without client credentials only the deploy client is wired, so
// a stored token can still deploy.
func NetlifyOptions(cfg Config, logger core.Logger) ([]Option, error) {
	netlifyCfg := netlify.ConfigFromCore(cfg)
	netlifyCfg.Logger = logger

	client, err := NetlifyClient(netlifyCfg)
	if err != nil {
		return nil, fmt.Errorf("deployer: netlify client: %w", err)
	}
	opts := []Option{WithDeployClient(client)}
	if cfg.ValidateCredentials() != nil {
		return opts, nil
	}
	provider, err := NetlifyProvider(netlifyCfg)
	if err != nil {
		return nil, fmt.Errorf("deployer: netlify provider: %w", err)
	}
	return append(opts, WithOAuthProvider(provider)), nil
}
