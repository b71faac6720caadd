package core

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultDriverName    = "netlify"
	DefaultDeployMessage = "Blitz auto deploy"
	DefaultProgressLabel = "Deploying {count} of {total} files."
	DefaultNetlifyAPIURL = "https://api.netlify.com/api/v1"
	DefaultAuthURL       = "https://app.netlify.com/authorize"
	DefaultTokenURL      = "https://api.netlify.com/oauth/token"
)

type OAuthConfig struct {
	ClientID     string        `koanf:"client_id" mapstructure:"client_id" yaml:"client_id" json:"client_id"`
	ClientSecret string        `koanf:"client_secret" mapstructure:"client_secret" yaml:"client_secret" json:"client_secret"`
	RedirectURL  string        `koanf:"redirect_url" mapstructure:"redirect_url" yaml:"redirect_url" json:"redirect_url"`
	SuccessURL   string        `koanf:"success_url" mapstructure:"success_url" yaml:"success_url" json:"success_url"`
	StateTTL     time.Duration `koanf:"state_ttl" mapstructure:"state_ttl" yaml:"state_ttl" json:"state_ttl"`
}

type NetlifyConfig struct {
	APIURL   string `koanf:"api_url" mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	AuthURL  string `koanf:"auth_url" mapstructure:"auth_url" yaml:"auth_url" json:"auth_url"`
	TokenURL string `koanf:"token_url" mapstructure:"token_url" yaml:"token_url" json:"token_url"`
}

type Config struct {
	DriverName    string           `koanf:"driver_name" mapstructure:"driver_name" yaml:"driver_name" json:"driver_name"`
	DeployMessage string           `koanf:"deploy_message" mapstructure:"deploy_message" yaml:"deploy_message" json:"deploy_message"`
	ProgressLabel string           `koanf:"progress_label" mapstructure:"progress_label" yaml:"progress_label" json:"progress_label"`
	StagingDir    string           `koanf:"staging_dir" mapstructure:"staging_dir" yaml:"staging_dir" json:"staging_dir"`
	OAuth         OAuthConfig      `koanf:"oauth" mapstructure:"oauth" yaml:"oauth" json:"oauth"`
	Netlify       NetlifyConfig    `koanf:"netlify" mapstructure:"netlify" yaml:"netlify" json:"netlify"`
	Sites         SiteMappingTable `koanf:"sites" mapstructure:"sites" yaml:"sites" json:"sites"`
}

func DefaultConfig() Config {
	return Config{
		DriverName:    DefaultDriverName,
		DeployMessage: DefaultDeployMessage,
		ProgressLabel: DefaultProgressLabel,
		OAuth: OAuthConfig{
			StateTTL: defaultOAuthStateTTL,
		},
		Netlify: NetlifyConfig{
			APIURL:   DefaultNetlifyAPIURL,
			AuthURL:  DefaultAuthURL,
			TokenURL: DefaultTokenURL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DriverName) == "" {
		return fmt.Errorf("core: driver_name is required")
	}
	if c.OAuth.StateTTL < 0 {
		return fmt.Errorf("core: oauth.state_ttl must not be negative")
	}
	if err := c.Sites.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials checks the client credentials needed to talk to the
// provider. Plain deploys from a stored token do not need them.
func (c Config) ValidateCredentials() error {
	if strings.TrimSpace(ResolveEnv(c.OAuth.ClientID)) == "" {
		return fmt.Errorf("core: oauth.client_id is required")
	}
	if strings.TrimSpace(ResolveEnv(c.OAuth.ClientSecret)) == "" {
		return fmt.Errorf("core: oauth.client_secret is required")
	}
	return nil
}

// ResolvedOAuth returns the OAuth block with $VAR and ${VAR} references
// expanded from the environment.
func (c Config) ResolvedOAuth() OAuthConfig {
	out := c.OAuth
	out.ClientID = ResolveEnv(out.ClientID)
	out.ClientSecret = ResolveEnv(out.ClientSecret)
	out.RedirectURL = ResolveEnv(out.RedirectURL)
	return out
}

func (c Config) stateTTL() time.Duration {
	if c.OAuth.StateTTL <= 0 {
		return defaultOAuthStateTTL
	}
	return c.OAuth.StateTTL
}

// ResolveEnv expands a value that is entirely an environment reference.
// Anything else is returned trimmed and unchanged.
func ResolveEnv(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "$") {
		return value
	}
	name := strings.TrimPrefix(value, "$")
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
	}
	if name == "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(name))
}
