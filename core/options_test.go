package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type failingConfigProvider struct{}

func (failingConfigProvider) Load(context.Context, Config) (Config, error) {
	return Config{}, errors.New("core: config file is invalid")
}

func TestNewDeployer_DefaultDependencies(t *testing.T) {
	deployer, err := NewDeployer(Config{})
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}
	deps := deployer.Dependencies()
	if deps.Logger == nil || deps.LoggerProvider == nil {
		t.Fatalf("expected default logger and provider")
	}
	if deps.ErrorMapper == nil || deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default error mapper, config provider and options resolver")
	}
	if deps.CredentialStore == nil || deps.OAuthStateStore == nil {
		t.Fatalf("expected in-memory credential and oauth state stores")
	}
	if deps.TitleRenderer == nil || deps.Hooks == nil {
		t.Fatalf("expected default title renderer and hooks")
	}
	cfg := deployer.Config()
	if cfg.DriverName != DefaultDriverName || cfg.DeployMessage != DefaultDeployMessage {
		t.Fatalf("expected defaults to be applied, got %+v", cfg)
	}
	if cfg.Netlify.APIURL != DefaultNetlifyAPIURL || cfg.OAuth.StateTTL != 15*time.Minute {
		t.Fatalf("expected provider defaults, got %+v", cfg)
	}
}

func TestNewDeployer_RuntimeConfigOverridesLoaded(t *testing.T) {
	loaded := DefaultConfig()
	loaded.DeployMessage = "From file"
	loaded.StagingDir = "/var/tmp/file"

	runtime := Config{
		DeployMessage: "From runtime",
		Sites:         SiteMappingTable{{SiteID: "1", TargetSiteID: "abc", Enabled: true}},
	}
	deployer, err := NewDeployer(runtime, WithConfigProvider(&fixedConfigProvider{cfg: loaded}))
	if err != nil {
		t.Fatalf("new deployer: %v", err)
	}
	cfg := deployer.Config()
	if cfg.DeployMessage != "From runtime" {
		t.Fatalf("expected runtime deploy message, got %q", cfg.DeployMessage)
	}
	if cfg.StagingDir != "/var/tmp/file" {
		t.Fatalf("expected loaded staging dir to survive, got %q", cfg.StagingDir)
	}
	if target, ok := cfg.Sites.Resolve("1"); !ok || target != "abc" {
		t.Fatalf("expected runtime site table, got %+v", cfg.Sites)
	}
}

func TestNewDeployer_MapsConfigErrors(t *testing.T) {
	_, err := NewDeployer(Config{}, WithConfigProvider(failingConfigProvider{}))
	if err == nil {
		t.Fatalf("expected config error")
	}
	if TextCode(err) != ErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", TextCode(err))
	}
}

func TestCfgxConfigProvider_LoadsRawMap(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"deploy_message": "Nightly",
		"oauth": map[string]any{
			"client_id": "$NETLIFY_CLIENT_ID",
			"state_ttl": "10m",
		},
		"sites": []any{
			map[string]any{"site_id": "1", "target_site_id": "abc", "enabled": true},
		},
	}})
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DeployMessage != "Nightly" || cfg.OAuth.StateTTL != 10*time.Minute {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Netlify.TokenURL != DefaultTokenURL {
		t.Fatalf("expected defaults to fill unset keys, got %q", cfg.Netlify.TokenURL)
	}
	if len(cfg.Sites) != 1 || !cfg.Sites[0].Enabled {
		t.Fatalf("unexpected sites %+v", cfg.Sites)
	}
}

func TestConfig_ResolvesEnvironmentCredentials(t *testing.T) {
	t.Setenv("NETLIFY_CLIENT_ID", "client_from_env")
	t.Setenv("NETLIFY_CLIENT_SECRET", "secret_from_env")
	cfg := DefaultConfig()
	cfg.OAuth.ClientID = "$NETLIFY_CLIENT_ID"
	cfg.OAuth.ClientSecret = "${NETLIFY_CLIENT_SECRET}"

	resolved := cfg.ResolvedOAuth()
	if resolved.ClientID != "client_from_env" || resolved.ClientSecret != "secret_from_env" {
		t.Fatalf("unexpected resolved credentials %+v", resolved)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("expected credentials to validate: %v", err)
	}

	cfg.OAuth.ClientSecret = "$MISSING_SECRET_VAR"
	if err := cfg.ValidateCredentials(); err == nil {
		t.Fatalf("expected unresolved secret to fail validation")
	}
}

func TestFormatProgressLabel(t *testing.T) {
	if got := FormatProgressLabel(DefaultProgressLabel, 3, 7); got != "Deploying 3 of 7 files." {
		t.Fatalf("unexpected label %q", got)
	}
}
