package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type deployerBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	credentialStore CredentialStore
	oauthStateStore OAuthStateStore
	oauthProvider   OAuthProvider
	deployClient    DeployClient
	snapshotSource  SnapshotSource
	titleRenderer   TitleRenderer
	callbackURLs    CallbackURLResolver
	hooks           *DeployHooks
	now             func() time.Time
}

type Option func(*deployerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *deployerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *deployerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *deployerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *deployerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *deployerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *deployerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *deployerBuilder) {
		b.credentialStore = store
	}
}

func WithOAuthStateStore(store OAuthStateStore) Option {
	return func(b *deployerBuilder) {
		b.oauthStateStore = store
	}
}

func WithOAuthProvider(provider OAuthProvider) Option {
	return func(b *deployerBuilder) {
		b.oauthProvider = provider
	}
}

func WithDeployClient(client DeployClient) Option {
	return func(b *deployerBuilder) {
		b.deployClient = client
	}
}

func WithSnapshotSource(source SnapshotSource) Option {
	return func(b *deployerBuilder) {
		b.snapshotSource = source
	}
}

func WithTitleRenderer(renderer TitleRenderer) Option {
	return func(b *deployerBuilder) {
		b.titleRenderer = renderer
	}
}

// WithCallbackURLResolver picks the redirect uri for authorization requests
// that do not carry one. The configured redirect url remains the fallback.
func WithCallbackURLResolver(resolver CallbackURLResolver) Option {
	return func(b *deployerBuilder) {
		b.callbackURLs = resolver
	}
}

func WithBeforeDeployHook(hook BeforeDeployHook) Option {
	return func(b *deployerBuilder) {
		if hook == nil {
			return
		}
		if b.hooks == nil {
			b.hooks = NewDeployHooks()
		}
		b.hooks.RegisterBefore(hook)
	}
}

func WithAfterDeployHook(hook AfterDeployHook) Option {
	return func(b *deployerBuilder) {
		if hook == nil {
			return
		}
		if b.hooks == nil {
			b.hooks = NewDeployHooks()
		}
		b.hooks.RegisterAfter(hook)
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *deployerBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

func defaultDeployerBuilder(runtime Config) deployerBuilder {
	loggerProvider, logger := glog.Resolve("deployer", nil, nil)
	return deployerBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     deployerErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		titleRenderer:   PassthroughTitleRenderer{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// StaticRawConfigLoader serves a fixed raw map, typically decoded from a
// config file.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	return NormalizeRawConfig(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}

	setString(layer, "driver_name", cfg.DriverName)
	setString(layer, "deploy_message", cfg.DeployMessage)
	setString(layer, "progress_label", cfg.ProgressLabel)
	setString(layer, "staging_dir", cfg.StagingDir)

	oauth := map[string]any{}
	setString(oauth, "client_id", cfg.OAuth.ClientID)
	setString(oauth, "client_secret", cfg.OAuth.ClientSecret)
	setString(oauth, "redirect_url", cfg.OAuth.RedirectURL)
	setString(oauth, "success_url", cfg.OAuth.SuccessURL)
	if includeZero || cfg.OAuth.StateTTL > 0 {
		oauth["state_ttl"] = cfg.OAuth.StateTTL
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}

	netlify := map[string]any{}
	setString(netlify, "api_url", cfg.Netlify.APIURL)
	setString(netlify, "auth_url", cfg.Netlify.AuthURL)
	setString(netlify, "token_url", cfg.Netlify.TokenURL)
	if len(netlify) > 0 {
		layer["netlify"] = netlify
	}

	if includeZero || len(cfg.Sites) > 0 {
		sites := make([]any, 0, len(cfg.Sites))
		for _, mapping := range cfg.Sites {
			sites = append(sites, map[string]any{
				"site_id":        mapping.SiteID,
				"target_site_id": mapping.TargetSiteID,
				"enabled":        mapping.Enabled,
			})
		}
		layer["sites"] = sites
	}
	return layer
}

// NormalizeRawConfig copies raw and converts textual durations such as
// "10m" into time.Duration values.
func NormalizeRawConfig(raw map[string]any) map[string]any {
	out := copyAnyMap(raw)
	oauth, ok := out["oauth"].(map[string]any)
	if !ok {
		return out
	}
	oauth = copyAnyMap(oauth)
	if value, ok := oauth["state_ttl"].(string); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			oauth["state_ttl"] = parsed
		}
	}
	out["oauth"] = oauth
	return out
}
