package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Deployer owns the current access token and runs deploys with it. The token
// is loaded once at construction and only replaced by a completed
// authorization.
type Deployer struct {
	config          Config
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

	mu    sync.RWMutex
	token AccessToken
	// issued states awaiting a callback, by expiry
	pending map[string]time.Time
}

type DeployerDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	CredentialStore CredentialStore
	OAuthStateStore OAuthStateStore
	OAuthProvider   OAuthProvider
	DeployClient    DeployClient
	SnapshotSource  SnapshotSource
	TitleRenderer   TitleRenderer
	CallbackURLs    CallbackURLResolver
	Hooks           *DeployHooks
}

func NewDeployer(cfg Config, opts ...Option) (*Deployer, error) {
	builder := defaultDeployerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("deployer", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("deployer"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = deployerErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.titleRenderer == nil {
		builder.titleRenderer = PassthroughTitleRenderer{}
	}
	if builder.hooks == nil {
		builder.hooks = NewDeployHooks()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.credentialStore == nil {
		builder.credentialStore = NewMemoryCredentialStore()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(finalConfig.stateTTL())
	}

	deployer := &Deployer{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		credentialStore: builder.credentialStore,
		oauthStateStore: builder.oauthStateStore,
		oauthProvider:   builder.oauthProvider,
		deployClient:    builder.deployClient,
		snapshotSource:  builder.snapshotSource,
		titleRenderer:   builder.titleRenderer,
		callbackURLs:    builder.callbackURLs,
		hooks:           builder.hooks,
		now:             builder.now,
	}
	if err := deployer.Reload(context.Background()); err != nil {
		return nil, err
	}
	return deployer, nil
}

func Setup(cfg Config, opts ...Option) (*Deployer, error) {
	return NewDeployer(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (d *Deployer) Config() Config {
	if d == nil {
		return Config{}
	}
	return d.config
}

func (d *Deployer) Dependencies() DeployerDependencies {
	if d == nil {
		return DeployerDependencies{}
	}
	return DeployerDependencies{
		Logger:          d.logger,
		LoggerProvider:  d.loggerProvider,
		MetricsRecorder: d.metricsRecorder,
		ErrorMapper:     d.errorMapper,
		ConfigProvider:  d.configProvider,
		OptionsResolver: d.optionsResolver,
		CredentialStore: d.credentialStore,
		OAuthStateStore: d.oauthStateStore,
		OAuthProvider:   d.oauthProvider,
		DeployClient:    d.deployClient,
		SnapshotSource:  d.snapshotSource,
		TitleRenderer:   d.titleRenderer,
		CallbackURLs:    d.callbackURLs,
		Hooks:           d.hooks,
	}
}

// Reload replaces the in-memory token with the persisted one. A missing
// record leaves the deployer unauthenticated.
func (d *Deployer) Reload(ctx context.Context) error {
	if d == nil || d.credentialStore == nil {
		return nil
	}
	token, found, err := d.credentialStore.Load(ctx)
	if err != nil {
		return d.mapError(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !found {
		d.token = AccessToken{}
		return nil
	}
	d.token = token.Clone()
	return nil
}

// Token returns a copy of the current access token.
func (d *Deployer) Token() AccessToken {
	if d == nil {
		return AccessToken{}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token.Clone()
}

func (d *Deployer) IsAuthorized() bool {
	return !d.Token().IsZero()
}

func (d *Deployer) AuthState() AuthState {
	if d == nil {
		return AuthStateUnauthenticated
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case !d.token.IsZero():
		return AuthStateAuthenticated
	case d.awaitingCallback(d.now()):
		return AuthStateAwaitingCallback
	default:
		return AuthStateUnauthenticated
	}
}

// AuthorizationStatus describes the current credential without exposing it.
func (d *Deployer) AuthorizationStatus() AuthorizationResult {
	token := d.Token()
	result := AuthorizationResult{State: d.AuthState()}
	if !token.IsZero() {
		result.TokenType = token.Type()
		result.ExpiresAt = token.ExpiresAt
	}
	return result
}

func (d *Deployer) BeginAuthorization(ctx context.Context, req BeginAuthorizationRequest) (response BeginAuthorizationResponse, err error) {
	startedAt := d.now()
	fields := map[string]any{"session_id_set": strings.TrimSpace(req.SessionID) != ""}
	defer func() {
		d.observeOperation(ctx, startedAt, "begin_authorization", err, fields)
	}()

	if d.oauthProvider == nil {
		err = d.mapError(fmt.Errorf("core: oauth provider is not configured"))
		return BeginAuthorizationResponse{}, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		err = d.mapError(goerrors.NewValidation("core: session id is required",
			goerrors.FieldError{Field: "session_id", Message: "required"}))
		return BeginAuthorizationResponse{}, err
	}
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" && d.callbackURLs != nil {
		redirectURI, err = d.callbackURLs.ResolveCallbackURL(ctx, CallbackURLResolveRequest{
			SessionID: sessionID,
			Driver:    d.config.DriverName,
		})
		if err != nil {
			err = d.mapError(err)
			return BeginAuthorizationResponse{}, err
		}
	}
	if redirectURI == "" {
		redirectURI = d.config.ResolvedOAuth().RedirectURL
	}

	state, err := generateOAuthState()
	if err != nil {
		err = d.mapError(err)
		return BeginAuthorizationResponse{}, err
	}
	url, err := d.oauthProvider.AuthorizationURL(state, redirectURI)
	if err != nil {
		err = d.mapError(err)
		return BeginAuthorizationResponse{}, err
	}
	createdAt := d.now()
	if err = d.oauthStateStore.Save(ctx, OAuthStateRecord{
		State:       state,
		SessionID:   sessionID,
		RedirectURI: redirectURI,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(d.config.stateTTL()),
	}); err != nil {
		err = d.mapError(err)
		return BeginAuthorizationResponse{}, err
	}

	d.trackPending(state, createdAt.Add(d.config.stateTTL()))

	return BeginAuthorizationResponse{URL: url, State: state}, nil
}

// CompleteAuthorization checks the callback state before anything else: a
// missing, unknown, expired or foreign state fails with an authorization
// error even when the code is valid.
func (d *Deployer) CompleteAuthorization(ctx context.Context, req CompleteAuthorizationRequest) (result AuthorizationResult, err error) {
	startedAt := d.now()
	defer func() {
		d.observeOperation(ctx, startedAt, "complete_authorization", err, map[string]any{
			"auth_state": string(d.AuthState()),
		})
	}()

	record, err := d.validateCallbackState(ctx, req)
	if err != nil {
		err = NewAuthorizationError(err.Error())
		return AuthorizationResult{}, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = d.mapError(goerrors.NewValidation("core: authorization code is required",
			goerrors.FieldError{Field: "code", Message: "required"}))
		return AuthorizationResult{}, err
	}
	if d.oauthProvider == nil {
		err = d.mapError(fmt.Errorf("core: oauth provider is not configured"))
		return AuthorizationResult{}, err
	}

	token, err := d.oauthProvider.Exchange(ctx, code, record.RedirectURI)
	if err != nil {
		if !IsTokenExchangeError(err) {
			err = NewTokenExchangeError(err)
		}
		return AuthorizationResult{}, err
	}
	if token.IsZero() {
		err = NewTokenExchangeError(fmt.Errorf("core: provider returned an empty access token"))
		return AuthorizationResult{}, err
	}
	if err = d.credentialStore.Save(ctx, token); err != nil {
		err = d.mapError(err)
		return AuthorizationResult{}, err
	}

	d.mu.Lock()
	d.token = token.Clone()
	d.mu.Unlock()

	return AuthorizationResult{
		State:     AuthStateAuthenticated,
		TokenType: token.Type(),
		ExpiresAt: cloneTimePointer(token.ExpiresAt),
	}, nil
}

func (d *Deployer) validateCallbackState(ctx context.Context, req CompleteAuthorizationRequest) (OAuthStateRecord, error) {
	state := strings.TrimSpace(req.State)
	if state == "" {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth callback state is required")
	}
	record, err := d.oauthStateStore.Consume(ctx, state)
	if err != nil {
		return OAuthStateRecord{}, err
	}
	// consumed either way, so a mismatched state cannot be replayed
	d.settlePending(state)
	if strings.TrimSpace(record.SessionID) != strings.TrimSpace(req.SessionID) {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth callback state session mismatch")
	}
	return record, nil
}

// awaitingCallback reports whether an issued state is still inside its TTL.
// Callers hold d.mu.
func (d *Deployer) awaitingCallback(now time.Time) bool {
	for _, expiresAt := range d.pending {
		if now.Before(expiresAt) {
			return true
		}
	}
	return false
}

func (d *Deployer) trackPending(state string, expiresAt time.Time) {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		d.pending = map[string]time.Time{}
	}
	for issued, expiry := range d.pending {
		if !now.Before(expiry) {
			delete(d.pending, issued)
		}
	}
	d.pending[state] = expiresAt
}

func (d *Deployer) settlePending(state string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, state)
}

// Deploy stages and uploads req.SiteURIs with the current token. Per-batch
// deploy failures are returned joined, next to a complete report.
func (d *Deployer) Deploy(ctx context.Context, req DeployRequest) (report RunReport, err error) {
	startedAt := d.now()
	runID := uuid.NewString()
	fields := map[string]any{"run_id": runID, "site_uris": len(req.SiteURIs)}
	defer func() {
		d.observeRun(ctx, startedAt, report, err, fields)
	}()

	token := d.Token()
	if token.IsZero() {
		err = NewNotAuthorizedError()
		return RunReport{RunID: runID}, err
	}
	if token.Expired(d.now()) {
		d.logWarn(ctx, "access token has expired; deploying anyway", map[string]any{"run_id": runID})
	}

	event := DeployEvent{
		RunID:    runID,
		SiteURIs: append([]SiteURI(nil), req.SiteURIs...),
		Batches:  BuildBatches(req.SiteURIs, d.config.Sites),
	}
	if err = d.hooks.ExecuteBefore(ctx, event); err != nil {
		err = NewRunAbortedError(err)
		return RunReport{RunID: runID, Total: event.Batches.Total}, err
	}

	orchestrator := &Orchestrator{
		Table:         d.config.Sites,
		Source:        d.snapshotSource,
		Client:        d.deployClient,
		Titles:        d.titleRenderer,
		DeployMessage: d.config.DeployMessage,
		ProgressLabel: d.config.ProgressLabel,
		StagingRoot:   d.config.StagingDir,
		Logger:        d.logger,
	}
	report, err = orchestrator.Run(ctx, runID, token, req.SiteURIs, req.Progress)

	if hookErr := d.hooks.ExecuteAfter(ctx, event, report); hookErr != nil {
		d.logWarn(ctx, "after-deploy hooks failed", map[string]any{"run_id": runID, "error": hookErr.Error()})
	}
	return report, err
}

// SiteOptions lists the provider sites as select options. The first option is
// always "None"; without a token it is the only one.
func (d *Deployer) SiteOptions(ctx context.Context) (options []SiteOption, err error) {
	startedAt := d.now()
	defer func() {
		d.observeOperation(ctx, startedAt, "site_options", err, map[string]any{"options": len(options)})
	}()

	options = []SiteOption{{Label: "None", Value: ""}}
	token := d.Token()
	if token.IsZero() || d.deployClient == nil {
		return options, nil
	}
	sites, err := d.deployClient.ListSites(ctx, token)
	if err != nil {
		err = d.mapError(err)
		return options, err
	}
	for _, site := range sites {
		label := strings.TrimSpace(site.Name)
		if url := strings.TrimSpace(site.URL); url != "" {
			label = label + " (" + url + ")"
		}
		options = append(options, SiteOption{Label: label, Value: site.ID})
	}
	return options, nil
}

func (d *Deployer) mapError(err error) error {
	if err == nil {
		return nil
	}
	if d == nil || d.errorMapper == nil {
		return err
	}
	mapped := d.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
