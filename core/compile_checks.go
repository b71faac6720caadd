package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ AuthorizationService = (*Deployer)(nil)
	_ DeployService        = (*Deployer)(nil)
	_ CredentialStore      = (*MemoryCredentialStore)(nil)
	_ OAuthStateStore      = (*MemoryOAuthStateStore)(nil)
	_ CredentialCodec      = JSONCredentialCodec{}
	_ TitleRenderer        = PassthroughTitleRenderer{}
	_ TitleRenderer        = TitleRendererFunc(nil)
	_ BeforeDeployHook     = BeforeDeployHookFunc{}
	_ AfterDeployHook      = AfterDeployHookFunc{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
