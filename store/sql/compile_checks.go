package sqlstore

import "github.com/goliatone/go-deployer/core"

var (
	_ core.CredentialStore  = (*CredentialStore)(nil)
	_ core.CredentialStore  = (*CachedCredentialStore)(nil)
	_ DriverCredentialStore = (*CredentialStore)(nil)
	_ DriverCredentialStore = (*CachedCredentialStore)(nil)
	_ core.OAuthStateStore  = (*OAuthStateStore)(nil)
)
