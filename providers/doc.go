// Package providers holds the hosting-provider integrations. Each
// subpackage implements core.OAuthProvider and core.DeployClient for one
// provider.
package providers
