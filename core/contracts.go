package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore persists the single access token owned by a deployer
// identity. A missing token is reported as (zero, false, nil).
type CredentialStore interface {
	Load(ctx context.Context) (AccessToken, bool, error)
	Save(ctx context.Context, token AccessToken) error
}

type OAuthProvider interface {
	AuthorizationURL(state string, redirectURI string) (string, error)
	Exchange(ctx context.Context, code string, redirectURI string) (AccessToken, error)
}

// SnapshotSource returns rendered page content; empty content means the page
// is not cached and is skipped.
type SnapshotSource interface {
	Get(ctx context.Context, uri SiteURI) ([]byte, error)
}

type DeployClient interface {
	Deploy(ctx context.Context, req UploadRequest) (DeployRecord, error)
	ListSites(ctx context.Context, token AccessToken) ([]TargetSite, error)
}

// TitleRenderer expands the configured deploy message into a deploy title.
type TitleRenderer interface {
	Render(ctx context.Context, message string) (string, error)
}

type TitleRendererFunc func(ctx context.Context, message string) (string, error)

func (f TitleRendererFunc) Render(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

type PassthroughTitleRenderer struct{}

func (PassthroughTitleRenderer) Render(_ context.Context, message string) (string, error) {
	return message, nil
}

// ProgressFunc receives (completed, total, message). It is called
// synchronously and must not block for long.
type ProgressFunc func(count int, total int, message string)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type AuthorizationService interface {
	BeginAuthorization(ctx context.Context, req BeginAuthorizationRequest) (BeginAuthorizationResponse, error)
	CompleteAuthorization(ctx context.Context, req CompleteAuthorizationRequest) (AuthorizationResult, error)
	AuthState() AuthState
	IsAuthorized() bool
}

type DeployService interface {
	Deploy(ctx context.Context, req DeployRequest) (RunReport, error)
	SiteOptions(ctx context.Context) ([]SiteOption, error)
}

// TokenCipher seals credential payloads before they reach storage.
type TokenCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	KeyID() string
	Version() int
}
