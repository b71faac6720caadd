package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-deployer/core"
)

const (
	TypeDeploy                = "deployer.command.deploy"
	TypeBeginAuthorization    = "deployer.command.authorization.begin"
	TypeCompleteAuthorization = "deployer.command.authorization.complete"
)

// DeployMessage asks for the given site URIs to be deployed. An empty list is
// a valid run with nothing to deploy.
type DeployMessage struct {
	SiteURIs []core.SiteURI    `json:"site_uris"`
	Progress core.ProgressFunc `json:"-"`
}

func (DeployMessage) Type() string { return TypeDeploy }

func (m DeployMessage) Validate() error {
	for i, uri := range m.SiteURIs {
		if err := uri.Validate(); err != nil {
			return commandValidationError(fmt.Sprintf("site_uris[%d].site_id", i), "site id is required")
		}
	}
	return nil
}

type BeginAuthorizationMessage struct {
	Request core.BeginAuthorizationRequest
}

func (BeginAuthorizationMessage) Type() string { return TypeBeginAuthorization }

func (m BeginAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Request.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}

// CompleteAuthorizationMessage carries the provider callback. The code is not
// checked here: a callback with a bad state must fail as an authorization
// error whatever the code.
type CompleteAuthorizationMessage struct {
	Request core.CompleteAuthorizationRequest
}

func (CompleteAuthorizationMessage) Type() string { return TypeCompleteAuthorization }

func (m CompleteAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Request.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}
