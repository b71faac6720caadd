package query

const (
	TypeAuthorizationStatus = "deployer.query.authorization.status"
	TypeListTargetSites     = "deployer.query.target_sites.list"
)

type AuthorizationStatusMessage struct{}

func (AuthorizationStatusMessage) Type() string { return TypeAuthorizationStatus }

func (AuthorizationStatusMessage) Validate() error { return nil }

// ListTargetSitesMessage lists the provider sites as select options, led by
// a None entry.
type ListTargetSitesMessage struct{}

func (ListTargetSitesMessage) Type() string { return TypeListTargetSites }

func (ListTargetSitesMessage) Validate() error { return nil }
