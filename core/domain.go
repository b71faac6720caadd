package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSiteURI     = errors.New("core: invalid site uri")
	ErrInvalidSiteMapping = errors.New("core: invalid site mapping")
)

type AuthState string

const (
	AuthStateUnauthenticated  AuthState = "unauthenticated"
	AuthStateAwaitingCallback AuthState = "awaiting_callback"
	AuthStateAuthenticated    AuthState = "authenticated"
)

// AccessToken is the bearer credential issued by the provider. It is opaque
// to everything except the credential store and the deploy client.
type AccessToken struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    *time.Time
	Extra        map[string]any
}

func (t AccessToken) IsZero() bool {
	return strings.TrimSpace(t.AccessToken) == ""
}

func (t AccessToken) Expired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

func (t AccessToken) Type() string {
	normalized := strings.ToLower(strings.TrimSpace(t.TokenType))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func (t AccessToken) Clone() AccessToken {
	cloned := t
	cloned.ExpiresAt = cloneTimePointer(t.ExpiresAt)
	cloned.Extra = copyAnyMap(t.Extra)
	return cloned
}

// SiteURI identifies one cached page by its owning site and path.
type SiteURI struct {
	SiteID string `json:"site_id"`
	Path   string `json:"path"`
}

func (u SiteURI) Validate() error {
	if strings.TrimSpace(u.SiteID) == "" {
		return fmt.Errorf("%w: site id is required", ErrInvalidSiteURI)
	}
	return nil
}

func (u SiteURI) String() string {
	return strings.TrimSpace(u.SiteID) + ":" + u.Path
}

// SiteMapping binds an internal site to a site on the hosting provider.
type SiteMapping struct {
	SiteID       string `koanf:"site_id" mapstructure:"site_id" yaml:"site_id" json:"site_id"`
	TargetSiteID string `koanf:"target_site_id" mapstructure:"target_site_id" yaml:"target_site_id" json:"target_site_id"`
	Enabled      bool   `koanf:"enabled" mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

func (m SiteMapping) Deployable() bool {
	return m.Enabled && strings.TrimSpace(m.SiteID) != "" && strings.TrimSpace(m.TargetSiteID) != ""
}

// SiteMappingTable is ordered; batches are produced in table order.
type SiteMappingTable []SiteMapping

func (t SiteMappingTable) Resolve(siteID string) (string, bool) {
	siteID = strings.TrimSpace(siteID)
	for _, mapping := range t {
		if strings.TrimSpace(mapping.SiteID) != siteID {
			continue
		}
		if !mapping.Deployable() {
			return "", false
		}
		return strings.TrimSpace(mapping.TargetSiteID), true
	}
	return "", false
}

func (t SiteMappingTable) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for i, mapping := range t {
		siteID := strings.TrimSpace(mapping.SiteID)
		if siteID == "" {
			return fmt.Errorf("%w: sites[%d] site_id is required", ErrInvalidSiteMapping, i)
		}
		if _, ok := seen[siteID]; ok {
			return fmt.Errorf("%w: duplicate site_id %q", ErrInvalidSiteMapping, siteID)
		}
		seen[siteID] = struct{}{}
	}
	return nil
}

type DeployBatch struct {
	TargetSiteID string
	SiteURIs     []SiteURI
}

type Batches struct {
	Items []DeployBatch
	Total int
}

type Bundle struct {
	TargetSiteID string
	StagingDir   string
	ArchivePath  string
	Files        []string
	Skips        []SkippedItem
}

func (b Bundle) Empty() bool {
	return len(b.Files) == 0
}

type TargetSite struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SiteOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type DeployRecord struct {
	ID           string `json:"id"`
	SiteID       string `json:"site_id"`
	State        string `json:"state"`
	Title        string `json:"title"`
	DeployURL    string `json:"deploy_url"`
	DeploySSLURL string `json:"deploy_ssl_url"`
}

type DeployResult struct {
	TargetSiteID string
	Files        int
	Record       DeployRecord
}

type SkipReason string

const (
	SkipReasonEmptySnapshot   SkipReason = "empty_snapshot"
	SkipReasonSnapshotFailed  SkipReason = "snapshot_failed"
	SkipReasonFileWriteFailed SkipReason = "file_write_failed"
	SkipReasonDuplicatePath   SkipReason = "duplicate_path"
	SkipReasonEmptyBundle     SkipReason = "empty_bundle"
	SkipReasonUnmappedSite    SkipReason = "unmapped_site"
)

type SkippedItem struct {
	TargetSiteID string
	SiteURI      SiteURI
	Reason       SkipReason
	Err          error
}

// RunReport summarises one orchestrator run. Errors holds per-batch failures;
// the run itself never stops on them. Failed lists the batches behind those
// errors so a retry can target them alone.
type RunReport struct {
	RunID     string
	Total     int
	Processed int
	Written   int
	Deploys   []DeployResult
	Skips     []SkippedItem
	Failed    []DeployBatch
	Errors    []error
}

func (r RunReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return errors.Join(r.Errors...)
}

func (r RunReport) Succeeded() bool {
	return len(r.Errors) == 0
}

// FailedSiteURIs flattens the failed batches in run order.
func (r RunReport) FailedSiteURIs() []SiteURI {
	var out []SiteURI
	for _, batch := range r.Failed {
		out = append(out, batch.SiteURIs...)
	}
	return out
}

type BeginAuthorizationRequest struct {
	SessionID   string
	RedirectURI string
}

type BeginAuthorizationResponse struct {
	URL   string
	State string
}

type CompleteAuthorizationRequest struct {
	SessionID string
	Code      string
	State     string
}

type AuthorizationResult struct {
	State     AuthState  `json:"state"`
	TokenType string     `json:"token_type,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type DeployRequest struct {
	SiteURIs []SiteURI
	Progress ProgressFunc
}

type UploadRequest struct {
	ArchivePath  string
	TargetSiteID string
	Title        string
	Token        AccessToken
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
