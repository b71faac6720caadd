package gojob

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-deployer/core"
	"github.com/google/uuid"

	job "github.com/goliatone/go-job"
)

const (
	JobIDDeploy      = "deployer.deploy"
	ScriptPathDeploy = "deployer.deploy"

	paramSiteURIs      = "site_uris"
	paramPriorAttempts = "prior_attempts"
)

// DeployJob is the payload carried by a deployer.deploy execution message.
// PriorAttempts counts the deliveries spent on the failed batches a retry job
// was split from.
type DeployJob struct {
	SiteURIs       []core.SiteURI
	IdempotencyKey string
	DedupPolicy    string
	PriorAttempts  int
}

// NewDeployJobMessage builds the go-job message for one deploy run. An empty
// idempotency key is derived from the sorted site uris so that duplicate
// enqueues of the same page set collapse.
func NewDeployJobMessage(deployJob DeployJob) (*job.ExecutionMessage, error) {
	if len(deployJob.SiteURIs) == 0 {
		return nil, fmt.Errorf("gojob: at least one site uri is required")
	}
	entries := make([]any, 0, len(deployJob.SiteURIs))
	for i, uri := range deployJob.SiteURIs {
		if err := uri.Validate(); err != nil {
			return nil, fmt.Errorf("gojob: site_uris[%d]: %w", i, err)
		}
		entries = append(entries, map[string]any{
			"site_id": strings.TrimSpace(uri.SiteID),
			"path":    uri.Path,
		})
	}
	key := strings.TrimSpace(deployJob.IdempotencyKey)
	if key == "" {
		key = DeployIdempotencyKey(deployJob.SiteURIs)
	}
	params := map[string]any{paramSiteURIs: entries}
	if deployJob.PriorAttempts > 0 {
		params[paramPriorAttempts] = deployJob.PriorAttempts
	}
	return &job.ExecutionMessage{
		JobID:          JobIDDeploy,
		ScriptPath:     ScriptPathDeploy,
		Parameters:     params,
		IdempotencyKey: key,
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(deployJob.DedupPolicy)),
	}, nil
}

// DecodeDeployJob reads a deploy payload back from an execution message.
// Parameters may arrive as decoded JSON or as the typed values set locally.
func DecodeDeployJob(msg *job.ExecutionMessage) (DeployJob, error) {
	if msg == nil {
		return DeployJob{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDDeploy {
		return DeployJob{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	raw, ok := msg.Parameters[paramSiteURIs]
	if !ok {
		return DeployJob{}, fmt.Errorf("gojob: %s parameter is required", paramSiteURIs)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return DeployJob{}, fmt.Errorf("gojob: encode %s: %w", paramSiteURIs, err)
	}
	var uris []core.SiteURI
	if err := json.Unmarshal(encoded, &uris); err != nil {
		return DeployJob{}, fmt.Errorf("gojob: invalid %s parameter: %w", paramSiteURIs, err)
	}
	for i, uri := range uris {
		if err := uri.Validate(); err != nil {
			return DeployJob{}, fmt.Errorf("gojob: site_uris[%d]: %w", i, err)
		}
	}
	prior, err := priorAttempts(msg.Parameters[paramPriorAttempts])
	if err != nil {
		return DeployJob{}, err
	}
	return DeployJob{
		SiteURIs:       uris,
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
		PriorAttempts:  prior,
	}, nil
}

func priorAttempts(raw any) (int, error) {
	var value int
	switch typed := raw.(type) {
	case nil:
		return 0, nil
	case int:
		value = typed
	case int64:
		value = int(typed)
	case float64:
		value = int(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, fmt.Errorf("gojob: invalid %s parameter: %w", paramPriorAttempts, err)
		}
		value = int(parsed)
	default:
		return 0, fmt.Errorf("gojob: invalid %s parameter %T", paramPriorAttempts, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("gojob: %s must not be negative", paramPriorAttempts)
	}
	return value, nil
}

// DeployIdempotencyKey is stable for a set of site uris regardless of order.
func DeployIdempotencyKey(uris []core.SiteURI) string {
	keys := make([]string, 0, len(uris))
	for _, uri := range uris {
		keys = append(keys, uri.String())
	}
	sort.Strings(keys)
	return JobIDDeploy + ":" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(keys, "\n"))).String()
}
