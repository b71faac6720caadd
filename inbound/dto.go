package inbound

import "github.com/goliatone/go-deployer/core"

type deployRequestBody struct {
	SiteURIs []core.SiteURI `json:"site_uris"`
}

type deployRecordDTO struct {
	TargetSiteID string `json:"target_site_id"`
	Files        int    `json:"files"`
	DeployID     string `json:"deploy_id,omitempty"`
	State        string `json:"state,omitempty"`
	DeployURL    string `json:"deploy_url,omitempty"`
}

type skipDTO struct {
	TargetSiteID string `json:"target_site_id,omitempty"`
	SiteID       string `json:"site_id,omitempty"`
	Path         string `json:"path,omitempty"`
	Reason       string `json:"reason"`
	Error        string `json:"error,omitempty"`
}

// RunReportResponse is the JSON shape of a deploy run.
type RunReportResponse struct {
	RunID     string            `json:"run_id"`
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Written   int               `json:"written"`
	Deploys   []deployRecordDTO `json:"deploys"`
	Skips     []skipDTO         `json:"skips"`
	Errors    []errorPayload    `json:"errors,omitempty"`
}

func newRunReportResponse(report core.RunReport) RunReportResponse {
	out := RunReportResponse{
		RunID:     report.RunID,
		Total:     report.Total,
		Processed: report.Processed,
		Written:   report.Written,
		Deploys:   make([]deployRecordDTO, 0, len(report.Deploys)),
		Skips:     make([]skipDTO, 0, len(report.Skips)),
	}
	for _, deploy := range report.Deploys {
		out.Deploys = append(out.Deploys, deployRecordDTO{
			TargetSiteID: deploy.TargetSiteID,
			Files:        deploy.Files,
			DeployID:     deploy.Record.ID,
			State:        deploy.Record.State,
			DeployURL:    firstNonEmpty(deploy.Record.DeploySSLURL, deploy.Record.DeployURL),
		})
	}
	for _, skip := range report.Skips {
		item := skipDTO{
			TargetSiteID: skip.TargetSiteID,
			SiteID:       skip.SiteURI.SiteID,
			Path:         skip.SiteURI.Path,
			Reason:       string(skip.Reason),
		}
		if skip.Err != nil {
			item.Error = skip.Err.Error()
		}
		out.Skips = append(out.Skips, item)
	}
	for _, err := range report.Errors {
		out.Errors = append(out.Errors, errorPayloadFor(err))
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
