package netlify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/ratelimit"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/oauth2"
)

const (
	// Netlify's default page size for GET /sites.
	sitesPerPage         = 100
	maxSitePages         = 50
	maxErrorBodyBytes    = 4 << 10
	maxResponseBodyBytes = 4 << 20
	zipContentType       = "application/zip"
)

var (
	deploysBucket = ratelimit.Key{Driver: "netlify", Bucket: "deploys"}
	sitesBucket   = ratelimit.Key{Driver: "netlify", Bucket: "sites"}
)

// Client talks to the Netlify REST API with a caller supplied token.
type Client struct {
	apiURL     *url.URL
	httpClient *http.Client
	logger     core.Logger
	limits     *ratelimit.AdaptivePolicy
}

type deployResponse struct {
	ID           string `json:"id"`
	SiteID       string `json:"site_id"`
	State        string `json:"state"`
	Title        string `json:"title"`
	DeployURL    string `json:"deploy_url"`
	DeploySSLURL string `json:"deploy_ssl_url"`
}

type siteResponse struct {
	ID     string `json:"id"`
	SiteID string `json:"site_id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	SSLURL string `json:"ssl_url"`
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	apiURL, err := normalizeAPIURL(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	limits := cfg.RateLimit
	if limits == nil {
		limits = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	}
	return &Client{
		apiURL:     apiURL,
		httpClient: cfg.HTTPClient,
		logger:     logger,
		limits:     limits,
	}, nil
}

// Deploy uploads the zip archive as a new deploy of the target site. Any
// transport failure or non-2xx response is a deploy error naming the site.
func (c *Client) Deploy(ctx context.Context, req core.UploadRequest) (core.DeployRecord, error) {
	if c == nil {
		return core.DeployRecord{}, fmt.Errorf("netlify: client is nil")
	}
	targetSiteID := strings.TrimSpace(req.TargetSiteID)
	record, err := c.deploy(ctx, req)
	if err != nil {
		deployErr := core.NewDeployError(err, targetSiteID)
		var throttled ratelimit.ThrottledError
		if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
			if deployErr.Metadata == nil {
				deployErr.Metadata = map[string]any{}
			}
			deployErr.Metadata[core.MetadataRetryAfterMS] = throttled.RetryAfter.Milliseconds()
		}
		return core.DeployRecord{}, deployErr
	}
	return record, nil
}

func (c *Client) deploy(ctx context.Context, req core.UploadRequest) (core.DeployRecord, error) {
	if req.Token.IsZero() {
		return core.DeployRecord{}, fmt.Errorf("netlify: access token is required")
	}
	ep, err := c.deployEndpoint(req.TargetSiteID, DeployQuery{Title: req.Title})
	if err != nil {
		return core.DeployRecord{}, err
	}

	archive, err := os.Open(req.ArchivePath)
	if err != nil {
		return core.DeployRecord{}, fmt.Errorf("netlify: open archive: %w", err)
	}
	defer archive.Close()
	info, err := archive.Stat()
	if err != nil {
		return core.DeployRecord{}, fmt.Errorf("netlify: stat archive: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.String(), archive)
	if err != nil {
		return core.DeployRecord{}, fmt.Errorf("netlify: build deploy request: %w", err)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set("Content-Type", zipContentType)
	httpReq.Header.Set("Accept", "application/json")

	if err := c.limits.BeforeCall(ctx, deploysBucket); err != nil {
		return core.DeployRecord{}, err
	}
	c.logger.Debug("netlify deploy upload", "target_site_id", req.TargetSiteID, "bytes", info.Size())
	resp, err := c.authorizedClient(ctx, req.Token).Do(httpReq)
	if err != nil {
		return core.DeployRecord{}, fmt.Errorf("netlify: deploy request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkResponse(ctx, deploysBucket, resp); err != nil {
		return core.DeployRecord{}, err
	}

	payload := deployResponse{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&payload); err != nil && err != io.EOF {
		return core.DeployRecord{}, fmt.Errorf("netlify: decode deploy response: %w", err)
	}
	return core.DeployRecord{
		ID:           payload.ID,
		SiteID:       firstNonEmpty(payload.SiteID, req.TargetSiteID),
		State:        payload.State,
		Title:        firstNonEmpty(payload.Title, req.Title),
		DeployURL:    payload.DeployURL,
		DeploySSLURL: payload.DeploySSLURL,
	}, nil
}

// ListSites pages through every site the token can see. The first request is
// the bare GET /sites?access_token=...; later pages add page and per_page.
func (c *Client) ListSites(ctx context.Context, token core.AccessToken) ([]core.TargetSite, error) {
	if c == nil {
		return nil, fmt.Errorf("netlify: client is nil")
	}
	sites := make([]core.TargetSite, 0)
	for page := 1; page <= maxSitePages; page++ {
		batch, err := c.listSitesPage(ctx, token, page)
		if err != nil {
			return nil, err
		}
		sites = append(sites, batch...)
		if len(batch) < sitesPerPage {
			break
		}
	}
	return sites, nil
}

func (c *Client) listSitesPage(ctx context.Context, token core.AccessToken, page int) ([]core.TargetSite, error) {
	opts := SitesQuery{AccessToken: strings.TrimSpace(token.AccessToken)}
	if page > 1 {
		opts.Page = page
		opts.PerPage = sitesPerPage
	}
	ep, err := c.sitesEndpoint(opts)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("netlify: build sites request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	if err := c.limits.BeforeCall(ctx, sitesBucket); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("netlify: sites request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkResponse(ctx, sitesBucket, resp); err != nil {
		return nil, err
	}

	payload := []siteResponse{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("netlify: decode sites response: %w", err)
	}
	sites := make([]core.TargetSite, 0, len(payload))
	for _, site := range payload {
		sites = append(sites, core.TargetSite{
			ID:   firstNonEmpty(site.SiteID, site.ID),
			Name: site.Name,
			URL:  firstNonEmpty(site.URL, site.SSLURL),
		})
	}
	return sites, nil
}

func (c *Client) authorizedClient(ctx context.Context, token core.AccessToken) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(oauth2Token(token)))
}

// checkResponse records rate-limit headers and turns non-2xx responses into
// errors. A 429 surfaces as ratelimit.ThrottledError.
func (c *Client) checkResponse(ctx context.Context, bucket ratelimit.Key, resp *http.Response) error {
	if err := c.limits.AfterCall(ctx, bucket, ratelimit.ResponseMeta{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}); err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("netlify: unexpected status %d: %s", resp.StatusCode, message)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
