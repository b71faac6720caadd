package netlify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// DeployQuery is sent with the zip upload.
// https://docs.netlify.com/api/get-started/#zip-file-method
type DeployQuery struct {
	Title string `url:"title,omitempty"`
}

// SitesQuery lists the sites visible to the token owner.
type SitesQuery struct {
	AccessToken string `url:"access_token"`
	Page        int    `url:"page,omitempty"`
	PerPage     int    `url:"per_page,omitempty"`
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	return c.apiURL.ResolveReference(ref), nil
}

func (c *Client) deployEndpoint(siteID string, opts DeployQuery) (*url.URL, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return nil, fmt.Errorf("netlify: please provide a target site id to deploy to")
	}

	ep, err := c.resolveEndpoint("sites/" + url.PathEscape(siteID) + "/deploys")
	if err != nil {
		return nil, fmt.Errorf("netlify: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("netlify: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

func (c *Client) sitesEndpoint(opts SitesQuery) (*url.URL, error) {
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, fmt.Errorf("netlify: please provide an access token to list sites")
	}

	ep, err := c.resolveEndpoint("sites")
	if err != nil {
		return nil, fmt.Errorf("netlify: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("netlify: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// normalizeAPIURL makes sure relative paths resolve below the version prefix.
func normalizeAPIURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = APIURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("netlify: invalid api url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("netlify: api url %q must be absolute", raw)
	}
	return parsed, nil
}
