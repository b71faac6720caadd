package core

import "strings"

// BuildBatches groups SiteURIs by the target site their owning site maps to.
// Batches follow mapping-table order and SiteURIs keep their input order.
// URIs of unmapped or disabled sites are dropped.
func BuildBatches(siteURIs []SiteURI, table SiteMappingTable) Batches {
	byTarget := map[string][]SiteURI{}
	for _, uri := range siteURIs {
		targetID, ok := table.Resolve(uri.SiteID)
		if !ok {
			continue
		}
		byTarget[targetID] = append(byTarget[targetID], uri)
	}

	batches := Batches{Items: make([]DeployBatch, 0, len(byTarget))}
	emitted := map[string]struct{}{}
	for _, mapping := range table {
		if !mapping.Deployable() {
			continue
		}
		targetID := strings.TrimSpace(mapping.TargetSiteID)
		if _, done := emitted[targetID]; done {
			continue
		}
		uris, ok := byTarget[targetID]
		if !ok {
			continue
		}
		emitted[targetID] = struct{}{}
		batches.Items = append(batches.Items, DeployBatch{
			TargetSiteID: targetID,
			SiteURIs:     uris,
		})
		batches.Total += len(uris)
	}
	return batches
}

// DroppedSiteURIs returns the URIs BuildBatches would discard.
func DroppedSiteURIs(siteURIs []SiteURI, table SiteMappingTable) []SiteURI {
	dropped := make([]SiteURI, 0)
	for _, uri := range siteURIs {
		if _, ok := table.Resolve(uri.SiteID); !ok {
			dropped = append(dropped, uri)
		}
	}
	return dropped
}
