package query

import (
	"context"

	"github.com/goliatone/go-deployer/core"
)

type AuthorizationStatusReader interface {
	AuthorizationStatus() core.AuthorizationResult
}

type SiteOptionsReader interface {
	SiteOptions(ctx context.Context) ([]core.SiteOption, error)
}

type AuthorizationStatusQuery struct {
	reader AuthorizationStatusReader
}

func NewAuthorizationStatusQuery(reader AuthorizationStatusReader) *AuthorizationStatusQuery {
	return &AuthorizationStatusQuery{reader: reader}
}

func (q *AuthorizationStatusQuery) Query(_ context.Context, _ AuthorizationStatusMessage) (core.AuthorizationResult, error) {
	if q == nil || q.reader == nil {
		return core.AuthorizationResult{}, queryDependencyError("query: authorization status reader is required")
	}
	return q.reader.AuthorizationStatus(), nil
}

type ListTargetSitesQuery struct {
	reader SiteOptionsReader
}

func NewListTargetSitesQuery(reader SiteOptionsReader) *ListTargetSitesQuery {
	return &ListTargetSitesQuery{reader: reader}
}

func (q *ListTargetSitesQuery) Query(ctx context.Context, _ ListTargetSitesMessage) ([]core.SiteOption, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: site options reader is required")
	}
	return q.reader.SiteOptions(ctx)
}
