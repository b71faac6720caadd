package core

import (
	"context"
	"strings"
)

type CallbackURLResolveRequest struct {
	SessionID string
	Driver    string
}

// CallbackURLResolver supplies the OAuth redirect uri when the caller did
// not pass one, e.g. for hosts served under several domains.
type CallbackURLResolver interface {
	ResolveCallbackURL(ctx context.Context, req CallbackURLResolveRequest) (string, error)
}

type CallbackURLResolverFunc func(ctx context.Context, req CallbackURLResolveRequest) (string, error)

func (fn CallbackURLResolverFunc) ResolveCallbackURL(ctx context.Context, req CallbackURLResolveRequest) (string, error) {
	if fn == nil {
		return "", nil
	}
	url, err := fn(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}
