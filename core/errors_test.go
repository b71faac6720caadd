package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestDeployerErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := deployerErrorMapper(stderrors.New("core: oauth callback state session mismatch"))
	if mapped.TextCode != ErrorAuthorizationFailed {
		t.Fatalf("expected authorization text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", mapped.Code)
	}

	mapped = deployerErrorMapper(stderrors.New("core: session id is required"))
	if mapped.TextCode != ErrorBadInput || mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input mapping, got %q/%d", mapped.TextCode, mapped.Code)
	}
}

func TestErrorConstructors(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		textCode string
		status   int
		is       func(error) bool
	}{
		{"authorization", NewAuthorizationError("core: oauth state not found"), ErrorAuthorizationFailed, http.StatusForbidden, IsAuthorizationError},
		{"token exchange", NewTokenExchangeError(stderrors.New("invalid_grant")), ErrorTokenExchangeFailed, http.StatusBadGateway, IsTokenExchangeError},
		{"file write", NewFileWriteError(stderrors.New("disk full"), "about/index.html"), ErrorFileWriteFailed, http.StatusInternalServerError, IsFileWriteError},
		{"deploy", NewDeployError(stderrors.New("status 500"), "abc"), ErrorDeployFailed, http.StatusBadGateway, IsDeployError},
		{"not authorized", NewNotAuthorizedError(), ErrorNotAuthorized, http.StatusUnauthorized, IsNotAuthorized},
		{"run aborted", NewRunAbortedError(ErrAbortDeploy), ErrorRunAborted, http.StatusConflict, IsRunAborted},
	}
	for _, tc := range cases {
		if tc.err.TextCode != tc.textCode {
			t.Fatalf("%s: expected text code %q, got %q", tc.name, tc.textCode, tc.err.TextCode)
		}
		if tc.err.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, tc.err.Code)
		}
		if !tc.is(tc.err) {
			t.Fatalf("%s: predicate did not match", tc.name)
		}
	}
}

func TestDeployErrorNamesTargetSite(t *testing.T) {
	err := NewDeployError(stderrors.New("status 422"), "abc")
	if err.Metadata["target_site_id"] != "abc" {
		t.Fatalf("expected target site metadata, got %#v", err.Metadata)
	}
}

func TestIsDeployError_MatchesJoinedErrors(t *testing.T) {
	joined := stderrors.Join(stderrors.New("unrelated"), NewDeployError(nil, "def"))
	if !IsDeployError(joined) {
		t.Fatalf("expected joined errors to be searched")
	}
	if IsAuthorizationError(joined) {
		t.Fatalf("expected no authorization error in joined errors")
	}
}
