// Package inbound exposes the deployer over HTTP: the OAuth authorize and
// callback round trip, target site listing, authorization status and deploy
// runs. Errors are written as go-errors envelopes.
package inbound
