// Package gologger bridges deployer loggers into the go-job runtime so deploy
// workers and the deployer service write through the same sink.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultName = "deployer"

// Bridge holds one resolved logger in both glog and go-job shapes.
type Bridge struct {
	Name        string
	Provider    glog.LoggerProvider
	Logger      glog.Logger
	JobProvider job.LoggerProvider
	JobLogger   job.Logger
}

// NewBridge resolves with precedence provider > logger > nop.
func NewBridge(name string, provider glog.LoggerProvider, logger glog.Logger) Bridge {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	resolvedProvider, resolvedLogger := glog.Resolve(name, provider, logger)
	bridge := Bridge{
		Name:     name,
		Provider: resolvedProvider,
		Logger:   resolvedLogger,
	}
	if resolvedProvider != nil {
		bridge.JobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	bridge.JobLogger = job.GoLogger(resolvedLogger)
	return bridge
}

// Named returns a bridge for a child component, e.g. "deployer.jobs".
func (b Bridge) Named(child string) Bridge {
	child = strings.TrimSpace(child)
	if child == "" {
		return b
	}
	name := child
	if b.Name != "" {
		name = b.Name + "." + child
	}
	return NewBridge(name, b.Provider, b.Logger)
}
