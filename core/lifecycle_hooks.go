package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DeployEvent describes a run that is about to start.
type DeployEvent struct {
	RunID    string
	SiteURIs []SiteURI
	Batches  Batches
}

type BeforeDeployHook interface {
	Name() string
	BeforeDeploy(ctx context.Context, event DeployEvent) error
}

type AfterDeployHook interface {
	Name() string
	AfterDeploy(ctx context.Context, event DeployEvent, report RunReport) error
}

type BeforeDeployHookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event DeployEvent) error
}

func (h BeforeDeployHookFunc) Name() string { return h.HookName }

func (h BeforeDeployHookFunc) BeforeDeploy(ctx context.Context, event DeployEvent) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, event)
}

type AfterDeployHookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event DeployEvent, report RunReport) error
}

func (h AfterDeployHookFunc) Name() string { return h.HookName }

func (h AfterDeployHookFunc) AfterDeploy(ctx context.Context, event DeployEvent, report RunReport) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, event, report)
}

type DeployHooks struct {
	mu     sync.RWMutex
	before []BeforeDeployHook
	after  []AfterDeployHook
}

func NewDeployHooks() *DeployHooks {
	return &DeployHooks{
		before: make([]BeforeDeployHook, 0),
		after:  make([]AfterDeployHook, 0),
	}
}

func (h *DeployHooks) RegisterBefore(hook BeforeDeployHook) {
	if h == nil || hook == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, hook)
}

func (h *DeployHooks) RegisterAfter(hook AfterDeployHook) {
	if h == nil || hook == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, hook)
}

// ExecuteBefore runs hooks in registration order and stops at the first
// error. Any error cancels the run.
func (h *DeployHooks) ExecuteBefore(ctx context.Context, event DeployEvent) error {
	for _, hook := range h.beforeHooks() {
		if err := hook.BeforeDeploy(ctx, event); err != nil {
			return fmt.Errorf("core: before-deploy hook %q failed: %w", hookName(hook.Name()), err)
		}
	}
	return nil
}

// ExecuteAfter runs every hook. Failures are aggregated and never change the
// report.
func (h *DeployHooks) ExecuteAfter(ctx context.Context, event DeployEvent, report RunReport) error {
	var hookErr error
	for _, hook := range h.afterHooks() {
		if err := hook.AfterDeploy(ctx, event, report); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("after-deploy hook %q failed: %w", hookName(hook.Name()), err))
		}
	}
	return hookErr
}

func (h *DeployHooks) beforeHooks() []BeforeDeployHook {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]BeforeDeployHook, len(h.before))
	copy(out, h.before)
	return out
}

func (h *DeployHooks) afterHooks() []AfterDeployHook {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]AfterDeployHook, len(h.after))
	copy(out, h.after)
	return out
}

func hookName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}
	return name
}
