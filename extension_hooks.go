package deployer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HookPack is a named set of deploy lifecycle hooks contributed by a host
// application, e.g. cache purges after a publish.
type HookPack struct {
	Name   string
	Before []BeforeDeployHook
	After  []AfterDeployHook
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects hook packs and command/query bundles before the
// deployer is built. Packs apply in name order.
type ExtensionHooks struct {
	mu sync.RWMutex

	hookPacks map[string]HookPack
	bundles   map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		hookPacks: map[string]HookPack{},
		bundles:   map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterHookPack(pack HookPack) error {
	if h == nil {
		return fmt.Errorf("deployer: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("deployer: hook pack name is required")
	}
	normalized := HookPack{Name: name}
	for _, hook := range pack.Before {
		if hook != nil {
			normalized.Before = append(normalized.Before, hook)
		}
	}
	for _, hook := range pack.After {
		if hook != nil {
			normalized.After = append(normalized.After, hook)
		}
	}
	if len(normalized.Before) == 0 && len(normalized.After) == 0 {
		return fmt.Errorf("deployer: hook pack %q has no hooks", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.hookPacks[name]; exists {
		return fmt.Errorf("deployer: hook pack %q already registered", name)
	}
	h.hookPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(name string, factory CommandQueryBundleFactory) error {
	if h == nil {
		return fmt.Errorf("deployer: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("deployer: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("deployer: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("deployer: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// Options turns every registered hook into a deployer option.
func (h *ExtensionHooks) Options() []Option {
	var out []Option
	for _, pack := range h.HookPacks() {
		for _, hook := range pack.Before {
			out = append(out, WithBeforeDeployHook(hook))
		}
		for _, hook := range pack.After {
			out = append(out, WithAfterDeployHook(hook))
		}
	}
	return out
}

func (h *ExtensionHooks) HookPacks() []HookPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HookPack, 0, len(h.hookPacks))
	for _, name := range sortedKeys(h.hookPacks) {
		pack := h.hookPacks[name]
		out = append(out, HookPack{
			Name:   pack.Name,
			Before: append([]BeforeDeployHook(nil), pack.Before...),
			After:  append([]AfterDeployHook(nil), pack.After...),
		})
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service CommandQueryService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("deployer: command/query service is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, fmt.Errorf("deployer: build bundle %q: %w", name, err)
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
