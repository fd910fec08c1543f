package plugins

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/damacus/iron-drawer/internal/events"
)

// Registry maps file extensions to the plugins registered for them.
type Registry struct {
	mu      sync.RWMutex
	index   map[string][]Plugin
	ordered []Plugin
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string][]Plugin)}
}

// Register replaces every registered plugin with ps. Extensions are
// lower-cased and a leading dot is dropped; plugins keep their
// registration order per extension. If any plugin is invalid nothing
// changes.
func (r *Registry) Register(ps ...Plugin) error {
	index := make(map[string][]Plugin)
	var problems []error
	for i, p := range ps {
		if p == nil {
			problems = append(problems, fmt.Errorf("plugin %d is nil", i))
			continue
		}
		if strings.TrimSpace(p.Name()) == "" {
			problems = append(problems, fmt.Errorf("plugin %d has no name", i))
		}
		exts := p.FileExtensions()
		if len(exts) == 0 {
			problems = append(problems, fmt.Errorf("plugin %q has no file extensions", p.Name()))
		}
		seen := make(map[string]bool)
		for _, ext := range exts {
			ext = normalizeExt(ext)
			if ext == "" {
				problems = append(problems, fmt.Errorf("plugin %q has an empty file extension", p.Name()))
				continue
			}
			if seen[ext] {
				continue
			}
			seen[ext] = true
			index[ext] = append(index[ext], p)
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = index
	r.ordered = append([]Plugin(nil), ps...)
	return nil
}

// Plugins returns the plugins for ext in registration order, or nil.
func (r *Registry) Plugins(ext string) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := r.index[normalizeExt(ext)]
	if len(found) == 0 {
		return nil
	}
	return append([]Plugin(nil), found...)
}

// Has reports whether any plugin is registered for ext.
func (r *Registry) Has(ext string) bool {
	ext = normalizeExt(ext)
	if ext == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index[ext]) > 0
}

// All returns every registered plugin once, in registration order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.ordered...)
}

// Subscribe wires the subscriptions of every registered Subscriber onto bus.
func Subscribe(bus *events.Bus, r *Registry) {
	for _, p := range r.All() {
		sub, ok := p.(Subscriber)
		if !ok {
			continue
		}
		for kind, h := range sub.Subscriptions() {
			bus.Subscribe(kind, h)
		}
	}
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}
