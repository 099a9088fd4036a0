// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/staranto/assetctl/internal/resource"
)

var ErrUnknownProcessor = errors.New("unknown processor")

// Env is what factories may use to build a processor.
type Env struct {
	Locator resource.Locator
	// Context is the root directory of the assets, when there is one.
	Context string
}

// Builder builds a processor from the argument following "=" in a spec.
type Builder func(arg string, env Env) (Processor, error)

type registration struct {
	build     Builder
	expensive bool
	usage     string
}

// RegisterOption tunes a registration.
type RegisterOption func(*registration)

// Expensive wraps every processor built from the registration in Lazy.
func Expensive() RegisterOption {
	return func(r *registration) { r.expensive = true }
}

// Usage is shown by Describe.
func Usage(s string) RegisterOption {
	return func(r *registration) { r.usage = s }
}

// Registry maps processor names to builders.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, b Builder, opts ...RegisterOption) {
	reg := registration{build: b}
	for _, o := range opts {
		o(&reg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(name)] = reg
}

// Build builds a processor from spec, which is "name" or "name=argument".
func (r *Registry) Build(spec string, env Env) (Processor, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), "=")
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}

	if reg.expensive {
		return Lazy(spec, func() (Processor, error) { return reg.build(arg, env) }), nil
	}
	p, err := reg.build(arg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to build processor %s: %w", spec, err)
	}
	return p, nil
}

// BuildAll builds every spec in order.
func (r *Registry) BuildAll(specs []string, env Env) ([]Processor, error) {
	out := make([]Processor, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		p, err := r.Build(spec, env)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns the usage text of name.
func (r *Registry) Describe(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[strings.ToLower(name)].usage
}
