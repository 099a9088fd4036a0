// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package manager ties model, resolver, processor chain, cache and change
// monitor together behind the operations callers use: Process, Invalidate
// and the change monitor switches.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/fingerprint"
	"github.com/staranto/assetctl/internal/group"
	"github.com/staranto/assetctl/internal/model"
	"github.com/staranto/assetctl/internal/monitor"
	"github.com/staranto/assetctl/internal/processor"
	"github.com/staranto/assetctl/internal/resource"
)

var (
	ErrBadRequest = errors.New("invalid request")
	ErrConflict   = errors.New("conflicting cached build")
)

// Config wires a Manager. Models and Locator are required; the rest have
// defaults.
type Config struct {
	Models  model.Provider
	Locator resource.Locator
	// Fingerprints defaults to SHA-256 over Locator.
	Fingerprints fingerprint.Provider
	// Store defaults to an in-memory store.
	Store cache.Store

	Pre         []processor.Processor
	Post        []processor.Processor
	Separator   string
	Parallelism int

	// SkipValidation serves cached entries without re-fingerprinting their
	// inputs, leaving staleness to the change monitor.
	SkipValidation bool
	// BuildID overrides the build identifier generator.
	BuildID func() string
	Monitor monitor.Options
}

// Request asks for one group output.
type Request struct {
	Group    string
	Type     resource.Type
	Minimize bool
	// IgnoreMissing skips resources that cannot be found instead of failing.
	IgnoreMissing bool
	// Tolerant keeps going when a processor fails.
	Tolerant bool
}

// Key returns the cache key of r. IgnoreMissing and Tolerant do not take
// part in it.
func (r Request) Key() cache.Key {
	return cache.Key{Group: r.Group, Type: r.Type, Minimize: r.Minimize}
}

// accepts reports whether ent is what r would have built. An entry with
// absent inputs only serves requests that ignore missing resources, and one
// with tolerated failures only serves tolerant requests.
func (r Request) accepts(ent *cache.Entry) bool {
	if !r.Tolerant && len(ent.Failures) > 0 {
		return false
	}
	if !r.IgnoreMissing {
		for _, in := range ent.Inputs {
			if in.Token == cache.TokenAbsent {
				return false
			}
		}
	}
	return true
}

// Output is the processed content of a group.
type Output struct {
	Key        cache.Key
	Content    []byte
	Inputs     []cache.Input
	Processors []string
	Failures   []string
	BuildID    string
	CreatedAt  time.Time
}

// ContentType is the media type of the output.
func (o *Output) ContentType() string {
	switch o.Key.Type {
	case resource.Style:
		return "text/css"
	case resource.Script:
		return "application/javascript"
	default:
		return "application/octet-stream"
	}
}

type Manager struct {
	models   model.Provider
	resolver group.Resolver
	chain    *processor.Chain
	engine   *cache.Engine
	monitor  *monitor.Monitor
}

func New(cfg Config) (*Manager, error) {
	if cfg.Models == nil {
		return nil, errors.New("manager needs a model provider")
	}
	if cfg.Locator == nil {
		return nil, errors.New("manager needs a resource locator")
	}
	if cfg.Fingerprints == nil {
		fp, err := fingerprint.New(fingerprint.SHA256, cfg.Locator)
		if err != nil {
			return nil, err
		}
		cfg.Fingerprints = fp
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewMemoryStore()
	}

	opts := []cache.Option{cache.WithValidation(!cfg.SkipValidation)}
	if cfg.BuildID != nil {
		opts = append(opts, cache.WithBuildID(cfg.BuildID))
	}
	engine := cache.NewEngine(cfg.Store, cfg.Fingerprints, opts...)

	return &Manager{
		models: cfg.Models,
		chain: &processor.Chain{
			Pre:         cfg.Pre,
			Post:        cfg.Post,
			Locator:     cfg.Locator,
			Separator:   cfg.Separator,
			Parallelism: cfg.Parallelism,
		},
		engine:  engine,
		monitor: monitor.New(engine, cfg.Fingerprints, cfg.Monitor),
	}, nil
}

// Engine exposes the cache engine, mostly for listing entries.
func (m *Manager) Engine() *cache.Engine { return m.engine }

// Process returns the output for req, from cache when the cached entry is
// still valid. Concurrent requests for the same key share one computation.
func (m *Manager) Process(ctx context.Context, req Request) (*Output, error) {
	if req.Group == "" {
		return nil, fmt.Errorf("%w: empty group name", ErrBadRequest)
	}
	if req.Type != resource.Style && req.Type != resource.Script {
		return nil, fmt.Errorf("%w: type must be css or js, got %q", ErrBadRequest, req.Type)
	}

	key := req.Key()
	compute := func(ctx context.Context) (*cache.Computed, error) {
		return m.compute(ctx, req)
	}
	ent, err := m.engine.Get(ctx, key, compute)
	if err == nil && !req.accepts(ent) {
		// A more lenient request built the cached entry.
		if err := m.engine.Invalidate(ctx, key); err != nil {
			return nil, err
		}
		ent, err = m.engine.Get(ctx, key, compute)
		if err == nil && !req.accepts(ent) {
			err = fmt.Errorf("%w: %s was rebuilt leniently while this request waited", ErrConflict, key)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Output{
		Key:        ent.Key,
		Content:    ent.Content,
		Inputs:     ent.Inputs,
		Processors: ent.Processors,
		Failures:   ent.Failures,
		BuildID:    ent.BuildID,
		CreatedAt:  ent.CreatedAt,
	}, nil
}

func (m *Manager) compute(ctx context.Context, req Request) (*cache.Computed, error) {
	rs, err := m.Resolve(ctx, req.Group, req.Type)
	if err != nil {
		return nil, err
	}
	tokens := m.engine.Tokens(ctx, rs)

	res, err := m.chain.Run(ctx, rs, processor.Options{
		Type:          req.Type,
		Minimize:      req.Minimize,
		IgnoreMissing: req.IgnoreMissing,
		Tolerant:      req.Tolerant,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process group %s: %w", req.Group, err)
	}

	failures := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, f.Error())
	}
	log.WithFields(log.Fields{
		"group":     req.Group,
		"type":      req.Type,
		"resources": len(res.Resources),
		"imports":   len(res.Imports),
		"missing":   len(res.Missing),
	}).Debug("group processed")

	return &cache.Computed{
		Content:    res.Content,
		Resources:  append(res.Resources, res.Imports...),
		Missing:    res.Missing,
		Tokens:     tokens,
		Processors: res.Applied,
		Failures:   failures,
	}, nil
}

// Resolve returns the resources of group filtered by typ, as of the current
// model snapshot.
func (m *Manager) Resolve(ctx context.Context, name string, typ resource.Type) ([]resource.Resource, error) {
	snap, err := m.models.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return m.resolver.Resolve(snap, name, typ)
}

// Groups returns the names of every group in the current model.
func (m *Manager) Groups(ctx context.Context) ([]string, error) {
	snap, err := m.models.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Names(), nil
}

// Invalidate drops the cached outputs of the named groups, or of everything
// when no name is given. Only exact group names match.
func (m *Manager) Invalidate(ctx context.Context, groups ...string) error {
	if len(groups) == 0 {
		return m.engine.InvalidateAll(ctx)
	}
	var errs []error
	for _, g := range groups {
		errs = append(errs, m.engine.InvalidateGroup(ctx, g))
	}
	return errors.Join(errs...)
}

// Reload re-reads the model and drops every cached output, since any group
// may have changed shape.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.models.Reload(ctx); err != nil {
		return err
	}
	return m.engine.InvalidateAll(ctx)
}

// StartChangeMonitor starts the periodic change scan.
func (m *Manager) StartChangeMonitor(interval time.Duration) error {
	return m.monitor.Start(interval)
}

// StopChangeMonitor stops the periodic change scan. It is a no-op when the
// monitor is not running.
func (m *Manager) StopChangeMonitor() {
	m.monitor.Stop()
}

// ScanChanges runs one change scan immediately.
func (m *Manager) ScanChanges(ctx context.Context) ([]cache.Key, error) {
	return m.monitor.Scan(ctx)
}
