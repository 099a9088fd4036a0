// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/staranto/assetctl/internal/fingerprint"
	"github.com/staranto/assetctl/internal/metrics"
	"github.com/staranto/assetctl/internal/resource"
)

// Computed is what a compute function hands back to the engine.
type Computed struct {
	Content []byte
	// Resources are every resource the content depends on, imports included.
	Resources []resource.Resource
	// Missing are resources skipped because they were not found. They are
	// recorded with TokenAbsent.
	Missing []resource.Resource
	// Tokens are fingerprints taken before the content was read. They take
	// precedence over fingerprints taken after compute, so an edit made
	// while computing leaves the entry stale.
	Tokens     map[resource.Resource]string
	Processors []string
	Failures   []string
}

// ComputeFunc builds the output of a key. It runs at most once at a time per
// key and is never cancelled by the callers waiting on it.
type ComputeFunc func(ctx context.Context) (*Computed, error)

// Engine serves entries from a Store, computing and storing missing or stale
// ones.
type Engine struct {
	store    Store
	fp       fingerprint.Provider
	validate bool
	buildID  func() string
	now      func() time.Time
	flights  singleflight.Group
}

// Option customizes an Engine.
type Option func(*Engine)

// WithValidation controls whether Get re-fingerprints inputs before serving
// an entry. Defaults to true. Without it staleness is left to a monitor.
func WithValidation(v bool) Option {
	return func(e *Engine) { e.validate = v }
}

// WithBuildID overrides the build identifier generator.
func WithBuildID(f func() string) Option {
	return func(e *Engine) { e.buildID = f }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, fp fingerprint.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		fp:       fp,
		validate: true,
		buildID:  uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the backing store.
func (e *Engine) Store() Store { return e.store }

// Fingerprints returns the provider used for input snapshots.
func (e *Engine) Fingerprints() fingerprint.Provider { return e.fp }

// Get returns the entry for key, computing it when absent or stale. Callers
// arriving while a computation for key is in flight wait for it and share its
// result or error. A caller whose ctx ends first returns ctx.Err() while the
// computation carries on for the others. Failed computations are not stored.
func (e *Engine) Get(ctx context.Context, key Key, compute ComputeFunc) (*Entry, error) {
	typ := string(key.Type)
	if ent, ok := e.lookup(ctx, key); ok {
		hitsTotal.WithLabelValues(typ).Inc()
		return ent, nil
	}

	ch := e.flights.DoChan(key.String(), func() (any, error) {
		fctx := context.WithoutCancel(ctx)

		// Another flight may have stored the entry between our lookup and now.
		if ent, ok := e.lookup(fctx, key); ok {
			hitsTotal.WithLabelValues(typ).Inc()
			return ent, nil
		}
		missesTotal.WithLabelValues(typ).Inc()
		return e.compute(fctx, key, compute)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			sharedTotal.WithLabelValues(typ).Inc()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Entry), nil
	}
}

func (e *Engine) compute(ctx context.Context, key Key, compute ComputeFunc) (ent *Entry, err error) {
	start := time.Now()
	defer func() {
		metrics.SetDurationObserver(computeSeconds.WithLabelValues(string(key.Type)), start)
		if r := recover(); r != nil {
			err = fmt.Errorf("computing %s panicked: %v", key, r)
		}
		if err != nil {
			failuresTotal.WithLabelValues(string(key.Type)).Inc()
		}
	}()

	c, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("compute returned no result")
	}

	ent = &Entry{
		Key:        key,
		Content:    c.Content,
		Inputs:     e.snapshot(ctx, c),
		Processors: c.Processors,
		Failures:   c.Failures,
		BuildID:    e.buildID(),
		CreatedAt:  e.now().UTC(),
	}
	if err := e.store.Save(ctx, ent); err != nil {
		// The output is still good for the callers waiting on it.
		log.WithError(err).WithField("key", key.String()).Warn("failed to store cache entry")
	}
	log.WithField("key", key.String()).WithField("build", ent.BuildID).Debug("computed")
	return ent, nil
}

// snapshot records a token for every distinct resource of c. Pre-read
// tokens win, missing resources get TokenAbsent and the rest are
// fingerprinted now. A failure records an empty token, which no later
// fingerprint matches.
func (e *Engine) snapshot(ctx context.Context, c *Computed) []Input {
	seen := make(map[resource.Resource]bool, len(c.Resources)+len(c.Missing))
	inputs := make([]Input, 0, len(c.Resources)+len(c.Missing))
	for _, r := range c.Resources {
		if seen[r] {
			continue
		}
		seen[r] = true
		tok, ok := c.Tokens[r]
		if !ok {
			var err error
			if tok, err = e.fp.Fingerprint(ctx, r); err != nil {
				log.WithError(err).WithField("uri", r.URI).Warn("fingerprint failed, entry will be rebuilt")
				tok = ""
			}
		}
		inputs = append(inputs, Input{URI: r.URI, Type: r.Type, Token: tok})
	}
	for _, r := range c.Missing {
		if seen[r] {
			continue
		}
		seen[r] = true
		inputs = append(inputs, Input{URI: r.URI, Type: r.Type, Token: TokenAbsent})
	}
	return inputs
}

// Tokens fingerprints rs, leaving out the ones that fail. Compute functions
// call it before reading content and hand the result back in
// Computed.Tokens.
func (e *Engine) Tokens(ctx context.Context, rs []resource.Resource) map[resource.Resource]string {
	out := make(map[resource.Resource]string, len(rs))
	for _, r := range rs {
		if _, ok := out[r]; ok {
			continue
		}
		if tok, err := e.fp.Fingerprint(ctx, r); err == nil {
			out[r] = tok
		}
	}
	return out
}

func (e *Engine) lookup(ctx context.Context, key Key) (*Entry, bool) {
	ent, ok, err := e.store.Load(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key.String()).Warn("cache load failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if e.validate {
		if changed := e.Changed(ctx, ent); len(changed) > 0 {
			log.WithField("key", key.String()).WithField("changed", changed).Debug("stale entry")
			staleTotal.WithLabelValues(string(key.Type)).Inc()
			return nil, false
		}
	}
	return ent, true
}

// Changed returns the URIs of ent's inputs whose fingerprint no longer
// matches. Fingerprint errors count as changes, except not found for an
// input recorded as absent.
func (e *Engine) Changed(ctx context.Context, ent *Entry) []string {
	var changed []string
	for _, in := range ent.Inputs {
		if !in.Matches(e.fp.Fingerprint(ctx, in.Resource())) {
			changed = append(changed, in.URI)
		}
	}
	return changed
}

// Peek returns the stored entry for key without validating or computing it,
// and without counting as a use of the entry.
func (e *Engine) Peek(ctx context.Context, key Key) (*Entry, bool, error) {
	return e.store.Peek(ctx, key)
}

// Invalidate removes the entry for key. A request already computing key is
// not affected and stores its result when done.
func (e *Engine) Invalidate(ctx context.Context, key Key) error {
	return e.invalidate(ctx, key, ReasonManual)
}

func (e *Engine) invalidate(ctx context.Context, key Key, reason string) error {
	if err := e.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	invalidationsTotal.WithLabelValues(reason).Inc()
	log.WithField("key", key.String()).WithField("reason", reason).Debug("invalidated")
	return nil
}

// InvalidateChanged removes the entry for key because an input changed.
func (e *Engine) InvalidateChanged(ctx context.Context, key Key) error {
	return e.invalidate(ctx, key, ReasonChange)
}

// InvalidateGroup removes every entry of group, whatever type or minimize flag.
func (e *Engine) InvalidateGroup(ctx context.Context, group string) error {
	keys, err := e.store.Keys(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range keys {
		if k.Group == group {
			errs = append(errs, e.invalidate(ctx, k, ReasonManual))
		}
	}
	return errors.Join(errs...)
}

// InvalidateAll empties the store.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	if err := e.store.Purge(ctx); err != nil {
		return fmt.Errorf("failed to invalidate all entries: %w", err)
	}
	invalidationsTotal.WithLabelValues(ReasonAll).Inc()
	return nil
}

// Entries lists the stored entries without touching their recency. Keys
// removed while listing are skipped.
func (e *Engine) Entries(ctx context.Context) ([]*Entry, error) {
	keys, err := e.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		ent, ok, err := e.store.Peek(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ent)
		}
	}
	return out, nil
}
