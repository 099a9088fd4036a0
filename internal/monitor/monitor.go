// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package monitor periodically re-fingerprints the inputs of cached entries
// and invalidates exactly the entries whose inputs changed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/fingerprint"
	"github.com/staranto/assetctl/internal/resource"
)

var (
	ErrRunning        = errors.New("change monitor already running")
	ErrScanInProgress = errors.New("scan already in progress")
	ErrBadInterval    = errors.New("monitor interval must be positive")
)

// Source is the cache the monitor watches.
type Source interface {
	Entries(ctx context.Context) ([]*cache.Entry, error)
	InvalidateChanged(ctx context.Context, key cache.Key) error
}

// Options tune a Monitor. Every field is optional. Scheduled scans call the
// hooks on the monitor goroutine; Stop called from a hook stops the schedule
// but returns without waiting for the scan to finish.
type Options struct {
	// OnInvalidate is called after key was invalidated because the listed
	// URIs changed.
	OnInvalidate func(key cache.Key, changed []string)
	// OnScan is called after every completed scan.
	OnScan func(invalidated []cache.Key, err error)
}

type Monitor struct {
	src  Source
	fp   fingerprint.Provider
	opts Options

	scanning atomic.Bool
	inHook   atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(src Source, fp fingerprint.Provider, opts Options) *Monitor {
	return &Monitor{src: src, fp: fp, opts: opts}
}

// Start scans every interval until Stop is called.
func (m *Monitor) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrBadInterval, interval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, interval, m.done)

	log.WithField("interval", interval).Debug("change monitor started")
	return nil
}

// Stop ends the schedule and waits for a scan in progress to return, unless
// it is called from a hook of that scan. It is safe to call when the monitor
// is not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if m.inHook.Load() {
		log.Debug("change monitor stopping from a hook")
		return
	}
	<-done
	log.Debug("change monitor stopped")
}

// Running reports whether the schedule is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(context.WithValue(ctx, loopKey{}, true))
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("change monitor scan panicked")
		}
	}()

	invalidated, err := m.Scan(ctx)
	switch {
	case errors.Is(err, ErrScanInProgress):
		log.Debug("previous scan still running, skipping tick")
		return
	case err != nil && ctx.Err() == nil:
		log.WithError(err).Warn("change monitor scan failed")
	}
	if m.opts.OnScan != nil {
		m.hook(ctx, func() { m.opts.OnScan(invalidated, err) })
	}
}

type loopKey struct{}

// hook runs f, flagging it as a hook call when ctx comes from the schedule.
func (m *Monitor) hook(ctx context.Context, f func()) {
	if ctx.Value(loopKey{}) != nil {
		m.inHook.Store(true)
		defer m.inHook.Store(false)
	}
	f()
}

type token struct {
	value string
	err   error
}

// Scan checks every entry once and returns the keys it invalidated. A
// resource shared by several entries is fingerprinted once per scan.
func (m *Monitor) Scan(ctx context.Context) ([]cache.Key, error) {
	if !m.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer m.scanning.Store(false)

	entries, err := m.src.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	seen := map[resource.Resource]token{}
	var (
		invalidated []cache.Key
		errs        []error
	)
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return invalidated, err
		}

		var changed []string
		for _, in := range ent.Inputs {
			r := in.Resource()
			tok, ok := seen[r]
			if !ok {
				tok.value, tok.err = m.fp.Fingerprint(ctx, r)
				if tok.err != nil && !errors.Is(tok.err, resource.ErrNotFound) {
					log.WithError(tok.err).WithField("uri", r.URI).Warn("fingerprint failed, treating as changed")
				}
				seen[r] = tok
			}
			if !in.Matches(tok.value, tok.err) {
				changed = append(changed, in.URI)
			}
		}
		if len(changed) == 0 {
			continue
		}

		if err := m.src.InvalidateChanged(ctx, ent.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		log.WithField("key", ent.Key.String()).WithField("changed", changed).Info("invalidated")
		invalidated = append(invalidated, ent.Key)
		if m.opts.OnInvalidate != nil {
			m.hook(ctx, func() { m.opts.OnInvalidate(ent.Key, changed) })
		}
	}
	return invalidated, errors.Join(errs...)
}
