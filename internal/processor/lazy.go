// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/resource"
)

// Factory builds a processor on demand.
type Factory func() (Processor, error)

// LazyProcessor defers building an expensive processor until it is first
// used, whether for processing or for a capability query. The factory runs
// at most once; its error, if any, is kept and returned from every Process.
type LazyProcessor struct {
	name    string
	factory Factory

	done atomic.Bool
	mu   sync.Mutex
	p    Processor
	err  error
}

// Lazy wraps factory in a LazyProcessor reported as name.
func Lazy(name string, factory Factory) *LazyProcessor {
	return &LazyProcessor{name: name, factory: factory}
}

func (l *LazyProcessor) get() (Processor, error) {
	if l.done.Load() {
		return l.p, l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done.Load() {
		l.p, l.err = l.factory()
		if l.err != nil {
			log.WithError(l.err).WithField("processor", l.name).Warn("processor initialization failed")
		}
		l.done.Store(true)
	}
	return l.p, l.err
}

// Initialized reports whether the factory has run.
func (l *LazyProcessor) Initialized() bool {
	return l.done.Load()
}

func (l *LazyProcessor) Name() string { return l.name }

func (l *LazyProcessor) Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	p, err := l.get()
	if err != nil {
		return err
	}
	return p.Process(ctx, r, in, out)
}

func (l *LazyProcessor) SupportsType(t resource.Type) bool {
	p, err := l.get()
	if err != nil {
		return false
	}
	return SupportsType(p, t)
}

func (l *LazyProcessor) IsMinimizer() bool {
	p, err := l.get()
	if err != nil {
		return false
	}
	return IsMinimizer(p)
}

func (l *LazyProcessor) IsRuntimeSupported() bool {
	p, err := l.get()
	if err != nil {
		return false
	}
	return IsRuntimeSupported(p)
}

func (l *LazyProcessor) IsImportAware() bool {
	p, err := l.get()
	if err != nil {
		return false
	}
	return IsImportAware(p)
}
