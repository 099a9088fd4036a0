// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
)

// Provider supplies the current model snapshot.
type Provider interface {
	Snapshot(ctx context.Context) (*Model, error)
	Reload(ctx context.Context) error
}

// StaticProvider always returns the same model.
type StaticProvider struct {
	Model *Model
}

func (p StaticProvider) Snapshot(context.Context) (*Model, error) {
	if p.Model == nil {
		return New(nil), nil
	}
	return p.Model, nil
}

func (StaticProvider) Reload(context.Context) error { return nil }

// FileProvider parses a model file on first use and on every Reload. Readers
// always see a complete snapshot; a failed reload keeps the previous one.
type FileProvider struct {
	Path   string
	Format Format
	Vars   Vars

	mu      sync.Mutex
	current atomic.Pointer[Model]
}

// NewFileProvider picks the format from the extension of path.
func NewFileProvider(path string, vars Vars) *FileProvider {
	return &FileProvider{Path: path, Format: FormatOf(path), Vars: vars}
}

func (p *FileProvider) Snapshot(ctx context.Context) (*Model, error) {
	if m := p.current.Load(); m != nil {
		return m, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.current.Load(); m != nil {
		return m, nil
	}
	return p.load(ctx)
}

func (p *FileProvider) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.load(ctx)
	return err
}

func (p *FileProvider) load(ctx context.Context) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", p.Path, err)
	}
	m, err := Parse(p.Format, p.Path, data, p.Vars)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", p.Path, err)
	}
	p.current.Store(m)
	log.WithField("model", p.Path).WithField("groups", m.Len()).Debug("model loaded")
	return m, nil
}
